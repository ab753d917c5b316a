package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redseamarket/adminkit/storage"
)

// DefaultDebounce is the write delay used when Config.Debounce is zero.
const DefaultDebounce = 25 * time.Millisecond

var (
	// ErrStorage wraps every durable storage failure returned by this package.
	ErrStorage = errors.New("persist storage failure")
	// ErrUnknownSlice is returned when a slice name is not registered.
	ErrUnknownSlice = errors.New("unknown persisted slice")
)

// Slice is one persisted unit of state.
type Slice interface {
	Name() string
	Key() string
	Version() int
	Whitelist() []string
	// Snapshot returns every field of the current value keyed by JSON name.
	Snapshot() (map[string]json.RawMessage, error)
	// Restore merges fields onto the initial value and installs it.
	Restore(fields map[string]json.RawMessage) error
	// Reset installs the initial value.
	Reset()
}

// MigrateFunc upgrades fields written at version from to the slice's
// current version.
type MigrateFunc func(from int, fields map[string]json.RawMessage) (map[string]json.RawMessage, error)

// Config tunes a [Persistor].
type Config struct {
	Debounce   time.Duration
	Migrations map[string]MigrateFunc
	Logger     *slog.Logger
	// OnWrite is called after every slice write attempt.
	OnWrite func(slice string, err error)
	// OnDiscard is called when a stored blob is dropped on load.
	OnDiscard func(slice, reason string)
}

// Health reports the persistor lifecycle flags.
type Health struct {
	IsBootstrapped bool `json:"isBootstrapped"`
	IsRehydrated   bool `json:"isRehydrated"`
}

// Persistor writes registered slices on change and restores them on start.
// Safe for concurrent use.
type Persistor struct {
	storage storage.Storage
	slices  []Slice
	byName  map[string]Slice
	cfg     Config
	logger  *slog.Logger

	mu           sync.Mutex
	dirty        map[string]bool
	timer        *time.Timer
	paused       bool
	quiet        int
	bootstrapped bool
	rehydrated   bool

	// writeMu serializes every durable write so Pause can wait on it.
	writeMu sync.Mutex
}

// New registers slices over s.
func New(s storage.Storage, cfg Config, list ...Slice) *Persistor {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	byName := make(map[string]Slice, len(list))
	for _, sl := range list {
		byName[sl.Name()] = sl
	}
	return &Persistor{
		storage: s,
		slices:  list,
		byName:  byName,
		cfg:     cfg,
		logger:  logger,
		dirty:   make(map[string]bool),
	}
}

// Keys returns the durable keys of every registered slice.
func (p *Persistor) Keys() []string {
	keys := make([]string, 0, len(p.slices))
	for _, sl := range p.slices {
		keys = append(keys, sl.Key())
	}
	return keys
}

// HealthCheck returns the lifecycle flags.
func (p *Persistor) HealthCheck() Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Health{IsBootstrapped: p.bootstrapped, IsRehydrated: p.rehydrated}
}

// Paused reports whether writes are suspended.
func (p *Persistor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// MarkDirty schedules a debounced write of the named slice. It is ignored
// while paused, before rehydration, and while the persistor itself is
// installing values.
func (p *Persistor) MarkDirty(name string) {
	if _, ok := p.byName[name]; !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.quiet > 0 || !p.rehydrated {
		return
	}
	p.dirty[name] = true
	if p.timer == nil {
		p.timer = time.AfterFunc(p.cfg.Debounce, p.flushLater)
	}
}

func (p *Persistor) flushLater() {
	if err := p.Flush(context.Background()); err != nil {
		p.logger.Warn("persist write failed", slog.String("error", err.Error()))
	}
}

// Flush writes every pending slice now. It is a no-op while paused.
func (p *Persistor) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.paused {
		p.mu.Unlock()
		return nil
	}
	names := make([]string, 0, len(p.dirty))
	for name := range p.dirty {
		names = append(names, name)
	}
	clear(p.dirty)
	p.mu.Unlock()

	slices.Sort(names)
	var errs []error
	for _, name := range names {
		if err := p.write(ctx, p.byName[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Persistor) write(ctx context.Context, sl Slice) error {
	fields, err := sl.Snapshot()
	if err == nil {
		var blob string
		blob, err = encodeEnvelope(sl.Key(), sl.Version(), fields, sl.Whitelist())
		if err == nil {
			if err = p.storage.Set(ctx, sl.Key(), blob); err != nil {
				err = fmt.Errorf("%w: write %s: %w", ErrStorage, sl.Key(), err)
			}
		}
	}
	if p.cfg.OnWrite != nil {
		p.cfg.OnWrite(sl.Name(), err)
	}
	return err
}

// Pause suspends writes. It returns once any in-flight write has finished.
// Pending and subsequent changes are dropped until [Persistor.Resume].
func (p *Persistor) Pause() {
	p.mu.Lock()
	p.paused = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	clear(p.dirty)
	p.mu.Unlock()

	// Wait out an in-flight write.
	p.writeMu.Lock()
	p.writeMu.Unlock() //nolint:staticcheck
}

// Resume re-enables writes.
func (p *Persistor) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Rehydrate loads every slice from storage and marks the persistor ready.
// Missing, corrupt and outdated blobs leave the slice at its initial value.
// Storage read failures are returned but do not stop other slices.
func (p *Persistor) Rehydrate(ctx context.Context) error {
	p.mu.Lock()
	p.bootstrapped = true
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	var errs []error
	for _, sl := range p.slices {
		if err := p.load(ctx, sl); err != nil {
			errs = append(errs, err)
		}
	}

	root := Root{Slices: p.Keys(), RehydratedAt: time.Now().UTC()}
	if data, err := json.Marshal(root); err == nil {
		if err := p.storage.Set(ctx, storage.KeyPersistRoot, string(data)); err != nil {
			errs = append(errs, fmt.Errorf("%w: write root: %w", ErrStorage, err))
		}
	}

	p.mu.Lock()
	p.rehydrated = true
	p.mu.Unlock()
	return errors.Join(errs...)
}

func (p *Persistor) load(ctx context.Context, sl Slice) error {
	p.enterQuiet()
	defer p.leaveQuiet()

	raw, ok, err := p.storage.Get(ctx, sl.Key())
	if err != nil {
		sl.Reset()
		return fmt.Errorf("%w: read %s: %w", ErrStorage, sl.Key(), err)
	}
	if !ok {
		sl.Reset()
		return nil
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		p.discard(sl, "corrupt", err)
		return nil
	}
	fields := env.State
	if env.Persist.Version != sl.Version() {
		migrate := p.cfg.Migrations[sl.Name()]
		if migrate == nil {
			p.discard(sl, "version", fmt.Errorf("stored version %d, want %d", env.Persist.Version, sl.Version()))
			return nil
		}
		fields, err = migrate(env.Persist.Version, fields)
		if err != nil {
			p.discard(sl, "migration", err)
			return nil
		}
	}

	if err := sl.Restore(filter(fields, sl.Whitelist())); err != nil {
		p.discard(sl, "restore", err)
	}
	return nil
}

func (p *Persistor) discard(sl Slice, reason string, err error) {
	p.logger.Warn("discarding persisted state",
		slog.String("slice", sl.Name()),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	sl.Reset()
	if p.cfg.OnDiscard != nil {
		p.cfg.OnDiscard(sl.Name(), reason)
	}
}

func (p *Persistor) enterQuiet() {
	p.mu.Lock()
	p.quiet++
	p.mu.Unlock()
}

func (p *Persistor) leaveQuiet() {
	p.mu.Lock()
	p.quiet--
	p.mu.Unlock()
}

// ClearSlices pauses writes, removes the named slices' keys, resumes, and
// reloads those slices from the now-empty storage. Other slices are left
// untouched. The removal error, if any, is returned after the slices have
// been reset.
func (p *Persistor) ClearSlices(ctx context.Context, names ...string) error {
	targets := make([]Slice, 0, len(names))
	for _, name := range names {
		sl, ok := p.byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSlice, name)
		}
		targets = append(targets, sl)
	}

	p.Pause()
	// Writes stay blocked until the slices are reloaded, so a change marked
	// after Resume is written from the cleared value.
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	keys := make([]string, 0, len(targets))
	for _, sl := range targets {
		keys = append(keys, sl.Key())
	}
	removeErr := p.storage.Remove(ctx, keys...)
	p.Resume()

	var errs []error
	if removeErr != nil {
		errs = append(errs, fmt.Errorf("%w: remove %v: %w", ErrStorage, keys, removeErr))
	}
	for _, sl := range targets {
		if removeErr != nil {
			p.enterQuiet()
			sl.Reset()
			p.leaveQuiet()
			continue
		}
		if err := p.load(ctx, sl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Purge removes every slice key and the root key, then resets every slice.
// It is safe to retry after a failure.
func (p *Persistor) Purge(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	clear(p.dirty)
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	keys := append(p.Keys(), storage.KeyPersistRoot)
	err := p.storage.Remove(ctx, keys...)

	p.enterQuiet()
	for _, sl := range p.slices {
		sl.Reset()
	}
	p.leaveQuiet()

	if err != nil {
		return fmt.Errorf("%w: purge: %w", ErrStorage, err)
	}
	return nil
}

// Close stops the debounce timer and writes pending changes.
func (p *Persistor) Close(ctx context.Context) error {
	return p.Flush(ctx)
}
