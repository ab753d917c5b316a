package invalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redseamarket/adminkit/storage"
)

// State is the invalidator lifecycle.
type State int32

const (
	// Active means a session may be live.
	Active State = iota
	// Invalidating means a run is in progress.
	Invalidating
	// Invalidated means cleanup finished; further calls are no-ops.
	Invalidated
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Invalidating:
		return "invalidating"
	case Invalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Step names reported in [Outcome.Failed].
const (
	StepStorage = "storage"
	StepHeader  = "header"
	StepSlices  = "slices"
	StepSession = "session"
	StepNotify  = "notify"
)

// SessionExpiredTitle is the title of the notification emitted on notify.
const SessionExpiredTitle = "Session Expired"

// Navigator moves the user. Replace adds no history entry; HardRedirect is
// the last-resort escape used when cleanup failed.
type Navigator interface {
	Replace(path string)
	HardRedirect(path string)
}

// HeaderClearer drops the in-memory Authorization mirror.
type HeaderClearer interface {
	ClearHeader()
}

// SliceClearer is the persisted-state clearing primitive.
type SliceClearer interface {
	ClearSlices(ctx context.Context, names ...string) error
}

// SessionResetter sets in-memory session state to logged out.
type SessionResetter interface {
	Logout()
}

// Notifier emits the user-facing "session expired" message.
type Notifier interface {
	SessionExpired(ctx context.Context) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context) error

// SessionExpired implements [Notifier].
func (f NotifierFunc) SessionExpired(ctx context.Context) error { return f(ctx) }

// Outcome describes one completed run.
type Outcome struct {
	Notified     bool
	HardRedirect bool
	Failed       []string
	Err          error
	Elapsed      time.Duration
}

// Options wires an [Invalidator]. Storage, Navigator and SignInPath are
// required.
type Options struct {
	Storage    storage.Storage
	Header     HeaderClearer
	Slices     SliceClearer
	SliceNames []string
	Session    SessionResetter
	Notifier   Notifier
	Navigator  Navigator
	SignInPath string
	// Keys overrides the durable keys removed in the first step.
	Keys      []string
	Logger    *slog.Logger
	OnOutcome func(Outcome)
}

// Invalidator runs the coordinated session teardown. Safe for concurrent
// use.
type Invalidator struct {
	opts   Options
	keys   []string
	logger *slog.Logger
	group  singleflight.Group

	// mu orders state transitions against Reset; state is also read
	// without it.
	mu    sync.Mutex
	state atomic.Int32
	epoch uint64
}

// New validates opts and returns an Active invalidator.
func New(opts Options) (*Invalidator, error) {
	if opts.Storage == nil {
		return nil, errors.New("invalidate: storage is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("invalidate: navigator is required")
	}
	if opts.SignInPath == "" {
		return nil, errors.New("invalidate: sign-in path is required")
	}
	keys := opts.Keys
	if len(keys) == 0 {
		keys = storage.SessionKeys
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Invalidator{opts: opts, keys: keys, logger: logger}, nil
}

// State returns the current lifecycle state.
func (inv *Invalidator) State() State {
	return State(inv.state.Load())
}

// Reset returns the invalidator to Active and starts a new session epoch.
// Call it only after a successful login. A run still in flight for the
// previous epoch will not mark the new session invalidated.
func (inv *Invalidator) Reset() {
	inv.mu.Lock()
	inv.epoch++
	inv.state.Store(int32(Active))
	inv.mu.Unlock()
}

// Invalidate tears the session down. Concurrent callers share one run and
// receive its error; calls after the run return nil without side effects.
func (inv *Invalidator) Invalidate(ctx context.Context, notify bool) error {
	if inv.State() == Invalidated {
		return nil
	}
	inv.mu.Lock()
	epoch := inv.epoch
	inv.mu.Unlock()

	_, err, _ := inv.group.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		inv.mu.Lock()
		if inv.epoch != epoch || !inv.state.CompareAndSwap(int32(Active), int32(Invalidating)) {
			inv.mu.Unlock()
			return nil, nil
		}
		inv.mu.Unlock()
		return nil, inv.run(ctx, notify, epoch)
	})
	return err
}

// finish marks the run's epoch invalidated. It reports false when a login
// reset the invalidator while the run was in progress.
func (inv *Invalidator) finish(epoch uint64) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.epoch != epoch {
		return false
	}
	inv.state.Store(int32(Invalidated))
	return true
}

func (inv *Invalidator) run(ctx context.Context, notify bool, epoch uint64) error {
	start := time.Now()
	var out Outcome
	var errs []error
	record := func(name string, err error) {
		if err != nil {
			out.Failed = append(out.Failed, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	record(StepStorage, guard(func() error {
		return inv.opts.Storage.Remove(ctx, inv.keys...)
	}))
	if inv.opts.Header != nil {
		record(StepHeader, guard(func() error {
			inv.opts.Header.ClearHeader()
			return nil
		}))
	}
	if inv.opts.Slices != nil && len(inv.opts.SliceNames) > 0 {
		record(StepSlices, guard(func() error {
			return inv.opts.Slices.ClearSlices(ctx, inv.opts.SliceNames...)
		}))
	}
	if inv.opts.Session != nil {
		record(StepSession, guard(func() error {
			inv.opts.Session.Logout()
			return nil
		}))
	}
	if notify && inv.opts.Notifier != nil {
		err := guard(func() error { return inv.opts.Notifier.SessionExpired(ctx) })
		record(StepNotify, err)
		out.Notified = err == nil
	}

	out.Err = errors.Join(errs...)
	out.HardRedirect = out.Err != nil

	switch {
	case !inv.finish(epoch):
		out.HardRedirect = false
		inv.logger.InfoContext(ctx, "session invalidation superseded by a new login")
	case out.HardRedirect:
		inv.logger.ErrorContext(ctx, "session invalidation failed; hard redirect",
			slog.Any("failed", out.Failed),
			slog.String("error", out.Err.Error()),
		)
		inv.opts.Navigator.HardRedirect(inv.opts.SignInPath)
	default:
		inv.logger.InfoContext(ctx, "session invalidated", slog.Bool("notified", out.Notified))
		inv.opts.Navigator.Replace(inv.opts.SignInPath)
	}

	out.Elapsed = time.Since(start)
	if inv.opts.OnOutcome != nil {
		inv.opts.OnOutcome(out)
	}
	return out.Err
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
