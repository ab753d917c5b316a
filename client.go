package adminkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redseamarket/adminkit/api"
	"github.com/redseamarket/adminkit/internal/events"
	"github.com/redseamarket/adminkit/invalidate"
	"github.com/redseamarket/adminkit/middleware"
	"github.com/redseamarket/adminkit/persist"
	"github.com/redseamarket/adminkit/restore"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/state"
	"github.com/redseamarket/adminkit/storage"
	"github.com/redseamarket/adminkit/token"
)

// Client is the assembled session core. Methods are safe for concurrent use
// once [Client.Start] has returned.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	storage storage.Storage
	tokens  *token.Store
	store   *state.Store

	api         *api.Client
	persistor   *persist.Persistor
	gate        *restore.Gate
	guard       *route.Guard
	invalidator *invalidate.Invalidator
	nav         *trackingNavigator
	events      *events.Dispatcher
	metrics     *Metrics
	now         func() time.Time

	started atomic.Bool
	closed  atomic.Bool

	mu     sync.Mutex
	unsubs []func()
}

// Health summarizes the client for diagnostics.
type Health struct {
	Started       bool           `json:"started"`
	Persist       persist.Health `json:"persist"`
	PersistPaused bool           `json:"persistPaused"`
	Authenticated bool           `json:"authenticated"`
	UserID        string         `json:"userId,omitempty"`
	TokenStored   bool           `json:"tokenStored"`
	HeaderSet     bool           `json:"headerSet"`
	Invalidation  string         `json:"invalidation"`
	Path          string         `json:"path"`
	EventsDropped uint64         `json:"eventsDropped"`
	StoredKeys    []string       `json:"storedKeys"`
	StorageError  string         `json:"storageError,omitempty"`
}

// Start rehydrates persisted state, reconciles it with the durable token,
// subscribes the reconciler, persistor and route guard to state changes, and
// finally applies the guard to the current path. It runs once.
//
// A rehydration failure is reported as a notification and returned, but the
// client stays usable with initial state.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	var errs []error
	if err := c.persistor.Rehydrate(ctx); err != nil {
		c.logger.WarnContext(ctx, "rehydrate failed", slog.String("error", err.Error()))
		c.store.Notify(state.NotifyError, "Storage unavailable", "Saved preferences could not be loaded.")
		errs = append(errs, err)
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, c.store.Subscribe(func(ev state.Event) {
		c.persistor.MarkDirty(ev.Slice)
	}))
	c.mu.Unlock()

	if _, err := c.gate.Reconcile(ctx); err != nil {
		c.logger.WarnContext(ctx, "initial reconcile failed", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Order matters: the reconciler must see a session change before the
	// guard does.
	c.mu.Lock()
	c.unsubs = append(c.unsubs,
		c.gate.Watch(c.store),
		c.store.Subscribe(c.onStateEvent),
	)
	c.mu.Unlock()

	c.enforce(ctx, c.nav.Current())
	return errors.Join(errs...)
}

func (c *Client) ready() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.started.Load() {
		return ErrNotStarted
	}
	return nil
}

func (c *Client) onStateEvent(ev state.Event) {
	if ev.Action == state.ActionRehydrate || ev.Action == state.ActionReset {
		return
	}
	if !ev.SessionChanged() {
		return
	}
	// The invalidator navigates once itself.
	if c.invalidator.State() == invalidate.Invalidating {
		return
	}
	c.enforce(context.Background(), c.nav.Current())
}

func (c *Client) enforce(ctx context.Context, path string) route.Decision {
	d := c.guard.Enforce(c.nav, c.store.Session(), path)
	if d.Redirect {
		c.metrics.Inc(MetricRouteRedirect)
		c.emit(ctx, Event{
			Type:     EventRouteRedirect,
			UserID:   c.store.Session().UserID(),
			Path:     d.Path,
			Success:  true,
			Metadata: map[string]string{"from": route.Clean(path), "reason": d.Reason},
		})
	}
	return d
}

// Navigate asks to move to path. The guard may redirect instead; the
// returned decision says where the client ended up.
func (c *Client) Navigate(path string) (route.Decision, error) {
	if err := c.ready(); err != nil {
		return route.Decision{}, err
	}
	d := c.guard.Decide(c.store.Session(), path)
	if !d.Redirect {
		c.nav.Push(d.Path)
		return d, nil
	}
	return c.enforce(context.Background(), path), nil
}

// Path returns the current location.
func (c *Client) Path() string {
	return c.nav.Current()
}

// Session returns the current identity.
func (c *Client) Session() state.Session {
	return c.store.Session()
}

// State exposes the in-memory store for reads, notifications and UI actions.
func (c *Client) State() *state.Store {
	return c.store
}

// API exposes the REST gateway for calls outside the auth endpoints.
func (c *Client) API() *api.Client {
	return c.api
}

// Tokens exposes the token store.
func (c *Client) Tokens() *token.Store {
	return c.tokens
}

// Metrics returns the counters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports lifecycle events lost to dispatcher backpressure.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Config returns a copy of the configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.cfg)
}

// Invalidate runs the session teardown. Manual callers choose whether the
// "Session Expired" notification is shown.
func (c *Client) Invalidate(ctx context.Context, notify bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.invalidator.Invalidate(ctx, notify)
}

// ExpireSession forces the same teardown an unauthorized response triggers,
// including the notification.
func (c *Client) ExpireSession(ctx context.Context) error {
	return c.Invalidate(ctx, true)
}

// PurgePersist deletes every persisted slice and resets them to initial
// state, then reconciles so no orphan token survives. On failure an error
// notification is shown and the call may be retried.
func (c *Client) PurgePersist(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.persistor.Purge(ctx); err != nil {
		c.store.Notify(state.NotifyError, "Purge failed", "Saved data could not be cleared. Try again.")
		c.emit(ctx, Event{Type: EventPersistFailure, Error: err.Error(), Metadata: map[string]string{"op": "purge"}})
		return err
	}
	c.metrics.Inc(MetricPersistPurge)
	_, err := c.gate.Reconcile(ctx)
	c.enforce(ctx, c.nav.Current())
	c.emit(ctx, Event{Type: EventPersistPurged, Success: err == nil})
	return err
}

// Flush writes pending persisted changes now.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.persistor.Flush(ctx); err != nil {
		c.store.Notify(state.NotifyError, "Save failed", "Changes could not be saved.")
		return err
	}
	return nil
}

// Pause suspends persistence until [Client.Resume].
func (c *Client) Pause() {
	c.persistor.Pause()
}

// Resume re-enables persistence.
func (c *Client) Resume() {
	c.persistor.Resume()
}

// Health reports lifecycle and consistency flags.
func (c *Client) Health(ctx context.Context) Health {
	sess := c.store.Session()
	_, headerSet := c.tokens.Header().Value()
	h := Health{
		Started:       c.started.Load(),
		Persist:       c.persistor.HealthCheck(),
		PersistPaused: c.persistor.Paused(),
		Authenticated: sess.IsAuthenticated,
		UserID:        sess.UserID(),
		HeaderSet:     headerSet,
		Invalidation:  c.invalidator.State().String(),
		Path:          c.nav.Current(),
		EventsDropped: c.events.Dropped(),
	}
	if _, ok, err := c.tokens.Token(ctx); err != nil {
		h.StorageError = err.Error()
	} else {
		h.TokenStored = ok
	}
	keys, err := c.storage.Keys(ctx)
	if err != nil {
		if h.StorageError == "" {
			h.StorageError = err.Error()
		}
		return h
	}
	h.StoredKeys = keys
	return h
}

// Close flushes pending writes, detaches subscriptions and drains events.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}

	var err error
	if c.started.Load() {
		err = c.persistor.Close(ctx)
	}
	c.events.Close()
	return err
}

func (c *Client) emit(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now().UTC()
	}
	c.events.Emit(ctx, ev)
}

// onUnauthorized invalidates the session the failing request was sent
// under. A 401 for a credential that has since been replaced by a login or
// a token clear belongs to a session that is already gone.
func (c *Client) onUnauthorized(ctx context.Context) {
	if !c.started.Load() {
		return
	}
	if sent, ok := middleware.SentCredential(ctx); ok && sent.Generation != c.tokens.Generation() {
		c.logger.InfoContext(ctx, "ignoring unauthorized response for a replaced credential",
			slog.Uint64("sent_generation", sent.Generation),
			slog.Uint64("current_generation", c.tokens.Generation()),
		)
		return
	}
	if err := c.invalidator.Invalidate(ctx, c.cfg.Session.NotifyOnUnauthorized); err != nil {
		c.logger.WarnContext(ctx, "session invalidation finished with errors",
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) notifySessionExpired(context.Context) error {
	c.store.Notify(state.NotifyWarning, invalidate.SessionExpiredTitle, c.cfg.Session.ExpiredMessage)
	return nil
}

func (c *Client) onInvalidation(out invalidate.Outcome) {
	c.metrics.Inc(MetricSessionInvalidated)
	ev := Event{
		Type:     EventSessionInvalidated,
		Path:     c.guard.SignIn(),
		Success:  out.Err == nil,
		Metadata: map[string]string{"notified": fmt.Sprint(out.Notified)},
	}
	if out.HardRedirect {
		c.metrics.Inc(MetricInvalidationHardRedirect)
		ev.Metadata["redirect"] = "hard"
		ev.Error = out.Err.Error()
	}
	c.emit(context.Background(), ev)
}

func (c *Client) onReconcile(action restore.Action) {
	switch action {
	case restore.ActionStaleSession:
		c.metrics.Inc(MetricReconcileStaleSession)
	case restore.ActionMissingUser:
		c.metrics.Inc(MetricReconcileMissingUser)
	case restore.ActionOrphanToken:
		c.metrics.Inc(MetricReconcileOrphanToken)
	default:
		return
	}
	c.emit(context.Background(), Event{
		Type:     EventSessionReconciled,
		Success:  true,
		Metadata: map[string]string{"action": string(action)},
	})
}

func (c *Client) onPersistWrite(slice string, err error) {
	if err == nil {
		c.metrics.Inc(MetricPersistWrite)
		return
	}
	c.metrics.Inc(MetricPersistWriteFailure)
	c.emit(context.Background(), Event{
		Type:     EventPersistFailure,
		Error:    err.Error(),
		Metadata: map[string]string{"slice": slice},
	})
}

func (c *Client) onPersistDiscard(string, string) {
	c.metrics.Inc(MetricPersistDiscarded)
}

func (c *Client) onAPIResult(r api.Result) {
	c.metrics.Observe(MetricRequestLatency, r.Elapsed)
	switch r.Kind {
	case api.KindUnknown:
		c.metrics.Inc(MetricRequestSuccess)
	case api.KindUnauthorized:
		c.metrics.Inc(MetricUnauthorizedResponse)
	case api.KindForbidden:
		c.metrics.Inc(MetricForbiddenResponse)
	case api.KindServer:
		c.metrics.Inc(MetricServerErrorResponse)
	case api.KindClient:
		c.metrics.Inc(MetricClientErrorResponse)
	case api.KindNetwork:
		c.metrics.Inc(MetricNetworkError)
	}
}

func (c *Client) onHardRedirect(path string) {
	c.logger.Warn("hard redirect", slog.String("path", path))
}

// trackingNavigator remembers the last location it was sent to.
type trackingNavigator struct {
	next   route.Navigator
	onHard func(string)

	mu   sync.Mutex
	path string
}

func (n *trackingNavigator) set(p string) {
	n.mu.Lock()
	n.path = route.Clean(p)
	n.mu.Unlock()
}

func (n *trackingNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *trackingNavigator) Push(p string) {
	n.set(p)
	n.next.Push(p)
}

func (n *trackingNavigator) Replace(p string) {
	n.set(p)
	n.next.Replace(p)
}

func (n *trackingNavigator) HardRedirect(p string) {
	n.set(p)
	n.next.HardRedirect(p)
	if n.onHard != nil {
		n.onHard(p)
	}
}
