package adminkit

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redseamarket/adminkit/api"
	"github.com/redseamarket/adminkit/internal/events"
	"github.com/redseamarket/adminkit/invalidate"
	"github.com/redseamarket/adminkit/persist"
	"github.com/redseamarket/adminkit/restore"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/state"
	"github.com/redseamarket/adminkit/storage"
	"github.com/redseamarket/adminkit/token"
)

// Builder assembles a [Client]. Configure it during initialization, then
// call Build once.
type Builder struct {
	config    Config
	storage   storage.Storage
	logger    *slog.Logger
	navigator route.Navigator
	eventSink EventSink
	transport http.RoundTripper
	now       func() time.Time

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage sets the durable key-value backend. Required.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storage = s
	return b
}

// WithLogger sets the structured logger. Nil discards logs.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithNavigator sets the navigator. The default is an in-memory
// [route.History] starting on the sign-in path. A navigator with a
// Current() string method supplies the starting path itself.
func (b *Builder) WithNavigator(n route.Navigator) *Builder {
	b.navigator = n
	return b
}

// WithEventSink sets the lifecycle event sink.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithHTTPTransport sets the innermost HTTP transport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if b.storage == nil {
		return nil, ErrStorageRequired
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	guard, err := route.NewGuard(route.Config{
		SignIn:    cfg.Routes.SignIn,
		Landing:   cfg.Routes.Landing,
		Forbidden: cfg.Routes.Forbidden,
		Public:    cfg.Routes.Public,
		Rules:     cfg.Routes.Rules,
	})
	if err != nil {
		return nil, err
	}

	nav := b.navigator
	if nav == nil {
		nav = route.NewHistory(guard.SignIn())
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		storage: b.storage,
		tokens:  token.NewStore(b.storage, nil),
		store:   state.NewStore(),
		guard:   guard,
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}
	c.nav = &trackingNavigator{next: nav, path: guard.SignIn(), onHard: c.onHardRedirect}
	if cur, ok := nav.(interface{ Current() string }); ok {
		c.nav.path = cur.Current()
	}

	c.events = events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.eventSink, logger)

	c.persistor = persist.New(b.storage, persist.Config{
		Debounce:   cfg.Persist.Debounce,
		Migrations: cfg.Persist.Migrations,
		Logger:     logger.With(slog.String("component", "persist")),
		OnWrite:    c.onPersistWrite,
		OnDiscard:  c.onPersistDiscard,
	}, c.store.AuthSlice(), c.store.UISlice(), c.store.ProductsSlice())

	c.gate = restore.NewGate(c.tokens, c.store, restore.Options{
		TreatExpiredAsAbsent: cfg.Session.TreatExpiredAsAbsent,
		Now:                  now,
		Logger:               logger.With(slog.String("component", "restore")),
		OnReconcile:          c.onReconcile,
	})

	c.invalidator, err = invalidate.New(invalidate.Options{
		Storage:    b.storage,
		Header:     c.tokens,
		Slices:     c.persistor,
		SliceNames: []string{state.SliceAuth},
		Session:    c.store,
		Notifier:   invalidate.NotifierFunc(c.notifySessionExpired),
		Navigator:  c.nav,
		SignInPath: guard.SignIn(),
		Logger:     logger.With(slog.String("component", "invalidate")),
		OnOutcome:  c.onInvalidation,
	})
	if err != nil {
		return nil, err
	}

	c.api, err = api.New(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		VerboseLogging:    cfg.API.VerboseLogging,
		UnauthorizedCodes: cfg.API.UnauthorizedCodes,
		UserAgent:         cfg.API.UserAgent,
	}, api.Options{
		Tokens:    c.tokens,
		Header:    c.tokens.Header(),
		Sink:      api.SessionEventSinkFunc(c.onUnauthorized),
		Logger:    logger.With(slog.String("component", "api")),
		Transport: b.transport,
		OnResult:  c.onAPIResult,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	b.built = true
	return c, nil
}
