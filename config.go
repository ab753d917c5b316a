package adminkit

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/redseamarket/adminkit/persist"
	"github.com/redseamarket/adminkit/route"
)

// Config is the full client configuration. Start from [DefaultConfig].
type Config struct {
	API     APIConfig
	Persist PersistConfig
	Routes  RoutesConfig
	Session SessionConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

// APIConfig configures the REST gateway and the auth endpoints it calls.
type APIConfig struct {
	BaseURL        string
	Timeout        time.Duration
	VerboseLogging bool
	UserAgent      string
	// UnauthorizedCodes are application error codes treated like a 401.
	UnauthorizedCodes []string

	LoginPath   string
	LogoutPath  string
	MePath      string
	ProfilePath string
}

// PersistConfig configures write-on-change persistence.
type PersistConfig struct {
	Debounce   time.Duration
	Migrations map[string]persist.MigrateFunc
}

// RoutesConfig configures the route guard.
type RoutesConfig struct {
	SignIn    string
	Landing   string
	Forbidden string
	Public    []string
	Rules     []route.Rule
}

// SessionConfig configures reconciliation and invalidation.
type SessionConfig struct {
	// TreatExpiredAsAbsent drops stored JWTs whose exp has passed on start.
	TreatExpiredAsAbsent bool
	// NotifyOnUnauthorized emits the "Session Expired" notification when the
	// backend rejects the token.
	NotifyOnUnauthorized bool
	ExpiredMessage       string
}

// EventsConfig controls lifecycle event dispatch.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by the admin console.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8080/api",
			Timeout:           15 * time.Second,
			UserAgent:         "rsm-admin",
			UnauthorizedCodes: []string{"TOKEN_EXPIRED", "INVALID_TOKEN", "UNAUTHORIZED"},
			LoginPath:         "/auth/login",
			LogoutPath:        "/auth/logout",
			MePath:            "/auth/me",
			ProfilePath:       "/auth/profile",
		},
		Persist: PersistConfig{
			Debounce: persist.DefaultDebounce,
		},
		Routes: RoutesConfig{
			SignIn:    route.DefaultSignIn,
			Landing:   route.DefaultLanding,
			Forbidden: route.DefaultForbidden,
		},
		Session: SessionConfig{
			NotifyOnUnauthorized: true,
			ExpiredMessage:       "Your session has expired. Please sign in again.",
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.API.UnauthorizedCodes = slices.Clone(cfg.API.UnauthorizedCodes)
	out.Persist.Migrations = maps.Clone(cfg.Persist.Migrations)
	out.Routes.Public = slices.Clone(cfg.Routes.Public)
	out.Routes.Rules = slices.Clone(cfg.Routes.Rules)
	return out
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API BaseURL must be an absolute URL, got %q", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL scheme must be http or https")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	for name, p := range map[string]string{
		"LoginPath":   c.API.LoginPath,
		"LogoutPath":  c.API.LogoutPath,
		"MePath":      c.API.MePath,
		"ProfilePath": c.API.ProfilePath,
	} {
		if p == "" {
			return fmt.Errorf("API %s must be set", name)
		}
	}
	if c.Persist.Debounce < 0 {
		return errors.New("Persist Debounce must be >= 0")
	}
	if c.Routes.SignIn == "" || c.Routes.Landing == "" {
		return errors.New("Routes SignIn and Landing must be set")
	}
	if route.Clean(c.Routes.SignIn) == route.Clean(c.Routes.Landing) {
		return errors.New("Routes SignIn and Landing must differ")
	}
	for _, r := range c.Routes.Rules {
		if r.Prefix == "" || r.Permission == "" {
			return errors.New("Routes Rules need both Prefix and Permission")
		}
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when events are enabled")
	}
	return nil
}
