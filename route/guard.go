package route

import (
	"errors"
	"path"
	"strings"

	"github.com/redseamarket/adminkit/state"
)

// Default paths.
const (
	DefaultSignIn    = "/login"
	DefaultLanding   = "/dashboard"
	DefaultForbidden = "/403"
)

// Reasons carried by [Decision].
const (
	ReasonRender        = "render"
	ReasonAuthenticated = "authenticated"
	ReasonSignInNeeded  = "sign-in-required"
	ReasonForbidden     = "forbidden"
)

// Navigator changes the current location.
type Navigator interface {
	Push(path string)
	Replace(path string)
	HardRedirect(path string)
}

// Rule requires Permission for every path under Prefix.
type Rule struct {
	Prefix     string `mapstructure:"prefix" json:"prefix"`
	Permission string `mapstructure:"permission" json:"permission"`
}

// Config names the guard's boundaries.
type Config struct {
	SignIn    string
	Landing   string
	Forbidden string
	// Public paths are reachable without a session.
	Public []string
	Rules  []Rule
}

// Decision is the guard's verdict for one path.
type Decision struct {
	Redirect bool
	Path     string
	Reason   string
}

// Guard evaluates navigation requests.
type Guard struct {
	cfg Config
}

// NewGuard normalizes cfg. Empty paths take the defaults.
func NewGuard(cfg Config) (*Guard, error) {
	if cfg.SignIn == "" {
		cfg.SignIn = DefaultSignIn
	}
	if cfg.Landing == "" {
		cfg.Landing = DefaultLanding
	}
	if cfg.Forbidden == "" {
		cfg.Forbidden = DefaultForbidden
	}
	cfg.SignIn = Clean(cfg.SignIn)
	cfg.Landing = Clean(cfg.Landing)
	cfg.Forbidden = Clean(cfg.Forbidden)
	if cfg.SignIn == cfg.Landing {
		return nil, errors.New("route: sign-in and landing paths must differ")
	}
	public := make([]string, 0, len(cfg.Public))
	for _, p := range cfg.Public {
		public = append(public, Clean(p))
	}
	cfg.Public = public
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.Prefix == "" || r.Permission == "" {
			continue
		}
		rules = append(rules, Rule{Prefix: Clean(r.Prefix), Permission: r.Permission})
	}
	cfg.Rules = rules
	return &Guard{cfg: cfg}, nil
}

// SignIn returns the sign-in path.
func (g *Guard) SignIn() string { return g.cfg.SignIn }

// Landing returns the default protected path.
func (g *Guard) Landing() string { return g.cfg.Landing }

// Decide returns where a session may go when it asks for p.
func (g *Guard) Decide(sess state.Session, p string) Decision {
	p = Clean(p)
	if sess.IsAuthenticated {
		if p == g.cfg.SignIn {
			return Decision{Redirect: true, Path: g.cfg.Landing, Reason: ReasonAuthenticated}
		}
		if p != g.cfg.Forbidden {
			for _, r := range g.cfg.Rules {
				if under(p, r.Prefix) && !sess.User.Can(r.Permission) {
					return Decision{Redirect: true, Path: g.cfg.Forbidden, Reason: ReasonForbidden}
				}
			}
		}
		return Decision{Path: p, Reason: ReasonRender}
	}

	if p == g.cfg.SignIn || g.public(p) {
		return Decision{Path: p, Reason: ReasonRender}
	}
	return Decision{Redirect: true, Path: g.cfg.SignIn, Reason: ReasonSignInNeeded}
}

// Enforce decides for p and, on a redirect, replaces the location.
func (g *Guard) Enforce(nav Navigator, sess state.Session, p string) Decision {
	d := g.Decide(sess, p)
	if d.Redirect {
		nav.Replace(d.Path)
	}
	return d
}

func (g *Guard) public(p string) bool {
	for _, pub := range g.cfg.Public {
		if under(p, pub) {
			return true
		}
	}
	return false
}

// Clean strips the query and fragment and normalizes slashes.
func Clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func under(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
