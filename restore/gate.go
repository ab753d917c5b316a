package restore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redseamarket/adminkit/state"
	"github.com/redseamarket/adminkit/token"
)

// Action is what a reconciliation pass did.
type Action string

const (
	// ActionNone means storage and memory already agree on a logged-out session.
	ActionNone Action = "none"
	// ActionApplyHeader is the normal case: the header mirrors the stored token.
	ActionApplyHeader Action = "apply-header"
	// ActionStaleSession forces logout because no token backs the session.
	ActionStaleSession Action = "stale-session"
	// ActionMissingUser forces logout because no user backs the flag.
	ActionMissingUser Action = "missing-user"
	// ActionOrphanToken removes a token no session claims.
	ActionOrphanToken Action = "orphan-token"
)

// Decide is the reconciliation table.
//
//	auth  user     token    action
//	true  present  present  apply header
//	true  present  absent   force logout, clear header
//	true  absent   any      force logout, clear header and token
//	false any      present  clear orphan token
//	false any      absent   none
func Decide(authenticated, hasUser, hasToken bool) Action {
	switch {
	case authenticated && !hasUser:
		return ActionMissingUser
	case authenticated && hasToken:
		return ActionApplyHeader
	case authenticated:
		return ActionStaleSession
	case hasToken:
		return ActionOrphanToken
	default:
		return ActionNone
	}
}

// TokenStore is the subset of [token.Store] the gate drives.
type TokenStore interface {
	Token(ctx context.Context) (string, bool, error)
	ClearToken(ctx context.Context) error
	ClearHeader()
	ApplyHeader(token string)
}

// Session is the subset of [state.Store] the gate reads and resets.
type Session interface {
	Auth() state.AuthState
	Logout()
}

// Options tunes a [Gate].
type Options struct {
	// TreatExpiredAsAbsent makes a JWT whose exp has passed count as no
	// token. The expired token is removed from storage.
	TreatExpiredAsAbsent bool
	Now                  func() time.Time
	Logger               *slog.Logger
	OnReconcile          func(Action)
}

// Gate performs reconciliation passes. Safe for concurrent use.
type Gate struct {
	tokens  TokenStore
	session Session
	opts    Options
	logger  *slog.Logger
}

// NewGate builds a gate over tokens and session.
func NewGate(tokens TokenStore, session Session, opts Options) *Gate {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{tokens: tokens, session: session, opts: opts, logger: logger}
}

// Reconcile runs one pass. A token read failure leaves everything untouched
// and is returned; clearing failures are returned after the in-memory side
// has been corrected.
func (g *Gate) Reconcile(ctx context.Context) (Action, error) {
	raw, hasToken, err := g.tokens.Token(ctx)
	if err != nil {
		return ActionNone, fmt.Errorf("read token: %w", err)
	}
	expired := false
	if hasToken && g.opts.TreatExpiredAsAbsent {
		if info, ok := token.Inspect(raw); ok && info.Expired(g.opts.Now()) {
			hasToken, expired = false, true
		}
	}

	auth := g.session.Auth()
	action := Decide(auth.IsAuthenticated, auth.User != nil, hasToken)

	switch action {
	case ActionApplyHeader:
		g.tokens.ApplyHeader(raw)
	case ActionStaleSession:
		g.tokens.ClearHeader()
		g.session.Logout()
	case ActionMissingUser:
		err = g.tokens.ClearToken(ctx)
		g.session.Logout()
	case ActionOrphanToken:
		err = g.tokens.ClearToken(ctx)
	}
	if expired && action != ActionMissingUser {
		err = g.tokens.ClearToken(ctx)
	}

	if action != ActionNone && action != ActionApplyHeader {
		g.logger.InfoContext(ctx, "session reconciled", slog.String("action", string(action)))
	}
	if g.opts.OnReconcile != nil {
		g.opts.OnReconcile(action)
	}
	if err != nil {
		return action, fmt.Errorf("reconcile %s: %w", action, err)
	}
	return action, nil
}

// Watch re-runs Reconcile whenever a store event changes the authenticated
// flag or user identity. Events raised while the persistor installs values
// are skipped; the caller reconciles explicitly after rehydration. It
// returns the unsubscribe function.
func (g *Gate) Watch(store *state.Store) func() {
	return store.Subscribe(func(ev state.Event) {
		if ev.Action == state.ActionRehydrate || ev.Action == state.ActionReset {
			return
		}
		if !ev.SessionChanged() {
			return
		}
		if _, err := g.Reconcile(context.Background()); err != nil {
			g.logger.Warn("session reconcile failed", slog.String("error", err.Error()))
		}
	})
}
