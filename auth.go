package adminkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redseamarket/adminkit/api"
	"github.com/redseamarket/adminkit/state"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Data struct {
		Token        string      `json:"token"`
		RefreshToken string      `json:"refreshToken,omitempty"`
		User         *state.User `json:"user"`
	} `json:"data"`
}

type userResponse struct {
	Data *state.User `json:"data"`
}

// Login exchanges credentials for a session. On success the token is stored
// before the session is installed, so the reconciler sees a backed session
// and the guard leaves the sign-in path.
func (c *Client) Login(ctx context.Context, creds Credentials) (*state.User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	creds.Email = strings.TrimSpace(creds.Email)

	c.store.LoginStart()
	var resp loginResponse
	err := c.api.Post(api.WithoutSessionEvents(ctx), c.cfg.API.LoginPath, creds, &resp)
	if err != nil {
		return nil, c.loginFailed(ctx, creds.Email, err)
	}
	if resp.Data.Token == "" || resp.Data.User == nil {
		return nil, c.loginFailed(ctx, creds.Email, ErrMalformedLogin)
	}

	if err := c.tokens.SetToken(ctx, resp.Data.Token); err != nil {
		c.tokens.ClearHeader()
		return nil, c.loginFailed(ctx, creds.Email, fmt.Errorf("store token: %w", err))
	}
	if err := c.tokens.SetRefreshToken(ctx, resp.Data.RefreshToken); err != nil {
		c.logger.WarnContext(ctx, "refresh token not stored", slog.String("error", err.Error()))
	}

	c.invalidator.Reset()
	c.store.LoginSuccess(resp.Data.User)

	user := resp.Data.User
	c.store.Notify(state.NotifySuccess, "Login successful", "Welcome back, "+user.FullName()+"!")
	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, Event{Type: EventLoginSuccess, UserID: user.ID, Success: true})
	c.logger.InfoContext(ctx, "login succeeded", slog.String("user_id", user.ID))
	return user.Clone(), nil
}

func (c *Client) loginFailed(ctx context.Context, email string, err error) error {
	message := "Login failed"
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		message = apiErr.Message
		if apiErr.Kind == api.KindUnauthorized || apiErr.Status == 400 {
			err = fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
	}
	c.store.LoginFailure(message)
	c.store.Notify(state.NotifyError, "Login failed", message)
	c.metrics.Inc(MetricLoginFailure)
	c.emit(ctx, Event{
		Type:     EventLoginFailure,
		Error:    err.Error(),
		Metadata: map[string]string{"email": email},
	})
	c.logger.InfoContext(ctx, "login failed", slog.String("error", err.Error()))
	return err
}

// Logout tells the backend (best effort) and then tears the session down
// locally, ending on the sign-in path. Local cleanup never waits on the
// backend's answer.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	userID := c.store.Session().UserID()

	if _, ok, _ := c.tokens.Token(ctx); ok {
		if err := c.api.Post(api.WithoutSessionEvents(ctx), c.cfg.API.LogoutPath, nil, nil); err != nil {
			c.logger.InfoContext(ctx, "server logout failed; continuing locally", slog.String("error", err.Error()))
		}
	}

	err := c.invalidator.Invalidate(ctx, false)
	c.store.Notify(state.NotifyInfo, "Logged out", "You have been signed out.")
	c.metrics.Inc(MetricLogout)
	c.emit(ctx, Event{Type: EventLogout, UserID: userID, Success: err == nil})
	return err
}

// Me fetches the current user and refreshes the session copy.
func (c *Client) Me(ctx context.Context) (*state.User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if !c.store.Session().IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	var resp userResponse
	if err := c.api.Get(ctx, c.cfg.API.MePath, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: empty user", api.ErrDecode)
	}
	c.store.ReplaceUser(resp.Data)
	return resp.Data.Clone(), nil
}

// UpdateProfile sends patch to the backend and installs a new user value:
// the server's copy when it returns one, otherwise the patched local copy.
func (c *Client) UpdateProfile(ctx context.Context, patch state.ProfilePatch) (*state.User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if !c.store.Session().IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	var resp userResponse
	if err := c.api.Put(ctx, c.cfg.API.ProfilePath, patch, &resp); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind == api.KindClient {
			c.store.Notify(state.NotifyError, "Profile not updated", apiErr.Message)
		}
		return nil, err
	}
	if resp.Data != nil {
		c.store.ReplaceUser(resp.Data)
	} else {
		c.store.UpdateProfile(patch)
	}
	c.store.Notify(state.NotifySuccess, "Profile updated", "")
	return c.store.Session().User.Clone(), nil
}
