package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/redseamarket/adminkit/middleware"
	"github.com/redseamarket/adminkit/query"
)

const maxBodyBytes = 4 << 20

// SessionEventSink receives session-level consequences of API failures.
// The context passed to OnUnauthorized carries the credential the failing
// request was sent with; see [middleware.SentCredential].
type SessionEventSink interface {
	OnUnauthorized(ctx context.Context)
}

// SessionEventSinkFunc adapts a function to [SessionEventSink].
type SessionEventSinkFunc func(ctx context.Context)

// OnUnauthorized implements [SessionEventSink].
func (f SessionEventSinkFunc) OnUnauthorized(ctx context.Context) {
	f(ctx)
}

type quietKey struct{}

// WithoutSessionEvents marks ctx so an unauthorized response is returned to
// the caller without reaching the session event sink. Credential exchanges
// such as login use it: their 401 means bad input, not a dead session.
func WithoutSessionEvents(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func sessionEventsSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(quietKey{}).(bool)
	return v
}

// Config controls the REST gateway.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	VerboseLogging    bool
	UnauthorizedCodes []string
	UserAgent         string
}

// Result describes one finished call for metrics hooks.
type Result struct {
	Method  string
	Path    string
	Status  int
	Kind    Kind
	Elapsed time.Duration
}

// Options carries collaborators. Tokens and Sink are required for
// authenticated use; the rest are optional.
type Options struct {
	Tokens    middleware.TokenSource
	Header    middleware.HeaderSource
	Sink      SessionEventSink
	Logger    *slog.Logger
	Transport http.RoundTripper
	OnResult  func(Result)
}

// Client is the REST gateway. Safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	sink       SessionEventSink
	logger     *slog.Logger
	userAgent  string
	unauthCode map[string]bool
	onResult   func(Result)
}

// New builds a [Client]. BaseURL must be absolute.
func New(cfg Config, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	transport := middleware.Chain(opts.Transport,
		middleware.RequestID(),
		middleware.Bearer(opts.Tokens, opts.Header),
		middleware.Logging(logger, cfg.VerboseLogging),
	)

	codes := make(map[string]bool, len(cfg.UnauthorizedCodes))
	for _, c := range cfg.UnauthorizedCodes {
		codes[strings.ToUpper(c)] = true
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		sink:       opts.Sink,
		logger:     logger,
		userAgent:  cfg.UserAgent,
		unauthCode: codes,
		onResult:   opts.OnResult,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get issues GET path?params and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// List issues GET path with structured list parameters.
func (c *Client) List(ctx context.Context, path string, list query.List, out any) error {
	params, err := list.Values()
	if err != nil {
		return &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}
	return c.Get(ctx, path, params, out)
}

// Post issues POST path with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues PUT path with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues PATCH path with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs one call. body is JSON-encoded when non-nil; out receives the
// decoded 2xx body when non-nil. Every failure is an [*Error].
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	status, kind, err := c.do(ctx, method, path, body, out)
	if c.onResult != nil {
		c.onResult(Result{
			Method:  method,
			Path:    path,
			Status:  status,
			Kind:    kind,
			Elapsed: time.Since(start),
		})
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, Kind, error) {
	ctx = middleware.WithCredentialSlot(ctx)
	target, err := c.resolve(path)
	if err != nil {
		return 0, KindClient, &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, KindClient, &Error{Kind: KindClient, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, KindClient, &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		e := c.transportFailure(ctx, method, path, err)
		return 0, e.Kind, e
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		e := c.transportFailure(ctx, method, path, err)
		return resp.StatusCode, e.Kind, e
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, KindDecode, &Error{
					Kind:    KindDecode,
					Status:  resp.StatusCode,
					Message: "unexpected response from server",
					Err:     err,
				}
			}
		}
		return resp.StatusCode, KindUnknown, nil
	}

	apiErr := c.responseFailure(resp.StatusCode, data)
	switch apiErr.Kind {
	case KindUnauthorized:
		c.logger.InfoContext(ctx, "api unauthorized; invalidating session",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", apiErr.Status),
			slog.String("code", apiErr.Code),
		)
		if c.sink != nil && !sessionEventsSuppressed(ctx) {
			c.sink.OnUnauthorized(context.WithoutCancel(ctx))
		}
	case KindForbidden:
		c.logger.WarnContext(ctx, "api forbidden",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("message", apiErr.Message),
		)
	case KindServer:
		c.logger.ErrorContext(ctx, "api server error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", apiErr.Status),
			slog.String("message", apiErr.Message),
		)
	}
	return apiErr.Status, apiErr.Kind, apiErr
}

func (c *Client) resolve(path string) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if rel.IsAbs() {
		return "", fmt.Errorf("path %q must be relative to the base url", path)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return u.String(), nil
}

func (c *Client) transportFailure(ctx context.Context, method, path string, err error) *Error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
	}
	c.logger.WarnContext(ctx, "api network failure",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	return &Error{Kind: KindNetwork, Message: NetworkMessage, Err: err}
}

func (c *Client) responseFailure(status int, data []byte) *Error {
	kind := classifyStatus(status)
	e := &Error{Kind: kind, Status: status}

	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
		e.Code = body.Code
		e.Errors = normalizeFieldErrors(body.Errors)
	}
	if e.Code != "" && c.unauthCode[strings.ToUpper(e.Code)] {
		e.Kind = KindUnauthorized
	}
	if e.Message == "" {
		if text := http.StatusText(status); text != "" {
			e.Message = text
		} else {
			e.Message = fmt.Sprintf("request failed with status %d", status)
		}
	}
	return e
}
