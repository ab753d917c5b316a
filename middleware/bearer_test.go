package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeTokens struct {
	token string
	ok    bool
	err   error
}

func (f fakeTokens) Token(context.Context) (string, bool, error) {
	return f.token, f.ok, f.err
}

type fakeHeader string

func (f fakeHeader) Value() (string, bool) {
	if f == "" {
		return "", false
	}
	return string(f), true
}

func captureTransport(seen *http.Header) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		*seen = r.Header.Clone()
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody, Request: r}, nil
	})
}

func TestBearerAttachesDurableToken(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(fakeTokens{token: "abc", ok: true}, fakeHeader("Bearer stale")))

	req := httptest.NewRequest(http.MethodGet, "http://api.test/products", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := seen.Get("Authorization"); got != "Bearer abc" {
		t.Fatalf("expected durable token, got %q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatal("caller request must not be mutated")
	}
}

func TestBearerSkipsWhenNoToken(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(fakeTokens{}, fakeHeader("Bearer stale")))

	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := seen.Get("Authorization"); got != "" {
		t.Fatalf("absent durable token must not fall back to mirror, got %q", got)
	}
}

func TestBearerFallsBackToMirrorOnStorageError(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(fakeTokens{err: errors.New("down")}, fakeHeader("Bearer mirror")))

	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := seen.Get("Authorization"); got != "Bearer mirror" {
		t.Fatalf("expected mirror header, got %q", got)
	}
}

func TestBearerKeepsExplicitAuthorization(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(fakeTokens{token: "abc", ok: true}, nil))

	req := httptest.NewRequest(http.MethodGet, "http://api.test/", nil)
	req.Header.Set("Authorization", "Basic x")
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := seen.Get("Authorization"); got != "Basic x" {
		t.Fatalf("explicit header overwritten: %q", got)
	}
}

func TestRequestIDAndLoggingRedaction(t *testing.T) {
	var seen http.Header
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rt := Chain(captureTransport(&seen),
		RequestID(),
		Bearer(fakeTokens{token: "supersecret", ok: true}, nil),
		Logging(logger, true),
	)
	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/x", nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if seen.Get(RequestIDHeader) == "" {
		t.Fatal("expected request id")
	}
	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Fatalf("token leaked into logs: %s", out)
	}
	if !strings.Contains(out, "api response") {
		t.Fatalf("expected response log line, got %s", out)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := BearerToken(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

type generationTokens struct {
	fakeTokens
	gen uint64
}

func (g generationTokens) Generation() uint64 { return g.gen }

func TestBearerRecordsSentCredential(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(generationTokens{fakeTokens{token: "abc", ok: true}, 7}, nil))

	ctx := WithCredentialSlot(context.Background())
	req := httptest.NewRequest(http.MethodGet, "http://api.test/products", nil).WithContext(ctx)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	sent, ok := SentCredential(ctx)
	if !ok || sent.Generation != 7 || !sent.Attached {
		t.Fatalf("unexpected credential %+v ok=%v", sent, ok)
	}

	anon := WithCredentialSlot(context.Background())
	rt = Chain(captureTransport(&seen), Bearer(generationTokens{gen: 3}, nil))
	req = httptest.NewRequest(http.MethodGet, "http://api.test/products", nil).WithContext(anon)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if sent, ok := SentCredential(anon); !ok || sent.Generation != 3 || sent.Attached {
		t.Fatalf("expected unattached generation 3, got %+v ok=%v", sent, ok)
	}
}

func TestSentCredentialWithoutSlot(t *testing.T) {
	var seen http.Header
	rt := Chain(captureTransport(&seen), Bearer(generationTokens{fakeTokens{token: "abc", ok: true}, 1}, nil))
	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if _, ok := SentCredential(context.Background()); ok {
		t.Fatal("no slot means nothing recorded")
	}
	if _, ok := SentCredential(WithCredentialSlot(context.Background())); ok {
		t.Fatal("an unused slot reports nothing")
	}
}
