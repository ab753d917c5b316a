package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/redseamarket/adminkit/storage"
)

func newTokenStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(storage.NewRedis(rdb, ""), nil), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestSetTokenWritesStorageAndHeader(t *testing.T) {
	s, mr, done := newTokenStoreTest(t)
	defer done()

	if err := s.SetToken(context.Background(), "abc"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if got, _ := mr.Get(storage.KeyAuthToken); got != "abc" {
		t.Fatalf("expected durable token abc, got %q", got)
	}
	if v, ok := s.Header().Value(); !ok || v != "Bearer abc" {
		t.Fatalf("unexpected header %q ok=%v", v, ok)
	}
}

func TestSetThenClearLeavesNothingBehind(t *testing.T) {
	for _, tok := range []string{"abc", "with space", "äöü", "eyJhbGciOiJIUzI1NiJ9.e30.sig"} {
		s, mr, done := newTokenStoreTest(t)
		ctx := context.Background()

		if err := s.SetToken(ctx, tok); err != nil {
			t.Fatalf("set %q: %v", tok, err)
		}
		if err := s.ClearToken(ctx); err != nil {
			t.Fatalf("clear %q: %v", tok, err)
		}
		if err := s.ClearToken(ctx); err != nil {
			t.Fatalf("second clear %q must be a no-op: %v", tok, err)
		}
		if mr.Exists(storage.KeyAuthToken) {
			t.Fatalf("token key survived clear for %q", tok)
		}
		if _, ok := s.Header().Value(); ok {
			t.Fatalf("header survived clear for %q", tok)
		}
		done()
	}
}

func TestSetTokenRejectsEmpty(t *testing.T) {
	s, _, done := newTokenStoreTest(t)
	defer done()
	if err := s.SetToken(context.Background(), ""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestTokenTreatsEmptyValueAsAbsent(t *testing.T) {
	s, mr, done := newTokenStoreTest(t)
	defer done()
	_ = mr.Set(storage.KeyAuthToken, "")

	if _, ok, err := s.Token(context.Background()); err != nil || ok {
		t.Fatalf("expected absent token, ok=%v err=%v", ok, err)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s, mr, done := newTokenStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := s.SetRefreshToken(ctx, "r1"); err != nil {
		t.Fatalf("set refresh: %v", err)
	}
	if v, ok, _ := s.RefreshToken(ctx); !ok || v != "r1" {
		t.Fatalf("unexpected refresh token %q", v)
	}
	if err := s.SetRefreshToken(ctx, ""); err != nil {
		t.Fatalf("clear refresh: %v", err)
	}
	if mr.Exists(storage.KeyRefreshToken) {
		t.Fatal("expected refresh token removed")
	}
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	info, ok := Inspect(raw)
	if !ok {
		t.Fatal("expected JWT to be inspectable")
	}
	if info.Subject != "u-1" || !info.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.Expired(time.Now()) {
		t.Fatal("expected token to be expired")
	}

	if _, ok := Inspect("opaque-token"); ok {
		t.Fatal("opaque token must not be inspectable")
	}
	if (Info{}).Expired(time.Now()) {
		t.Fatal("token without exp must not expire")
	}
}

func TestGenerationCountsCredentialChanges(t *testing.T) {
	s, _, done := newTokenStoreTest(t)
	defer done()
	ctx := context.Background()

	g0 := s.Generation()
	_ = s.SetToken(ctx, "abc")
	g1 := s.Generation()
	s.ApplyHeader("abc")
	s.ClearHeader()
	if s.Generation() != g1 || g1 == g0 {
		t.Fatalf("only SetToken and ClearToken advance the generation: %d %d %d", g0, g1, s.Generation())
	}
	_ = s.ClearToken(ctx)
	_ = s.SetToken(ctx, "abc")
	if s.Generation() != g1+2 {
		t.Fatalf("expected generation %d, got %d", g1+2, s.Generation())
	}
	if err := s.SetToken(ctx, ""); err == nil || s.Generation() != g1+2 {
		t.Fatal("a rejected token must not advance the generation")
	}
}
