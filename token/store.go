package token

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/redseamarket/adminkit/storage"
)

// ErrEmptyToken is returned by SetToken for an empty credential.
var ErrEmptyToken = errors.New("empty token")

// Store synchronizes the durable token slot with the default header.
type Store struct {
	storage storage.Storage
	header  *Header
	gen     atomic.Uint64
}

// NewStore creates a token [Store]. A nil header gets a fresh mirror.
func NewStore(s storage.Storage, header *Header) *Store {
	if header == nil {
		header = NewHeader()
	}
	return &Store{
		storage: s,
		header:  header,
	}
}

// Header returns the mirror shared with the HTTP client.
func (s *Store) Header() *Header {
	return s.header
}

// SetToken persists token under authToken and sets the default header.
// The header is set even if the durable write fails so the running process
// stays usable; the error is still returned.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.gen.Add(1)
	s.header.set(token)
	return s.storage.Set(ctx, storage.KeyAuthToken, token)
}

// ClearToken removes authToken and deletes the default header. Idempotent.
func (s *Store) ClearToken(ctx context.Context) error {
	s.gen.Add(1)
	s.header.clear()
	return s.storage.Remove(ctx, storage.KeyAuthToken)
}

// Generation counts SetToken and ClearToken calls. A request sent under an
// older generation carried a credential that has since been replaced.
func (s *Store) Generation() uint64 {
	return s.gen.Load()
}

// ClearHeader drops the in-memory header without touching durable storage.
func (s *Store) ClearHeader() {
	s.header.clear()
}

// ApplyHeader mirrors token into the default header without writing storage.
// Used by session restoration when the durable slot already holds token.
func (s *Store) ApplyHeader(token string) {
	if token == "" {
		s.header.clear()
		return
	}
	s.header.set(token)
}

// Token reads the durable token. An empty stored value counts as absent.
func (s *Store) Token(ctx context.Context) (string, bool, error) {
	v, ok, err := s.storage.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return "", false, err
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// SetRefreshToken persists the refresh credential. Empty clears it.
func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return s.storage.Remove(ctx, storage.KeyRefreshToken)
	}
	return s.storage.Set(ctx, storage.KeyRefreshToken, token)
}

// RefreshToken reads the durable refresh credential.
func (s *Store) RefreshToken(ctx context.Context) (string, bool, error) {
	v, ok, err := s.storage.Get(ctx, storage.KeyRefreshToken)
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return v, true, nil
}
