package storage

import (
	"context"
	"errors"
)

// Well-known durable keys. The session invalidator removes these by name,
// never by prefix scan.
const (
	KeyAuthToken       = "authToken"
	KeyRefreshToken    = "refreshToken"
	KeyPersistRoot     = "persist:root"
	KeyPersistAuth     = "persist:auth"
	KeyPersistUI       = "persist:ui"
	KeyPersistProducts = "persist:products"
)

// SessionKeys lists every key that carries session material.
var SessionKeys = []string{
	KeyAuthToken,
	KeyRefreshToken,
	KeyPersistAuth,
	KeyPersistRoot,
}

// ErrUnavailable is returned when the backing store cannot be reached or written.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is a durable string key-value store.
//
// Implementations must be safe for concurrent use. Remove must be idempotent.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}
