// Package storage provides the durable key-value slot used by the session core.
//
// It is the Go counterpart of the browser's local key-value store: a flat
// string-to-string namespace holding the bearer token, the refresh token and
// the persisted state blobs.
//
// # Backends
//
//   - [Redis]: go-redis backed, shared across processes and hosts.
//   - [File]: a single JSON document on local disk for one operator.
//
// An embedded Redis (miniredis) can be plugged into [Redis] for local runs
// without an external server.
//
// # Architecture boundaries
//
// This package stores opaque strings. It does NOT interpret tokens, encode
// state envelopes, or decide which keys belong to a session; callers name
// their keys explicitly (see the Key constants).
//
// # What this package must NOT do
//
//   - Import token, persist, state or any package above it.
//   - Fail on removal of a key that does not exist.
package storage
