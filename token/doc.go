// Package token owns the bearer credential: its durable slot and the
// in-memory default Authorization header mirrored for outbound requests.
//
// [Store] is the only writer of the authToken and refreshToken keys and of the
// [Header] mirror. The HTTP client reads the mirror but never writes it.
//
// # What this package must NOT do
//
//   - Verify token signatures (the backend does that); [Inspect] only decodes.
//   - Touch persisted state blobs.
package token
