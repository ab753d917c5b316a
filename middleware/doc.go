// Package middleware provides outbound HTTP interceptors (http.RoundTripper
// wrappers) for the admin API client.
//
// # Interceptors
//
//   - [Bearer]: attaches the current bearer token, read from durable storage
//     on every request.
//   - [RequestID]: stamps an X-Request-ID on every request.
//   - [Logging]: structured request/response logging; verbose mode adds
//     headers with credentials redacted.
//
// Interceptors compose with [Chain]; the first listed runs outermost.
//
// # Architecture boundaries
//
// This package translates token/session state into HTTP headers. It does NOT
// classify responses or invalidate sessions; that is the api package's job.
//
// # What this package must NOT do
//
//   - Mutate the caller's *http.Request (always clone before editing).
//   - Write tokens (read-only access through [TokenSource]).
package middleware
