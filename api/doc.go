// Package api is the single outbound gateway to the marketplace REST backend.
//
// Every call goes through [Client], whose transport attaches the bearer
// token (see middleware.Bearer) and whose response phase classifies failures
// into a uniform [*Error].
//
// # Unauthorized handling
//
// A 401, or an error body carrying one of the configured unauthorized codes,
// invokes the injected [SessionEventSink] once for the failing request and
// then returns the original error. The sink is expected to be idempotent:
// concurrent failing requests each call it.
//
// # What this package must NOT do
//
//   - Own or write the token (it reads a mirror through middleware).
//   - Retry requests or swallow errors.
//   - Reach session state through globals; the sink is injected.
package api
