// Package invalidate destroys the local session after the backend rejects
// its credential, or when an operator forces expiry.
//
// An [Invalidator] moves through Active, Invalidating and Invalidated.
// Overlapping calls collapse into one run, and calls made after the run are
// no-ops until [Invalidator.Reset] is called on the next login. Every run
// performs the same ordered cleanup and ends with exactly one navigation to
// the sign-in path: a replace when cleanup succeeded, a hard redirect when any
// step failed.
//
// # Architecture boundaries
//
// The invalidator only talks to narrow interfaces (storage, header, slice
// clearing, session reset, notifier, navigator) so it can be driven by the
// HTTP client's unauthorized hook and by manual actions alike.
//
// # What this package must NOT do
//
//   - Call the backend; a rejected token cannot log itself out.
//   - Let a notifier failure skip credential clearing.
//   - Navigate more than once per run.
package invalidate
