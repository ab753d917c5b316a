// Package restore reconciles the durable token, the in-memory session and the
// HTTP header mirror so that "authenticated" always implies a stored token.
//
// [Gate.Reconcile] applies the decision table in [Decide]. It runs once on
// start, after rehydration and before the first routing decision, and again
// whenever the authenticated flag or user identity changes (see
// [Gate.Watch]).
//
// # What this package must NOT do
//
//   - Call the backend to validate the token.
//   - Navigate; the route guard reacts to the resulting state.
package restore
