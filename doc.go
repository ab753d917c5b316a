// Package adminkit is the session core of the Red Sea Market admin console:
// a REST client whose credential lifecycle, persisted state and navigation
// stay consistent across restarts, concurrent requests and manual actions.
//
// A [Client] is assembled with [Builder] and started once with
// [Client.Start], which rehydrates persisted state, reconciles it with the
// durable token and only then evaluates the route guard. After that every
// request reads the token from durable storage, and any unauthorized response
// runs one coordinated invalidation that ends on the sign-in path.
//
// # Architecture boundaries
//
// adminkit is the public surface. It exposes [Client], [Builder], [Config],
// [Metrics] and event types. The moving parts live in sibling packages:
// storage, token, api, middleware, invalidate, persist, state, restore and
// route. None of them import this package.
//
// # What this package must NOT do
//
//   - Register process-wide globals; every collaborator is injected.
//   - Let the HTTP client write the token; only the token store does.
//   - Navigate twice for one invalidation.
package adminkit
