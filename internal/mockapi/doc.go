// Package mockapi is an in-process stand-in for the Red Sea Market REST
// backend. It issues HS256 JWTs, verifies argon2id password hashes, keeps
// revoked tokens in Redis, and serves the auth, profile and product list
// endpoints the admin console uses.
//
// It backs examples/mock-backend, the rsm-stress tool, and end-to-end tests.
// It is not a production server.
package mockapi
