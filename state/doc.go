// Package state holds the in-memory session, preference and catalogue state
// of the admin console.
//
// A single [Store] owns three slices (auth, ui, products). Every mutation
// goes through an action method, replaces values rather than mutating them in
// place, and is announced to subscribers after the store lock is released.
//
// The slices are exposed to the persistor through [Store.AuthSlice],
// [Store.UISlice] and [Store.ProductsSlice], which describe each slice's key,
// version and whitelist.
//
// # What this package must NOT do
//
//   - Touch durable storage or the bearer token directly.
//   - Persist notifications, loading flags or modal flags.
package state
