// Package events implements asynchronous delivery of session lifecycle
// events (login, logout, invalidation, reconciliation, purge).
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event]: one structured lifecycle record.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the adminkit client does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import adminkit or any sibling package.
package events
