// Package persist writes whitelisted slices of in-memory state to durable
// storage and restores them on start.
//
// Each registered [Slice] lives under its own key as a versioned [Envelope].
// Writes are debounced: [Persistor.MarkDirty] schedules a write, and
// [Persistor.Flush] forces pending writes immediately.
//
// # Pause and clear
//
// [Persistor.Pause] blocks until any in-flight write finishes and drops
// pending changes; changes made while paused are never written.
// [Persistor.ClearSlices] is the clearing primitive used on logout and
// unauthorized events: pause, remove keys, resume, then reset the slices from
// the now-empty storage.
//
// # What this package must NOT do
//
//   - Persist any field outside a slice's whitelist.
//   - Crash or fail startup on a corrupt or outdated blob.
//   - Know about tokens or navigation.
package persist
