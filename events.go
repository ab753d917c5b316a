package adminkit

import (
	"io"

	"github.com/redseamarket/adminkit/internal/events"
)

// Lifecycle event types.
const (
	EventLoginSuccess       = "login.success"
	EventLoginFailure       = "login.failure"
	EventLogout             = "logout"
	EventSessionInvalidated = "session.invalidated"
	EventSessionReconciled  = "session.reconciled"
	EventPersistPurged      = "persist.purged"
	EventPersistFailure     = "persist.failure"
	EventRouteRedirect      = "route.redirect"
)

// Event is one session lifecycle record.
type Event = events.Event

// EventSink receives lifecycle events on a dispatcher goroutine.
type EventSink = events.Sink

// NoOpSink discards events.
type NoOpSink = events.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes events as JSON lines.
type JSONWriterSink = events.JSONWriterSink

// EventSinkFunc adapts a function to [EventSink].
type EventSinkFunc = events.FuncSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return events.NewChannelSink(buffer) }

// NewJSONWriterSink returns a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return events.NewJSONWriterSink(w) }
