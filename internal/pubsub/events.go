// Package pubsub provides a generic publish/subscribe broker used to fan
// simulation output, log entries, and watcher notifications out to the UI
// without blocking the goroutines that produce them.
package pubsub

import (
	"context"
	"time"
)

// EventType classifies a published event.
type EventType string

const (
	// EmittedEvent marks a payload produced by a source, such as a process
	// output line or a log entry.
	EmittedEvent EventType = "emitted"
	// ChangedEvent marks a state transition, such as a process status change
	// or a modification to a watched file.
	ChangedEvent EventType = "changed"
	// ClosedEvent marks a source that has finished and will publish no more.
	ClosedEvent EventType = "closed"
)

// Event is a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher publishes events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
