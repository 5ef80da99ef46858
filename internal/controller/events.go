package controller

import (
	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/simproc"
)

// EventType identifies the kind of controller event.
type EventType string

const (
	// EventStatusChange reports a controller lifecycle transition.
	EventStatusChange EventType = "status_change"
	// EventInitialized reports a completed startup sequence.
	EventInitialized EventType = "initialized"
	// EventApplied reports the outcome of one parameter delivery attempt.
	EventApplied EventType = "applied"
	// EventSimOutput carries one forwarded simulation output line.
	EventSimOutput EventType = "sim_output"
	// EventSimExited reports that the simulation process ended.
	EventSimExited EventType = "sim_exited"
	// EventRelaunched reports that a fresh simulation replaced the old one.
	EventRelaunched EventType = "relaunched"
)

// Event is the payload published on the controller broker. Fields are
// populated according to Type; unrelated fields are zero.
type Event struct {
	Type EventType

	// Status is set for EventStatusChange.
	Status Status

	// RunGUID identifies the run the event belongs to.
	RunGUID string

	// Handle and PID are set for EventInitialized and EventRelaunched.
	Handle int64
	PID    int

	// Snapshot and Delivered are set for EventApplied.
	Snapshot  paramchan.Snapshot
	Delivered bool

	// Output is set for EventSimOutput.
	Output simproc.OutputEvent

	// ExitStatus is set for EventSimExited.
	ExitStatus simproc.Status

	// Err carries the failure for EventApplied and EventSimExited.
	Err error

	// Metrics is a snapshot of the delivery counters after an apply.
	Metrics *DeliveryMetrics
}
