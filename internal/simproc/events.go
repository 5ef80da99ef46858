package simproc

import "time"

// StreamKind identifies which standard stream produced a line of output.
type StreamKind string

const (
	// StreamStdout marks a line read from the process standard output.
	StreamStdout StreamKind = "stdout"
	// StreamStderr marks a line read from the process standard error.
	StreamStderr StreamKind = "stderr"
)

// OutputEvent is a single forwarded line of simulation output.
// Every line the process writes after (and around) the handshake flows
// through one of these, regardless of stream.
type OutputEvent struct {
	Stream    StreamKind
	Line      string
	Timestamp time.Time
}

// IsStderr returns true if the line came from the error stream.
func (e OutputEvent) IsStderr() bool {
	return e.Stream == StreamStderr
}
