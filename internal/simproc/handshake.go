package simproc

import (
	"fmt"
	"strconv"
	"strings"
)

// handshakeToken is the literal the simulation prints alongside its window
// handle. The first stdout line containing it is parsed as the handle
// announcement; every other line is plain output.
const handshakeToken = "ID"

// ErrHandshakeParse is returned when a line carrying the handshake token
// does not have the expected two-field integer shape. Fatal to startup.
var ErrHandshakeParse = fmt.Errorf("handshake line is malformed")

// ErrHandshakeTimeout is returned when the simulation produces no handle
// announcement within the configured wait. Fatal to startup.
var ErrHandshakeTimeout = fmt.Errorf("timed out waiting for window handle")

// ErrProcessExitedEarly is returned when the simulation exits, or closes its
// output stream, before ever announcing a window handle. Fatal to startup.
var ErrProcessExitedEarly = fmt.Errorf("simulation ended before announcing a window handle")

// HandshakePhase tracks the one-shot startup exchange with the simulation.
type HandshakePhase int

const (
	// PhaseAwaitingHandle means no handle announcement has been seen yet.
	PhaseAwaitingHandle HandshakePhase = iota
	// PhaseResolved means the window handle was parsed successfully.
	// The phase never leaves Resolved; later token-looking lines are
	// forwarded as ordinary output.
	PhaseResolved
	// PhaseFailed means the handshake ended without a usable handle.
	PhaseFailed
)

// String returns a human-readable string representation of the phase.
func (p HandshakePhase) String() string {
	switch p {
	case PhaseAwaitingHandle:
		return "awaiting handle"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsHandshakeLine reports whether a stdout line carries the handshake token
// and must therefore be parsed as a handle announcement.
func IsHandshakeLine(line string) bool {
	return strings.Contains(line, handshakeToken)
}

// ParseHandleLine parses a handle announcement of the shape "ID <integer>".
// The line is split on whitespace and must yield exactly two fields with an
// integer second field. The first field is not inspected beyond the token
// check, so variants like "ID:" parse the same way.
func ParseHandleLine(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: expected two fields, got %d in %q", ErrHandshakeParse, len(fields), line)
	}
	handle, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: second field %q is not an integer", ErrHandshakeParse, fields[1])
	}
	return handle, nil
}
