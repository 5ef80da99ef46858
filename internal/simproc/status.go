package simproc

// Status represents the current state of the simulation process.
type Status int

const (
	// StatusPending indicates the process has not yet started.
	StatusPending Status = iota
	// StatusRunning indicates the process is actively running.
	StatusRunning
	// StatusExited indicates the process exited cleanly.
	StatusExited
	// StatusFailed indicates the process exited with an error.
	StatusFailed
	// StatusCancelled indicates the process was cancelled by the controller.
	StatusCancelled
)

// String returns a human-readable string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if this is a terminal status (exited, failed, or cancelled).
func (s Status) IsTerminal() bool {
	return s == StatusExited || s == StatusFailed || s == StatusCancelled
}
