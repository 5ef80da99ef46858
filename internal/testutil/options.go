package testutil

import "time"

// ApplyData holds data for a delivery attempt to be inserted.
type ApplyData struct {
	Speed     string
	Altitude  string
	Delivered bool
	Error     string
	At        time.Time
}

// Delivered creates an ApplyData for a successful delivery.
func Delivered(speed, altitude string) ApplyData {
	return ApplyData{Speed: speed, Altitude: altitude, Delivered: true, At: time.Now()}
}

// Failed creates an ApplyData for a failed delivery.
func Failed(speed, altitude, errMsg string) ApplyData {
	return ApplyData{Speed: speed, Altitude: altitude, Error: errMsg, At: time.Now()}
}

// runData holds all data for a run to be inserted.
type runData struct {
	guid           string
	traceID        string
	execPath       string
	channelPath    string
	handle         *int64
	pid            int
	transcriptPath string
	status         string
	startedAt      time.Time
	endedAt        *time.Time
	applies        []ApplyData
}

// defaultRun returns a runData with sensible defaults.
func defaultRun(guid string) runData {
	return runData{
		guid:        guid,
		execPath:    "/usr/local/bin/orbitsim",
		channelPath: "/tmp/orbitctl/params.sock",
		status:      "running",
		startedAt:   time.Now(),
	}
}

// RunOption configures a run during builder setup.
type RunOption func(*runData)

// TraceID sets the trace correlation ID.
func TraceID(id string) RunOption {
	return func(r *runData) { r.traceID = id }
}

// ExecPath sets the simulation executable path.
func ExecPath(path string) RunOption {
	return func(r *runData) { r.execPath = path }
}

// ChannelPath sets the parameter channel endpoint path.
func ChannelPath(path string) RunOption {
	return func(r *runData) { r.channelPath = path }
}

// Handle sets the resolved window handle and process ID.
func Handle(handle int64, pid int) RunOption {
	return func(r *runData) {
		r.handle = &handle
		r.pid = pid
	}
}

// TranscriptPath sets the output transcript path.
func TranscriptPath(path string) RunOption {
	return func(r *runData) { r.transcriptPath = path }
}

// Status sets the run status. Terminal statuses automatically set endedAt
// to now when not set explicitly.
func Status(status string) RunOption {
	return func(r *runData) {
		r.status = status
		if status != "running" && r.endedAt == nil {
			now := time.Now()
			r.endedAt = &now
		}
	}
}

// StartedAt sets the started_at timestamp.
func StartedAt(t time.Time) RunOption {
	return func(r *runData) { r.startedAt = t }
}

// EndedAt sets the ended_at timestamp explicitly.
func EndedAt(t time.Time) RunOption {
	return func(r *runData) { r.endedAt = &t }
}

// Applies adds delivery attempts to the run (nested option).
func Applies(applies ...ApplyData) RunOption {
	return func(r *runData) { r.applies = append(r.applies, applies...) }
}
