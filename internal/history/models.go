package history

import "time"

// Run records one launch of the simulation process: where it ran, which
// channel endpoint it served, and how it ended.
type Run struct {
	ID             int64
	GUID           string
	TraceID        string
	ExecPath       string
	ChannelPath    string
	WindowHandle   *int64 // nil until the handshake resolves
	PID            int
	TranscriptPath string
	Status         string
	StartedAt      time.Time
	EndedAt        *time.Time // nil while the run is live
}

// Apply records a single parameter delivery attempt against a run.
// Values are stored verbatim, exactly as they were sent on the wire.
type Apply struct {
	ID           int64
	RunID        int64
	OrbitalSpeed string
	Altitude     string
	Delivered    bool
	Error        string
	AppliedAt    time.Time
}

// runModel represents the database row for the runs table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type runModel struct {
	ID             int64
	GUID           string
	TraceID        string
	ExecPath       string
	ChannelPath    string
	WindowHandle   *int64 // nullable
	PID            int64
	TranscriptPath string
	Status         string
	StartedAt      int64  // Unix timestamp
	EndedAt        *int64 // Unix timestamp, nullable
}

// applyModel represents the database row for the applies table.
type applyModel struct {
	ID           int64
	RunID        int64
	OrbitalSpeed string
	Altitude     string
	Delivered    bool
	Error        string
	AppliedAt    int64 // Unix timestamp
}

// toRunModel converts a Run to its database row representation.
func toRunModel(r *Run) *runModel {
	m := &runModel{
		ID:             r.ID,
		GUID:           r.GUID,
		TraceID:        r.TraceID,
		ExecPath:       r.ExecPath,
		ChannelPath:    r.ChannelPath,
		PID:            int64(r.PID),
		TranscriptPath: r.TranscriptPath,
		Status:         r.Status,
		StartedAt:      r.StartedAt.Unix(),
	}
	if r.WindowHandle != nil {
		handle := *r.WindowHandle
		m.WindowHandle = &handle
	}
	if r.EndedAt != nil {
		endedAt := r.EndedAt.Unix()
		m.EndedAt = &endedAt
	}
	return m
}

// toRun converts a database row back to a Run.
func (m *runModel) toRun() *Run {
	r := &Run{
		ID:             m.ID,
		GUID:           m.GUID,
		TraceID:        m.TraceID,
		ExecPath:       m.ExecPath,
		ChannelPath:    m.ChannelPath,
		PID:            int(m.PID),
		TranscriptPath: m.TranscriptPath,
		Status:         m.Status,
		StartedAt:      time.Unix(m.StartedAt, 0),
	}
	if m.WindowHandle != nil {
		handle := *m.WindowHandle
		r.WindowHandle = &handle
	}
	if m.EndedAt != nil {
		t := time.Unix(*m.EndedAt, 0)
		r.EndedAt = &t
	}
	return r
}

// toApplyModel converts an Apply to its database row representation.
func toApplyModel(a *Apply) *applyModel {
	return &applyModel{
		ID:           a.ID,
		RunID:        a.RunID,
		OrbitalSpeed: a.OrbitalSpeed,
		Altitude:     a.Altitude,
		Delivered:    a.Delivered,
		Error:        a.Error,
		AppliedAt:    a.AppliedAt.Unix(),
	}
}

// toApply converts a database row back to an Apply.
func (m *applyModel) toApply() *Apply {
	return &Apply{
		ID:           m.ID,
		RunID:        m.RunID,
		OrbitalSpeed: m.OrbitalSpeed,
		Altitude:     m.Altitude,
		Delivered:    m.Delivered,
		Error:        m.Error,
		AppliedAt:    time.Unix(m.AppliedAt, 0),
	}
}
