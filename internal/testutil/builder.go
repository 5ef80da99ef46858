package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/history"
)

// Builder accumulates run history fixtures and inserts them in order.
type Builder struct {
	t    *testing.T
	repo *history.Repository
	runs []runData
}

// NewBuilder creates a builder for the given repository.
func NewBuilder(t *testing.T, repo *history.Repository) *Builder {
	t.Helper()
	return &Builder{t: t, repo: repo}
}

// WithRun adds a run with optional configuration.
func (b *Builder) WithRun(guid string, opts ...RunOption) *Builder {
	run := defaultRun(guid)
	for _, opt := range opts {
		opt(&run)
	}
	b.runs = append(b.runs, run)
	return b
}

// Build inserts all accumulated data into the database.
// Runs are inserted first so their IDs are available for the apply rows.
func (b *Builder) Build() {
	b.t.Helper()
	for _, data := range b.runs {
		run := b.insertRun(data)
		for _, apply := range data.applies {
			b.insertApply(run.ID, apply)
		}
	}
}

func (b *Builder) insertRun(data runData) *history.Run {
	b.t.Helper()
	run := &history.Run{
		GUID:           data.guid,
		TraceID:        data.traceID,
		ExecPath:       data.execPath,
		ChannelPath:    data.channelPath,
		WindowHandle:   data.handle,
		PID:            data.pid,
		TranscriptPath: data.transcriptPath,
		Status:         data.status,
		StartedAt:      data.startedAt,
		EndedAt:        data.endedAt,
	}
	require.NoError(b.t, b.repo.CreateRun(run))
	return run
}

func (b *Builder) insertApply(runID int64, data ApplyData) {
	b.t.Helper()
	at := data.At
	if at.IsZero() {
		at = time.Now()
	}
	require.NoError(b.t, b.repo.RecordApply(&history.Apply{
		RunID:        runID,
		OrbitalSpeed: data.Speed,
		Altitude:     data.Altitude,
		Delivered:    data.Delivered,
		Error:        data.Error,
		AppliedAt:    at,
	}))
}
