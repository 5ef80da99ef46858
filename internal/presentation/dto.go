// Package presentation converts history records into the JSON shapes used by
// the history CLI commands.
package presentation

import (
	"time"

	"github.com/orbitctl/orbitctl/internal/history"
)

// RunDTO represents a recorded simulation run for presentation
type RunDTO struct {
	GUID           string     `json:"guid"`
	TraceID        string     `json:"trace_id,omitempty"`
	ExecPath       string     `json:"exec_path"`
	ChannelPath    string     `json:"channel_path"`
	WindowHandle   *int64     `json:"window_handle,omitempty"`
	PID            int        `json:"pid,omitempty"`
	TranscriptPath string     `json:"transcript_path,omitempty"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// ApplyDTO represents one parameter delivery attempt against a run
type ApplyDTO struct {
	OrbitalSpeed string    `json:"orbital_speed"`
	Altitude     string    `json:"altitude"`
	Delivered    bool      `json:"delivered"`
	Error        string    `json:"error,omitempty"`
	AppliedAt    time.Time `json:"applied_at"`
}

// StatsDTO summarizes the delivery attempts recorded for one run
type StatsDTO struct {
	Total     int64 `json:"total"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// RunDetailDTO bundles a run with its delivery attempts and their totals
type RunDetailDTO struct {
	Run     RunDTO     `json:"run"`
	Applies []ApplyDTO `json:"applies"`
	Stats   StatsDTO   `json:"stats"`
}

// FromRun converts a history run to a DTO.
func FromRun(run *history.Run) RunDTO {
	dto := RunDTO{
		GUID:           run.GUID,
		TraceID:        run.TraceID,
		ExecPath:       run.ExecPath,
		ChannelPath:    run.ChannelPath,
		PID:            run.PID,
		TranscriptPath: run.TranscriptPath,
		Status:         run.Status,
		StartedAt:      run.StartedAt,
	}
	if run.WindowHandle != nil {
		handle := *run.WindowHandle
		dto.WindowHandle = &handle
	}
	if run.EndedAt != nil {
		endedAt := *run.EndedAt
		dto.EndedAt = &endedAt
	}
	return dto
}

// FromRuns converts a slice of history runs to DTOs
func FromRuns(runs []*history.Run) []RunDTO {
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = FromRun(run)
	}
	return dtos
}

// FromApply converts a delivery attempt to a DTO
func FromApply(a *history.Apply) ApplyDTO {
	return ApplyDTO{
		OrbitalSpeed: a.OrbitalSpeed,
		Altitude:     a.Altitude,
		Delivered:    a.Delivered,
		Error:        a.Error,
		AppliedAt:    a.AppliedAt,
	}
}

// FromApplies converts a slice of delivery attempts to DTOs
func FromApplies(applies []*history.Apply) []ApplyDTO {
	dtos := make([]ApplyDTO, len(applies))
	for i, a := range applies {
		dtos[i] = FromApply(a)
	}
	return dtos
}

// NewRunDetail assembles the full presentation of one run.
func NewRunDetail(run *history.Run, applies []*history.Apply, stats history.ApplyStats) RunDetailDTO {
	return RunDetailDTO{
		Run:     FromRun(run),
		Applies: FromApplies(applies),
		Stats: StatsDTO{
			Total:     stats.Total,
			Delivered: stats.Delivered,
			Failed:    stats.Failed,
		},
	}
}
