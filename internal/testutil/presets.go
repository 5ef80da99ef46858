package testutil

import "time"

// WithStandardRunHistory adds the standard test dataset: a clean run with
// several deliveries, a crashed run, and a live run with a failed delivery.
func (b *Builder) WithStandardRunHistory() *Builder {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	lastWeek := now.Add(-7 * 24 * time.Hour)

	return b.
		WithRun("run-clean",
			TraceID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			Handle(12345, 4001), Status("exited"),
			StartedAt(lastWeek), EndedAt(lastWeek.Add(2*time.Hour)),
			Applies(
				Delivered("2", "10"),
				Delivered("4", "12"),
				Delivered("7.5", "300"),
			)).
		WithRun("run-crashed",
			TraceID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
			Handle(23456, 4002), Status("failed"),
			StartedAt(yesterday), EndedAt(yesterday.Add(10*time.Minute)),
			Applies(
				Delivered("2", "10"),
				Failed("3", "11", "failed to transmit snapshot"),
			)).
		WithRun("run-live",
			TraceID("cccccccccccccccccccccccccccccccc"),
			Handle(34567, 4003),
			StartedAt(now),
			Applies(
				Failed("2", "10", "no peer connected"),
				Delivered("2", "10"),
			))
}

// WithHandshakeFailures adds runs that never resolved a window handle.
func (b *Builder) WithHandshakeFailures() *Builder {
	now := time.Now()

	return b.
		WithRun("run-no-token",
			Status("failed"),
			StartedAt(now.Add(-time.Hour))).
		WithRun("run-early-exit",
			Status("exited"),
			StartedAt(now.Add(-30*time.Minute)))
}
