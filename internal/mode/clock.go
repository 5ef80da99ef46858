package mode

import (
	"fmt"
	"time"
)

// Clock provides the current time. Use RealClock for production and a fixed
// clock in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// FormatUptimeWithClock formats how long something has been running using
// the provided clock.
func FormatUptimeWithClock(started time.Time, clock Clock) string {
	return FormatUptimeFrom(started, clock.Now())
}

// FormatUptimeFrom formats the elapsed time since started relative to the
// given reference time. Examples: "42s", "3m07s", "2h15m", "3d2h".
func FormatUptimeFrom(started, now time.Time) string {
	d := now.Sub(started)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		days := int(d.Hours()) / 24
		return fmt.Sprintf("%dd%dh", days, int(d.Hours())%24)
	}
}
