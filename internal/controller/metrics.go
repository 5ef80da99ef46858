package controller

import (
	"fmt"
	"time"
)

// DeliveryMetrics holds cumulative parameter delivery counts for one
// controller session. Counts survive relaunches; they reset only with the
// controller itself.
type DeliveryMetrics struct {
	// Attempt outcomes
	Attempts  int `json:"attempts"`
	Delivered int `json:"delivered"`
	NoPeer    int `json:"no_peer"`
	Failed    int `json:"failed"`

	// Last outcome
	LastError     string    `json:"last_error,omitempty"`
	LastDelivered time.Time `json:"last_delivered,omitempty"`

	// Metadata
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// DeliveryRate returns the percentage of attempts that reached the
// simulation (0-100).
func (m DeliveryMetrics) DeliveryRate() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return float64(m.Delivered) / float64(m.Attempts) * 100
}

// FormatDeliveryDisplay returns a human-readable delivery string (e.g., "12/15").
func (m DeliveryMetrics) FormatDeliveryDisplay() string {
	if m.Attempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", m.Delivered, m.Attempts)
}

// FormatRateDisplay returns a human-readable rate string (e.g., "80.0%").
func (m DeliveryMetrics) FormatRateDisplay() string {
	return fmt.Sprintf("%.1f%%", m.DeliveryRate())
}
