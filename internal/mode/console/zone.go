package console

// Bubblezone mark IDs for mouse hit testing.
const (
	zoneSpeedField    = "console_speed_field"
	zoneAltitudeField = "console_altitude_field"
	zoneApplyButton   = "console_apply_button"
	zoneTelemetry     = "console_telemetry"
)
