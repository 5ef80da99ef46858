package tracing

// Span attribute keys shared across the controller. Keeping them here makes
// the trace vocabulary greppable in one place.
const (
	// Parameter channel attributes
	AttrChannelPath    = "channel.path"
	AttrDeliveredBytes = "channel.bytes"

	// Simulation process attributes
	AttrSimPath = "sim.exec_path"
	AttrSimPID  = "sim.pid"

	// Surface attributes
	AttrWindowHandle = "window.handle"
	AttrSurfaceSize  = "surface.size"

	// Apply attributes
	AttrOrbitalSpeed = "apply.orbital_speed"
	AttrAltitude     = "apply.altitude"

	// Run attributes
	AttrRunID = "run.id"
)

// Span names for the controller operations.
const (
	SpanInitialize  = "controller.initialize"
	SpanOpenChannel = "controller.open_channel"
	SpanLaunch      = "controller.launch"
	SpanEmbed       = "controller.embed"
	SpanApply       = "controller.apply"
	SpanRelaunch    = "controller.relaunch"
	SpanShutdown    = "controller.shutdown"
)

// Event names for span events.
const (
	EventHandshakeResolved = "handshake.resolved"
	EventSendFailed        = "send.failed"
	EventNoPeer            = "send.no_peer"
)
