// Package controller wires the parameter channel, the simulation process,
// and the embedded surface into a single session lifecycle.
//
// The Controller owns the startup sequence and the steady state that
// follows it:
//
//	Initialize -> open channel -> launch + handshake -> embed surface
//	Apply      -> one snapshot over the channel, recorded in history
//	Relaunch   -> replace the simulation, channel stays open
//	Close      -> tear everything down
//
// Startup failures are fatal: a controller that cannot bring all three
// pieces up moves to StatusFailed and stays there. Delivery failures after
// startup are not: they are counted, recorded, and retried on the next
// Apply.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/orbitctl/orbitctl/internal/history"
	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/pubsub"
	"github.com/orbitctl/orbitctl/internal/simproc"
	"github.com/orbitctl/orbitctl/internal/surface"
	"github.com/orbitctl/orbitctl/internal/tracing"
)

// Status represents the controller's current state.
type Status int

const (
	// StatusPending means Initialize has not run yet.
	StatusPending Status = iota
	// StatusInitializing means the startup sequence is in progress.
	StatusInitializing
	// StatusReady means startup completed and applies are accepted.
	StatusReady
	// StatusClosing means the controller is shutting down.
	StatusClosing
	// StatusClosed means the controller has shut down.
	StatusClosed
	// StatusFailed means the startup sequence failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds configuration for creating a Controller.
type Config struct {
	// ChannelPath is the filesystem address of the parameter endpoint.
	ChannelPath string

	// ExecPath is the simulation executable to launch.
	ExecPath string

	// Args are extra arguments passed to the simulation.
	Args []string

	// WorkDir is the working directory for the simulation process.
	WorkDir string

	// Env is extra environment for the simulation, in KEY=VALUE form.
	Env []string

	// HandshakeTimeout bounds the wait for the window handle announcement.
	// Zero means simproc.DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// SurfaceSize is the fixed viewport size for the embedded surface.
	// Zero means surface.DefaultSize().
	SurfaceSize surface.Size

	// WriteTimeout bounds a single snapshot write on the channel.
	// Zero keeps the channel's own default.
	WriteTimeout time.Duration

	// Sanitizer, when set, rewrites snapshot values before serialization.
	// Installed by the channel-escape experiment; nil means verbatim.
	Sanitizer paramchan.Sanitizer

	// History, when set, records runs and delivery attempts.
	History *history.Repository

	// Tracing provides the span source. Nil means spans are no-ops.
	Tracing *tracing.Provider

	// TranscriptDir, when set, stores a JSONL output transcript per run.
	TranscriptDir string

	// Deduper, when set, suppresses repeated forwarded log lines.
	Deduper simproc.Deduper

	// CommandFactory overrides process creation for tests.
	CommandFactory simproc.CommandFactoryFunc
}

// Controller manages one simulation session.
type Controller struct {
	cfg    Config
	tracer trace.Tracer

	// Session pieces, populated by Initialize
	channel *paramchan.Channel
	process *simproc.Process
	surf    *surface.Surface

	// Current run bookkeeping
	runID          int64
	runGUID        string
	traceID        string
	transcriptPath string

	// Delivery counters, accumulated across applies
	metrics DeliveryMetrics

	// Communication - embedded pub/sub broker for controller events
	broker *pubsub.Broker[Event]

	status atomic.Int32

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// New creates a new Controller with the given configuration.
func New(cfg Config) (*Controller, error) {
	if cfg.ChannelPath == "" {
		return nil, fmt.Errorf("channel path is required")
	}
	if cfg.ExecPath == "" {
		return nil, fmt.Errorf("simulation executable is required")
	}

	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = simproc.DefaultHandshakeTimeout
	}
	if cfg.SurfaceSize.Width <= 0 || cfg.SurfaceSize.Height <= 0 {
		cfg.SurfaceSize = surface.DefaultSize()
	}

	tp := cfg.Tracing
	if tp == nil {
		// NewProvider never fails when tracing is disabled.
		tp, _ = tracing.NewProvider(tracing.Config{})
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:    cfg,
		tracer: tp.Tracer(),
		broker: pubsub.NewBroker[Event](),
		ctx:    ctx,
		cancel: cancel,
	}

	c.status.Store(int32(StatusPending))

	return c, nil
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// Broker returns the controller event broker for subscription.
func (c *Controller) Broker() *pubsub.Broker[Event] {
	return c.broker
}

// Metrics returns a snapshot of the delivery counters.
func (c *Controller) Metrics() DeliveryMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// RunGUID returns the identifier of the current run, or empty before launch.
func (c *Controller) RunGUID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runGUID
}

// TraceID returns the trace correlation ID assigned at Initialize.
func (c *Controller) TraceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.traceID
}

// Surface returns the embedded surface, or nil before startup completes.
func (c *Controller) Surface() *surface.Surface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.surf
}

// ChannelPath returns the parameter endpoint's filesystem address.
func (c *Controller) ChannelPath() string {
	return c.cfg.ChannelPath
}

// ExecPath returns the simulation executable path.
func (c *Controller) ExecPath() string {
	return c.cfg.ExecPath
}

// SimPID returns the simulation process ID, or 0 if not running.
func (c *Controller) SimPID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.process != nil {
		return c.process.PID()
	}
	return 0
}

// SimRunning reports whether the simulation process is currently running.
func (c *Controller) SimRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.process != nil && c.process.IsRunning()
}

// PeerConnected reports whether the simulation currently holds a parameter
// connection. Status display only; the peer may die before the next Apply.
func (c *Controller) PeerConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel != nil && c.channel.Connected()
}

// setStatus atomically updates status and emits an event.
func (c *Controller) setStatus(s Status) {
	// Status values are defined constants that always fit in int32
	//nolint:gosec // G115: Status is an enum with a small fixed range (0-5)
	c.status.Store(int32(s))
	c.emit(EventStatusChange, Event{Status: s})
}

// emit publishes an event to the embedded broker. The eventType is set in
// the payload; output lines go out as emissions, everything else as state
// changes.
func (c *Controller) emit(eventType EventType, event Event) {
	event.Type = eventType
	kind := pubsub.ChangedEvent
	if eventType == EventSimOutput {
		kind = pubsub.EmittedEvent
	}
	c.broker.Publish(kind, event)
}
