// Package simproc manages the lifecycle of the external simulation process:
// spawning it with captured output streams, resolving the one-shot window
// handle handshake from stdout, and forwarding everything else to logging.
package simproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/orbitctl/orbitctl/internal/log"
)

const (
	// eventBufferSize is the capacity of the forwarded-output channel.
	eventBufferSize = 100

	// Scanner buffer sizing for chatty simulations (64KB initial, 1MB max).
	scanInitialBuf = 64 * 1024
	scanMaxBuf     = 1024 * 1024
)

// Deduper suppresses repeated identical output lines within a time window.
// Implementations must be safe for concurrent use; both stream readers call
// Seen from their own goroutines.
type Deduper interface {
	// Seen records the line and reports whether it was already observed
	// recently enough to be suppressed from the log.
	Seen(key string) bool
}

// Process is a running simulation instance. It owns three goroutines: one
// per output stream and one waiting for process exit. The zero value is not
// usable; processes are created through LaunchBuilder.
type Process struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	execPath string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	status Status

	// Handshake state machine. phase moves out of PhaseAwaitingHandle
	// exactly once; resolved is closed at that moment.
	phase        HandshakePhase
	handle       int64
	handshakeErr error
	resolved     chan struct{}

	exitErr error
	done    chan struct{}

	events chan OutputEvent

	wg     sync.WaitGroup
	scanWG sync.WaitGroup

	dedupe     Deduper
	transcript *TranscriptWriter
}

func newProcess(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, stdout, stderr io.ReadCloser, b *LaunchBuilder) *Process {
	return &Process{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		execPath:   b.execPath,
		ctx:        ctx,
		cancel:     cancel,
		status:     StatusPending,
		phase:      PhaseAwaitingHandle,
		resolved:   make(chan struct{}),
		done:       make(chan struct{}),
		events:     make(chan OutputEvent, eventBufferSize),
		dedupe:     b.dedupe,
		transcript: b.transcript,
	}
}

// Events returns the channel of forwarded output lines from both streams.
// The channel is closed once the process has exited and both streams are
// drained.
func (p *Process) Events() <-chan OutputEvent {
	return p.events
}

// Done returns a channel closed after the process has exited and all
// forwarding has finished.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the current process status. Thread-safe.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// IsRunning returns true if the process is actively running.
func (p *Process) IsRunning() bool {
	return p.Status() == StatusRunning
}

// PID returns the OS process ID, or -1 if not running.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// ExecPath returns the path the simulation was launched from.
func (p *Process) ExecPath() string {
	return p.execPath
}

// Phase returns the current handshake phase. Thread-safe.
func (p *Process) Phase() HandshakePhase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// Handle returns the resolved window handle. The boolean is false until the
// handshake has resolved successfully.
func (p *Process) Handle() (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handle, p.phase == PhaseResolved
}

// ExitErr returns the process exit error, if any. Only meaningful after
// Done() is closed.
func (p *Process) ExitErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// AwaitHandle blocks until the handshake resolves or ctx expires. It is the
// scoped wait that startup performs before any window composition: nothing
// else is dispatched on the calling goroutine while it runs. A deadline
// expiry maps to ErrHandshakeTimeout.
func (p *Process) AwaitHandle(ctx context.Context) (int64, error) {
	select {
	case <-p.resolved:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: no announcement from %s", ErrHandshakeTimeout, p.execPath)
		}
		return 0, ctx.Err()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.handshakeErr != nil {
		return 0, p.handshakeErr
	}
	return p.handle, nil
}

// Cancel terminates the process. It sets the status to Cancelled before
// cancelling the context so waitForCompletion does not report a failure.
// Cancel is a no-op if the process is already in a terminal status.
func (p *Process) Cancel() error {
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return nil
	}
	p.status = StatusCancelled
	p.mu.Unlock()
	p.cancel()
	return nil
}

// Wait blocks until all process goroutines complete.
func (p *Process) Wait() error {
	p.wg.Wait()
	return nil
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

// startGoroutines launches the stream readers and the exit waiter. Called by
// the builder after cmd.Start succeeds.
func (p *Process) startGoroutines() {
	p.wg.Add(3)
	p.scanWG.Add(2)
	go p.scanStdout()
	go p.scanStderr()
	go p.waitForCompletion()
}

// resolveHandshake moves the phase out of AwaitingHandle exactly once.
// Later calls are no-ops, which is what makes the first token line the only
// one that ever terminates handshake mode.
func (p *Process) resolveHandshake(handle int64, err error) {
	p.mu.Lock()
	if p.phase != PhaseAwaitingHandle {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.phase = PhaseFailed
		p.handshakeErr = err
	} else {
		p.phase = PhaseResolved
		p.handle = handle
	}
	p.mu.Unlock()
	close(p.resolved)

	if err != nil {
		log.ErrorErr(log.CatHandshake, "Handshake failed", err)
	} else {
		log.Info(log.CatHandshake, "Window handle resolved", "handle", handle)
	}
}

// scanStdout reads stdout line by line. While the handshake is pending, the
// first line carrying the token is parsed as the handle announcement; every
// other line, before and after, is forwarded untouched.
func (p *Process) scanStdout() {
	defer p.wg.Done()
	defer p.scanWG.Done()

	scanner := bufio.NewScanner(p.stdout)
	buf := make([]byte, 0, scanInitialBuf)
	scanner.Buffer(buf, scanMaxBuf)

	for scanner.Scan() {
		line := ansi.Strip(scanner.Text())
		if line == "" {
			continue
		}

		p.record(StreamStdout, line)

		if p.Phase() == PhaseAwaitingHandle && IsHandshakeLine(line) {
			handle, err := ParseHandleLine(line)
			p.resolveHandshake(handle, err)
			continue
		}

		p.forward(StreamStdout, line)
	}

	if err := scanner.Err(); err != nil {
		log.Debug(log.CatSim, "stdout scanner error", "error", err)
	}

	// Stream closed without a token: the handshake can never complete.
	p.resolveHandshake(0, fmt.Errorf("%w: stdout closed", ErrProcessExitedEarly))
}

// scanStderr reads stderr line by line. Diagnostic output is forwarded at
// error level and never participates in the handshake.
func (p *Process) scanStderr() {
	defer p.wg.Done()
	defer p.scanWG.Done()

	scanner := bufio.NewScanner(p.stderr)
	buf := make([]byte, 0, scanInitialBuf)
	scanner.Buffer(buf, scanMaxBuf)

	for scanner.Scan() {
		line := ansi.Strip(scanner.Text())
		if line == "" {
			continue
		}
		p.record(StreamStderr, line)
		p.forward(StreamStderr, line)
	}

	if err := scanner.Err(); err != nil {
		log.Debug(log.CatSim, "stderr scanner error", "error", err)
	}
}

// forward logs a line at the severity of its stream and publishes it as an
// OutputEvent. Repeated lines inside the dedupe window skip the log write
// but still reach subscribers and the transcript.
func (p *Process) forward(stream StreamKind, line string) {
	suppressed := p.dedupe != nil && p.dedupe.Seen(string(stream)+"\x00"+line)
	if !suppressed {
		if stream == StreamStderr {
			log.Error(log.CatSim, "sim stderr", "line", line)
		} else {
			log.Info(log.CatSim, "sim output", "line", line)
		}
	}

	ev := OutputEvent{Stream: stream, Line: line, Timestamp: time.Now()}
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

// record appends a line to the run transcript, if one is attached.
func (p *Process) record(stream StreamKind, line string) {
	if p.transcript == nil {
		return
	}
	if err := p.transcript.Record(stream, line); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debug(log.CatSim, "transcript write failed", "error", err)
	}
}

// waitForCompletion waits for process exit, drains the stream readers, and
// settles the final status. It owns closing the events and done channels.
func (p *Process) waitForCompletion() {
	defer p.wg.Done()

	err := p.cmd.Wait()
	p.scanWG.Wait()
	close(p.events)

	p.mu.Lock()
	cancelled := p.status == StatusCancelled
	if !cancelled {
		if err != nil {
			p.status = StatusFailed
			p.exitErr = err
		} else {
			p.status = StatusExited
		}
	}
	status := p.status
	p.mu.Unlock()

	// If the handshake never resolved, the exit settles it.
	if err != nil {
		p.resolveHandshake(0, fmt.Errorf("%w: %v", ErrProcessExitedEarly, err))
	} else {
		p.resolveHandshake(0, fmt.Errorf("%w: exited cleanly", ErrProcessExitedEarly))
	}

	if p.transcript != nil {
		if cerr := p.transcript.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			log.Debug(log.CatSim, "transcript close failed", "error", cerr)
		}
	}

	if err != nil && !cancelled {
		log.Warn(log.CatSim, "Simulation exited", "status", status.String(), "error", err)
	} else {
		log.Info(log.CatSim, "Simulation exited", "status", status.String())
	}
	close(p.done)
}
