package simproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/orbitctl/orbitctl/internal/log"
)

// DefaultHandshakeTimeout bounds the wait for the window handle
// announcement. A simulation that prints nothing within this window is
// treated as failed startup rather than hanging the controller forever.
const DefaultHandshakeTimeout = 10 * time.Second

// CommandFactoryFunc creates an exec.Cmd for testing purposes.
// It receives the context, executable path, and arguments.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// LaunchBuilder provides a fluent API for launching the simulation process.
// It consolidates the spawn boilerplate (context setup, pipe creation,
// process start) behind a single Launch call.
type LaunchBuilder struct {
	ctx              context.Context
	execPath         string
	args             []string
	workDir          string
	env              []string
	handshakeTimeout time.Duration
	commandFactory   CommandFactoryFunc
	transcript       *TranscriptWriter
	dedupe           Deduper
}

// NewLaunchBuilder creates a new LaunchBuilder with the given context.
// The context bounds the process lifetime, not the handshake wait.
func NewLaunchBuilder(ctx context.Context) *LaunchBuilder {
	return &LaunchBuilder{
		ctx:              ctx,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
}

// WithExecutable sets the executable path and arguments.
func (b *LaunchBuilder) WithExecutable(path string, args ...string) *LaunchBuilder {
	b.execPath = path
	b.args = args
	return b
}

// WithWorkDir sets the working directory for the process.
func (b *LaunchBuilder) WithWorkDir(dir string) *LaunchBuilder {
	b.workDir = dir
	return b
}

// WithEnv sets additional environment variables to append to os.Environ().
// Variables are in the format "KEY=VALUE".
func (b *LaunchBuilder) WithEnv(env []string) *LaunchBuilder {
	b.env = env
	return b
}

// WithHandshakeTimeout overrides the handle announcement wait.
// Zero or negative disables the bound entirely.
func (b *LaunchBuilder) WithHandshakeTimeout(d time.Duration) *LaunchBuilder {
	b.handshakeTimeout = d
	return b
}

// WithCommandFactory sets a custom command factory for testing.
// This allows unit tests to mock exec.Command without spawning real processes.
func (b *LaunchBuilder) WithCommandFactory(fn CommandFactoryFunc) *LaunchBuilder {
	b.commandFactory = fn
	return b
}

// WithTranscript attaches a run transcript. The process takes ownership and
// closes the writer when it exits.
func (b *LaunchBuilder) WithTranscript(w *TranscriptWriter) *LaunchBuilder {
	b.transcript = w
	return b
}

// WithDeduper attaches a repeated-line suppressor for the forwarded logs.
func (b *LaunchBuilder) WithDeduper(d Deduper) *LaunchBuilder {
	b.dedupe = d
	return b
}

// Launch validates the configuration, creates the process, and starts it.
// Returns the running Process or an error. On error, all created resources
// are cleaned up.
func (b *LaunchBuilder) Launch() (*Process, error) {
	if b.execPath == "" {
		return nil, fmt.Errorf("launch builder: executable path is required")
	}

	procCtx, cancel := context.WithCancel(b.ctx)

	var stdout io.ReadCloser
	var stderr io.ReadCloser

	cleanup := func() {
		cancel()
		if stdout != nil {
			_ = stdout.Close()
		}
		if stderr != nil {
			_ = stderr.Close()
		}
	}

	var cmd *exec.Cmd
	if b.commandFactory != nil {
		cmd = b.commandFactory(procCtx, b.execPath, b.args...)
	} else {
		// #nosec G204 -- the executable path comes from local configuration
		cmd = exec.CommandContext(procCtx, b.execPath, b.args...)
	}
	cmd.Dir = b.workDir

	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}

	var err error
	stdout, err = cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("launch builder: failed to create stdout pipe: %w", err)
	}

	stderr, err = cmd.StderrPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("launch builder: failed to create stderr pipe: %w", err)
	}

	p := newProcess(procCtx, cancel, cmd, stdout, stderr, b)

	log.Debug(log.CatSim, "Spawning simulation",
		"execPath", b.execPath,
		"workDir", b.workDir)

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("launch builder: failed to start %s: %w", b.execPath, err)
	}

	log.Info(log.CatSim, "Simulation started", "pid", cmd.Process.Pid)

	p.setStatus(StatusRunning)
	p.startGoroutines()

	return p, nil
}

// LaunchAndGetHandle starts the simulation and synchronously waits for its
// window handle announcement. The wait is scoped to this call: it finishes
// before any window composition begins. On handshake failure the process is
// cancelled, since no surface can ever be embedded for it.
func (b *LaunchBuilder) LaunchAndGetHandle() (*Process, int64, error) {
	p, err := b.Launch()
	if err != nil {
		return nil, 0, err
	}

	hsCtx := b.ctx
	if b.handshakeTimeout > 0 {
		var hsCancel context.CancelFunc
		hsCtx, hsCancel = context.WithTimeout(b.ctx, b.handshakeTimeout)
		defer hsCancel()
	}

	handle, err := p.AwaitHandle(hsCtx)
	if err != nil {
		_ = p.Cancel()
		return nil, 0, err
	}
	return p, handle, nil
}
