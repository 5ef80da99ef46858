package simproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/log"
)

// initTestLogging makes sure the global logger is live and starts the test
// with an empty buffer, so assertions see only this test's entries.
func initTestLogging(t *testing.T) {
	t.Helper()
	path := filepath.Join(os.TempDir(), fmt.Sprintf("orbitctl-simproc-test-%d.log", os.Getpid()))
	_, err := log.Init(path)
	require.NoError(t, err)
	log.ClearBuffer()
}

// launchScript starts a shell script as the simulation under test.
func launchScript(t *testing.T, script string, opts ...func(*LaunchBuilder)) *Process {
	t.Helper()
	b := NewLaunchBuilder(context.Background()).WithExecutable("sh", "-c", script)
	for _, opt := range opts {
		opt(b)
	}
	p, err := b.Launch()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Cancel()
		_ = p.Wait()
	})
	return p
}

func waitDone(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not finish in time")
	}
}

// drainEvents collects every forwarded line after the process has finished.
func drainEvents(p *Process) map[StreamKind][]string {
	out := make(map[StreamKind][]string)
	for ev := range p.Events() {
		out[ev.Stream] = append(out[ev.Stream], ev.Line)
	}
	return out
}

// requireLogEntry asserts that some buffered log entry contains all the
// given substrings.
func requireLogEntry(t *testing.T, substrs ...string) {
	t.Helper()
	for _, entry := range log.RecentEntries(0) {
		matched := true
		for _, s := range substrs {
			if !strings.Contains(entry, s) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	t.Fatalf("no log entry contains all of %q", substrs)
}

func countLogEntries(substr string) int {
	n := 0
	for _, entry := range log.RecentEntries(0) {
		if strings.Contains(entry, substr) {
			n++
		}
	}
	return n
}

func TestLaunchBuilder_Validation_MissingExecutable(t *testing.T) {
	_, err := NewLaunchBuilder(context.Background()).Launch()
	require.Error(t, err)
	require.Contains(t, err.Error(), "executable path is required")
}

func TestLaunchBuilder_StartFailure(t *testing.T) {
	_, err := NewLaunchBuilder(context.Background()).
		WithExecutable("/nonexistent/orbitsim").
		Launch()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to start")
}

func TestLaunchAndGetHandle_ResolvesFirstToken(t *testing.T) {
	initTestLogging(t)

	p, handle, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'boot: warming up'; echo 'ID: 12345'; echo 'ID: 99999'`).
		LaunchAndGetHandle()
	require.NoError(t, err)
	require.Equal(t, int64(12345), handle)

	waitDone(t, p)

	// The handle never changes once resolved; later token-looking lines
	// are forwarded as ordinary output instead of being re-parsed.
	got, ok := p.Handle()
	require.True(t, ok)
	require.Equal(t, int64(12345), got)
	require.Equal(t, PhaseResolved, p.Phase())

	events := drainEvents(p)
	require.Contains(t, events[StreamStdout], "boot: warming up")
	require.Contains(t, events[StreamStdout], "ID: 99999")

	// Awaiting again after resolution returns the stored result.
	again, err := p.AwaitHandle(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), again)
}

func TestLaunchAndGetHandle_MalformedToken(t *testing.T) {
	initTestLogging(t)

	tests := []struct {
		name   string
		script string
	}{
		{"three fields", `echo 'ID 12 34'`},
		{"non-integer handle", `echo 'ID abc'`},
		{"token only", `echo 'ID'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLaunchBuilder(context.Background()).
				WithExecutable("sh", "-c", tt.script).
				LaunchAndGetHandle()
			require.ErrorIs(t, err, ErrHandshakeParse)
		})
	}
}

func TestLaunchAndGetHandle_ExitBeforeToken(t *testing.T) {
	initTestLogging(t)

	_, _, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'starting up'`).
		LaunchAndGetHandle()
	require.ErrorIs(t, err, ErrProcessExitedEarly)
}

func TestLaunchAndGetHandle_Timeout(t *testing.T) {
	initTestLogging(t)

	_, _, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `sleep 5`).
		WithHandshakeTimeout(100 * time.Millisecond).
		LaunchAndGetHandle()
	require.ErrorIs(t, err, ErrHandshakeTimeout)
}

func TestAwaitHandle_TimeoutLeavesProcessCancellable(t *testing.T) {
	initTestLogging(t)

	p := launchScript(t, `sleep 5`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := p.AwaitHandle(ctx)
	require.ErrorIs(t, err, ErrHandshakeTimeout)

	require.NoError(t, p.Cancel())
	waitDone(t, p)
	require.Equal(t, StatusCancelled, p.Status())
}

// Stderr is diagnostics only: it is forwarded at error level and never
// resolves the handshake, even when it looks like a token line.
func TestStderr_NeverResolvesHandshake(t *testing.T) {
	initTestLogging(t)

	p := launchScript(t, `echo 'ID 777' 1>&2; sleep 0.2; echo 'ID 42'`)

	handle, err := p.AwaitHandle(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), handle)

	waitDone(t, p)
	events := drainEvents(p)
	require.Contains(t, events[StreamStderr], "ID 777")
}

func TestLaunch_ForwardsOutputToLogs(t *testing.T) {
	initTestLogging(t)

	p, handle, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'ID 12345'; echo 'frame rendered'; echo 'warning: low fps' 1>&2`).
		LaunchAndGetHandle()
	require.NoError(t, err)
	require.Equal(t, int64(12345), handle)

	waitDone(t, p)

	events := drainEvents(p)
	require.Equal(t, []string{"frame rendered"}, events[StreamStdout])
	require.Equal(t, []string{"warning: low fps"}, events[StreamStderr])

	requireLogEntry(t, "[INFO]", "sim output", "line=frame rendered")
	requireLogEntry(t, "[ERROR]", "sim stderr", "line=warning: low fps")
	requireLogEntry(t, "[INFO]", "Window handle resolved", "handle=12345")

	got, ok := p.Handle()
	require.True(t, ok)
	require.Equal(t, int64(12345), got)
}

func TestProcess_NonZeroExitAfterHandshake(t *testing.T) {
	initTestLogging(t)

	p, handle, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'ID 3'; exit 7`).
		LaunchAndGetHandle()
	require.NoError(t, err)
	require.Equal(t, int64(3), handle)

	waitDone(t, p)
	require.Equal(t, StatusFailed, p.Status())
	require.Error(t, p.ExitErr())
}

func TestProcess_CancelTerminates(t *testing.T) {
	initTestLogging(t)

	p := launchScript(t, `sleep 5`)
	require.True(t, p.IsRunning())
	require.Greater(t, p.PID(), 0)

	require.NoError(t, p.Cancel())
	require.NoError(t, p.Wait())
	require.Equal(t, StatusCancelled, p.Status())

	// Cancelling again is a no-op.
	require.NoError(t, p.Cancel())
	require.Equal(t, StatusCancelled, p.Status())
}

func TestLaunch_WorkDirAndEnv(t *testing.T) {
	initTestLogging(t)

	dir := t.TempDir()
	p, _, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'ID 1'; pwd; printf '%s\n' "$ORBIT_TEST_VAR"`).
		WithWorkDir(dir).
		WithEnv([]string{"ORBIT_TEST_VAR=hello"}).
		LaunchAndGetHandle()
	require.NoError(t, err)

	waitDone(t, p)
	events := drainEvents(p)
	require.Contains(t, events[StreamStdout], dir)
	require.Contains(t, events[StreamStdout], "hello")
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *fakeDeduper) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	dup := d.seen[key]
	d.seen[key] = true
	return dup
}

// Repeated identical lines are suppressed from the log but still reach
// event subscribers.
func TestLaunch_DedupeSuppressesRepeatedLogLines(t *testing.T) {
	initTestLogging(t)

	p, _, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'ID 5'; echo 'frame rendered'; echo 'frame rendered'`).
		WithDeduper(&fakeDeduper{}).
		LaunchAndGetHandle()
	require.NoError(t, err)

	waitDone(t, p)

	events := drainEvents(p)
	require.Equal(t, []string{"frame rendered", "frame rendered"}, events[StreamStdout])
	require.Equal(t, 1, countLogEntries("line=frame rendered"))
}

func TestLaunch_WithTranscript(t *testing.T) {
	initTestLogging(t)

	path := filepath.Join(t.TempDir(), "run.jsonl")
	w, err := NewTranscriptWriter(path)
	require.NoError(t, err)

	p, _, err := NewLaunchBuilder(context.Background()).
		WithExecutable("sh", "-c", `echo 'ID 9'; echo 'hello'; echo 'oops' 1>&2`).
		WithTranscript(w).
		LaunchAndGetHandle()
	require.NoError(t, err)

	waitDone(t, p)
	drainEvents(p)

	records := readTranscript(t, path)
	require.Len(t, records, 3)

	var stdout []string
	var stderr []string
	for _, r := range records {
		switch r.Stream {
		case StreamStdout:
			stdout = append(stdout, r.Line)
		case StreamStderr:
			stderr = append(stderr, r.Line)
		}
		require.False(t, r.Timestamp.IsZero())
	}
	// The token line itself is part of the transcript.
	require.Equal(t, []string{"ID 9", "hello"}, stdout)
	require.Equal(t, []string{"oops"}, stderr)
}
