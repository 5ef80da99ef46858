package controller

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/paramchan"
	"github.com/orbitctl/orbitctl/internal/simproc"
	"github.com/orbitctl/orbitctl/internal/surface"
	"github.com/orbitctl/orbitctl/internal/testutil"
)

// sleeperSim announces a handle and then stays alive like a real simulation.
const sleeperSim = `echo 'ID 12345'; sleep 30`

// dialPeer connects to the parameter endpoint the way the simulation does.
func dialPeer(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readExact reads exactly n bytes from the peer with a deadline.
func readExact(t *testing.T, conn net.Conn, n int) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return string(buf)
}

func TestInitialize_Success(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, nil)
	sub := c.Broker().Subscribe(context.Background())

	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, StatusReady, c.Status())

	surf := c.Surface()
	require.NotNil(t, surf)
	require.Equal(t, int64(12345), surf.Handle())
	require.Equal(t, surface.DefaultSize(), surf.Size())

	require.True(t, c.SimRunning())
	require.Greater(t, c.SimPID(), 0)
	require.Len(t, c.RunGUID(), 36)
	require.Len(t, c.TraceID(), 32)

	// The endpoint is live on disk.
	info, err := os.Stat(c.ChannelPath())
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSocket)

	ev := awaitEvent(t, sub, EventInitialized)
	require.Equal(t, int64(12345), ev.Handle)
	require.Equal(t, c.SimPID(), ev.PID)
	require.Equal(t, c.RunGUID(), ev.RunGUID)
}

func TestInitialize_Twice(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, nil)
	require.NoError(t, c.Initialize(context.Background()))

	err := c.Initialize(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already initialized")
}

func TestInitialize_BindFailure(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.ChannelPath = filepath.Join(t.TempDir(), "missing", "params.sock")
	})

	err := c.Initialize(context.Background())
	require.ErrorIs(t, err, paramchan.ErrBind)
	require.Equal(t, StatusFailed, c.Status())
}

func TestInitialize_HandshakeFailure(t *testing.T) {
	initTestLogging(t)

	c := testController(t, `echo 'starting up'`, nil)

	err := c.Initialize(context.Background())
	require.ErrorIs(t, err, simproc.ErrProcessExitedEarly)
	require.Equal(t, StatusFailed, c.Status())

	// The channel opened before the launch is torn down again.
	_, err = os.Stat(c.ChannelPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// A handle that parses but cannot identify a window fails the embed step,
// which is just as fatal as a failed handshake.
func TestInitialize_InvalidHandle(t *testing.T) {
	initTestLogging(t)

	c := testController(t, `echo 'ID 0'; sleep 30`, nil)

	err := c.Initialize(context.Background())
	require.ErrorIs(t, err, surface.ErrInvalidHandle)
	require.Equal(t, StatusFailed, c.Status())

	_, err = os.Stat(c.ChannelPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply_DeliverAndRecord(t *testing.T) {
	initTestLogging(t)

	store := testutil.NewTestStore(t)
	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.History = store.Repository()
	})
	require.NoError(t, c.Initialize(context.Background()))

	peer := dialPeer(t, c.ChannelPath())

	require.NoError(t, c.Apply(context.Background(), "3.5", "42"))
	require.Equal(t, "3.5, 42", readExact(t, peer, 7))
	require.True(t, c.PeerConnected())

	m := c.Metrics()
	require.Equal(t, 1, m.Attempts)
	require.Equal(t, 1, m.Delivered)
	require.Equal(t, "1/1", m.FormatDeliveryDisplay())
	require.False(t, m.LastDelivered.IsZero())

	// The run row carries the resolved handle and the attempt is recorded
	// with the raw values.
	run, err := store.Repository().FindRunByGUID(c.RunGUID())
	require.NoError(t, err)
	require.NotNil(t, run.WindowHandle)
	require.Equal(t, int64(12345), *run.WindowHandle)
	require.Equal(t, c.SimPID(), run.PID)

	applies, err := store.Repository().ListApplies(run.ID)
	require.NoError(t, err)
	require.Len(t, applies, 1)
	require.Equal(t, "3.5", applies[0].OrbitalSpeed)
	require.Equal(t, "42", applies[0].Altitude)
	require.True(t, applies[0].Delivered)
	require.Empty(t, applies[0].Error)
}

// Applying with no simulation connection is a soft failure: counted,
// recorded, and retried from scratch on the next apply.
func TestApply_NoPeerThenRecover(t *testing.T) {
	initTestLogging(t)

	store := testutil.NewTestStore(t)
	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.History = store.Repository()
	})
	require.NoError(t, c.Initialize(context.Background()))

	err := c.Apply(context.Background(), "2", "10")
	require.ErrorIs(t, err, paramchan.ErrNoPeer)
	require.Equal(t, StatusReady, c.Status(), "soft failure must not change status")

	m := c.Metrics()
	require.Equal(t, 1, m.Attempts)
	require.Equal(t, 1, m.NoPeer)
	require.Equal(t, 0, m.Delivered)
	require.NotEmpty(t, m.LastError)

	// Once a peer shows up, the same values go through untouched.
	peer := dialPeer(t, c.ChannelPath())
	require.NoError(t, c.Apply(context.Background(), "2", "10"))
	require.Equal(t, "2, 10", readExact(t, peer, 5))

	m = c.Metrics()
	require.Equal(t, 2, m.Attempts)
	require.Equal(t, 1, m.Delivered)

	run, err := store.Repository().FindRunByGUID(c.RunGUID())
	require.NoError(t, err)
	applies, err := store.Repository().ListApplies(run.ID)
	require.NoError(t, err)
	require.Len(t, applies, 2)
	require.False(t, applies[0].Delivered)
	require.Contains(t, applies[0].Error, "no simulation peer")
	require.True(t, applies[1].Delivered)

	stats, err := store.Repository().ApplyStats(run.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(1), stats.Delivered)
	require.Equal(t, int64(1), stats.Failed)
}

// A peer that dies mid-session costs exactly one failed apply; the channel
// then accepts a replacement connection.
func TestApply_PeerDiedThenRecover(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, nil)
	require.NoError(t, c.Initialize(context.Background()))

	first := dialPeer(t, c.ChannelPath())
	require.NoError(t, c.Apply(context.Background(), "2", "10"))
	readExact(t, first, 5)
	require.NoError(t, first.Close())

	err := c.Apply(context.Background(), "3", "11")
	require.ErrorIs(t, err, paramchan.ErrSend)
	require.False(t, c.PeerConnected())
	require.Equal(t, StatusReady, c.Status())

	second := dialPeer(t, c.ChannelPath())
	require.NoError(t, c.Apply(context.Background(), "4", "12"))
	require.Equal(t, "4, 12", readExact(t, second, 5))

	m := c.Metrics()
	require.Equal(t, 3, m.Attempts)
	require.Equal(t, 2, m.Delivered)
	require.Equal(t, 1, m.Failed)
}

func TestApply_SanitizerRewritesValues(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.Sanitizer = paramchan.StripNewlines
	})
	require.NoError(t, c.Initialize(context.Background()))

	peer := dialPeer(t, c.ChannelPath())
	require.NoError(t, c.Apply(context.Background(), "1\n2", "10"))
	require.Equal(t, "1 2, 10", readExact(t, peer, 7))
}

func TestApply_EmitsEvent(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, nil)
	require.NoError(t, c.Initialize(context.Background()))

	sub := c.Broker().Subscribe(context.Background())

	err := c.Apply(context.Background(), "2", "10")
	require.ErrorIs(t, err, paramchan.ErrNoPeer)

	ev := awaitEvent(t, sub, EventApplied)
	require.False(t, ev.Delivered)
	require.Equal(t, paramchan.Snapshot{OrbitalSpeed: "2", Altitude: "10"}, ev.Snapshot)
	require.ErrorIs(t, ev.Err, paramchan.ErrNoPeer)
	require.NotNil(t, ev.Metrics)
	require.Equal(t, 1, ev.Metrics.NoPeer)
}

// When the simulation dies on its own, the run row is settled and the exit
// is published, but the controller itself stays up.
func TestSimExit_SettlesRunAndEmits(t *testing.T) {
	initTestLogging(t)

	store := testutil.NewTestStore(t)
	c := testController(t, `echo 'ID 9'`, func(cfg *Config) {
		cfg.History = store.Repository()
	})
	sub := c.Broker().Subscribe(context.Background())

	require.NoError(t, c.Initialize(context.Background()))

	ev := awaitEvent(t, sub, EventSimExited)
	require.Equal(t, simproc.StatusExited, ev.ExitStatus)
	require.NoError(t, ev.Err)
	require.Equal(t, c.RunGUID(), ev.RunGUID)

	require.Equal(t, StatusReady, c.Status())
	require.False(t, c.SimRunning())

	require.Eventually(t, func() bool {
		run, err := store.Repository().FindRunByGUID(c.RunGUID())
		return err == nil && run.Status == "exited" && run.EndedAt != nil
	}, 3*time.Second, 20*time.Millisecond, "run row should settle as exited")
}

func TestRelaunch_NewRunSameChannel(t *testing.T) {
	initTestLogging(t)

	store := testutil.NewTestStore(t)
	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.History = store.Repository()
	})
	require.NoError(t, c.Initialize(context.Background()))

	firstGUID := c.RunGUID()
	firstPID := c.SimPID()

	require.NoError(t, c.Relaunch(context.Background()))
	require.Equal(t, StatusReady, c.Status())
	require.True(t, c.SimRunning())
	require.NotEqual(t, firstGUID, c.RunGUID())
	require.NotEqual(t, firstPID, c.SimPID())

	// The endpoint survived the swap: the fresh simulation can connect and
	// receive parameters.
	peer := dialPeer(t, c.ChannelPath())
	require.NoError(t, c.Apply(context.Background(), "5", "99"))
	require.Equal(t, "5, 99", readExact(t, peer, 5))

	runs, err := store.Repository().ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, c.RunGUID(), runs[0].GUID)
	require.Equal(t, firstGUID, runs[1].GUID)

	require.Eventually(t, func() bool {
		run, err := store.Repository().FindRunByGUID(firstGUID)
		return err == nil && run.Status == "cancelled" && run.EndedAt != nil
	}, 3*time.Second, 20*time.Millisecond, "old run should settle as cancelled")
}

// A failed relaunch leaves the controller ready with no simulation, so the
// operator can fix the executable and try again.
func TestRelaunch_FailureKeepsControllerAlive(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.HandshakeTimeout = 300 * time.Millisecond
	})
	require.NoError(t, c.Initialize(context.Background()))

	// Swap the script for one that never announces a handle.
	c.cfg.Args = []string{"-c", `sleep 30`}

	err := c.Relaunch(context.Background())
	require.ErrorIs(t, err, simproc.ErrHandshakeTimeout)
	require.Equal(t, StatusReady, c.Status())
	require.False(t, c.SimRunning())
	require.Nil(t, c.Surface())

	// The channel is still bound.
	_, statErr := os.Stat(c.ChannelPath())
	require.NoError(t, statErr)

	// And a later relaunch with a working simulation recovers fully.
	c.cfg.Args = []string{"-c", sleeperSim}
	require.NoError(t, c.Relaunch(context.Background()))
	require.True(t, c.SimRunning())
	require.NotNil(t, c.Surface())
}

func TestRelaunch_EmitsEvent(t *testing.T) {
	initTestLogging(t)

	c := testController(t, sleeperSim, nil)
	require.NoError(t, c.Initialize(context.Background()))

	sub := c.Broker().Subscribe(context.Background())
	require.NoError(t, c.Relaunch(context.Background()))

	ev := awaitEvent(t, sub, EventRelaunched)
	require.Equal(t, int64(12345), ev.Handle)
	require.Equal(t, c.RunGUID(), ev.RunGUID)
}

func TestClose_TearsDownEverything(t *testing.T) {
	initTestLogging(t)

	store := testutil.NewTestStore(t)
	c := testController(t, sleeperSim, func(cfg *Config) {
		cfg.History = store.Repository()
	})
	require.NoError(t, c.Initialize(context.Background()))
	guid := c.RunGUID()

	require.NoError(t, c.Close(context.Background()))
	require.Equal(t, StatusClosed, c.Status())

	// Endpoint unlinked.
	_, err := os.Stat(c.ChannelPath())
	require.ErrorIs(t, err, os.ErrNotExist)

	// Close waits for the watchers, so the run row is already settled.
	run, err := store.Repository().FindRunByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, "cancelled", run.Status)
	require.NotNil(t, run.EndedAt)

	// Applying after close is rejected.
	err = c.Apply(context.Background(), "2", "10")
	require.Error(t, err)
	require.Contains(t, err.Error(), "controller not ready")

	require.NoError(t, c.Close(context.Background()))
}

func TestTranscript_RecordedPerRun(t *testing.T) {
	initTestLogging(t)

	dir := t.TempDir()
	store := testutil.NewTestStore(t)
	c := testController(t, `echo 'ID 5'; echo 'orbit stable'`, func(cfg *Config) {
		cfg.TranscriptDir = dir
		cfg.History = store.Repository()
	})
	sub := c.Broker().Subscribe(context.Background())

	require.NoError(t, c.Initialize(context.Background()))
	awaitEvent(t, sub, EventSimExited)

	path := filepath.Join(dir, "run-"+c.RunGUID()+".jsonl")
	data, err := os.ReadFile(path) // #nosec G304 -- temp dir path built by the test
	require.NoError(t, err)
	require.Contains(t, string(data), "ID 5")
	require.Contains(t, string(data), "orbit stable")

	run, err := store.Repository().FindRunByGUID(c.RunGUID())
	require.NoError(t, err)
	require.Equal(t, path, run.TranscriptPath)
}

func TestOutputForwarding_PublishesLines(t *testing.T) {
	initTestLogging(t)

	c := testController(t, `echo 'ID 7'; echo 'telemetry: nominal'; echo 'thruster warning' 1>&2`, nil)
	sub := c.Broker().Subscribe(context.Background())

	require.NoError(t, c.Initialize(context.Background()))

	var stdout, stderr []string
	deadline := time.After(5 * time.Second)
	for len(stdout) == 0 || len(stderr) == 0 {
		select {
		case ev, ok := <-sub:
			if !ok {
				t.Fatal("broker closed before output arrived")
			}
			if ev.Payload.Type != EventSimOutput {
				continue
			}
			switch ev.Payload.Output.Stream {
			case simproc.StreamStdout:
				stdout = append(stdout, ev.Payload.Output.Line)
			case simproc.StreamStderr:
				stderr = append(stderr, ev.Payload.Output.Line)
			}
		case <-deadline:
			t.Fatal("no forwarded output within deadline")
		}
	}

	require.Contains(t, stdout, "telemetry: nominal")
	require.Contains(t, stderr, "thruster warning")
}
