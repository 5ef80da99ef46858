package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// setupTestStore opens a store in a temp directory and closes it when the
// test completes.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	require.NoError(t, err, "Failed to open test store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return setupTestStore(t).Repository()
}

func newTestRun(guid string) *Run {
	return &Run{
		GUID:           guid,
		TraceID:        "0af7651916cd43dd8448eb211c80319c",
		ExecPath:       "/usr/local/bin/orbitsim",
		ChannelPath:    "/tmp/orbitctl/params.sock",
		TranscriptPath: "/tmp/orbitctl/transcript.jsonl",
		Status:         "running",
		StartedAt:      time.Now(),
	}
}

func TestRepository_CreateRun(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.Equal(t, int64(0), run.ID, "New run should have ID 0")

	err := repo.CreateRun(run)
	require.NoError(t, err, "CreateRun should succeed")
	require.Greater(t, run.ID, int64(0), "Run should have ID assigned after insert")

	found, err := repo.GetRun(run.ID)
	require.NoError(t, err, "GetRun should succeed")
	require.Equal(t, run.GUID, found.GUID)
	require.Equal(t, run.TraceID, found.TraceID)
	require.Equal(t, run.ExecPath, found.ExecPath)
	require.Equal(t, run.ChannelPath, found.ChannelPath)
	require.Equal(t, run.TranscriptPath, found.TranscriptPath)
	require.Equal(t, "running", found.Status)
	require.WithinDuration(t, run.StartedAt, found.StartedAt, time.Second)
	require.Nil(t, found.WindowHandle, "Handle should be unset before the handshake")
	require.Nil(t, found.EndedAt, "EndedAt should be unset while the run is live")
}

func TestRepository_CreateRun_DuplicateGUID(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.CreateRun(newTestRun("run-1")))

	err := repo.CreateRun(newTestRun("run-1"))
	require.Error(t, err, "Duplicate GUID should violate the unique constraint")
}

func TestRepository_CreateRun_RejectsUnknownStatus(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	run.Status = "teleported"
	err := repo.CreateRun(run)
	require.Error(t, err, "Status outside the allowed set should be rejected")
}

func TestRepository_SetRunHandle(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))

	err := repo.SetRunHandle(run.ID, 12345, 4242)
	require.NoError(t, err, "SetRunHandle should succeed")

	found, err := repo.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, found.WindowHandle, "Handle should be set")
	require.Equal(t, int64(12345), *found.WindowHandle)
	require.Equal(t, 4242, found.PID)
}

func TestRepository_FinishRun(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))

	endedAt := time.Now()
	err := repo.FinishRun(run.ID, "exited", endedAt)
	require.NoError(t, err, "FinishRun should succeed")

	found, err := repo.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, "exited", found.Status)
	require.NotNil(t, found.EndedAt, "EndedAt should be set")
	require.WithinDuration(t, endedAt, *found.EndedAt, time.Second)
}

func TestRepository_GetRun_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetRun(999)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_FindRunByGUID(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-abc")
	require.NoError(t, repo.CreateRun(run))

	found, err := repo.FindRunByGUID("run-abc")
	require.NoError(t, err)
	require.Equal(t, run.ID, found.ID)

	_, err = repo.FindRunByGUID("no-such-run")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_LatestRun(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.LatestRun()
	require.ErrorIs(t, err, ErrRunNotFound, "Empty table should report not found")

	now := time.Now()
	for i, guid := range []string{"run-old", "run-mid", "run-new"} {
		run := newTestRun(guid)
		run.StartedAt = now.Add(time.Duration(i-2) * time.Hour)
		require.NoError(t, repo.CreateRun(run))
	}

	latest, err := repo.LatestRun()
	require.NoError(t, err)
	require.Equal(t, "run-new", latest.GUID)
}

func TestRepository_ListRuns(t *testing.T) {
	repo := setupTestRepo(t)

	now := time.Now()
	for i, guid := range []string{"run-a", "run-b", "run-c"} {
		run := newTestRun(guid)
		run.StartedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.CreateRun(run))
	}

	all, err := repo.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "run-c", all[0].GUID, "Runs should be newest first")
	require.Equal(t, "run-a", all[2].GUID)

	limited, err := repo.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "run-c", limited[0].GUID)
}

func TestRepository_RecordApply_AndList(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))

	attempts := []*Apply{
		{RunID: run.ID, OrbitalSpeed: "2", Altitude: "10", Delivered: true, AppliedAt: time.Now()},
		{RunID: run.ID, OrbitalSpeed: "4", Altitude: "12", Delivered: false, Error: "no peer connected", AppliedAt: time.Now()},
		{RunID: run.ID, OrbitalSpeed: "-3.5", Altitude: "1e4", Delivered: true, AppliedAt: time.Now()},
	}
	for _, a := range attempts {
		require.NoError(t, repo.RecordApply(a))
		require.Greater(t, a.ID, int64(0), "Apply should have ID assigned after insert")
	}

	applies, err := repo.ListApplies(run.ID)
	require.NoError(t, err)
	require.Len(t, applies, 3)

	require.Equal(t, "2", applies[0].OrbitalSpeed)
	require.Equal(t, "10", applies[0].Altitude)
	require.True(t, applies[0].Delivered)
	require.Empty(t, applies[0].Error)

	require.Equal(t, "4", applies[1].OrbitalSpeed)
	require.False(t, applies[1].Delivered)
	require.Equal(t, "no peer connected", applies[1].Error)

	require.Equal(t, "-3.5", applies[2].OrbitalSpeed)
	require.Equal(t, "1e4", applies[2].Altitude)
}

func TestRepository_ListApplies_EmptyRun(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))

	applies, err := repo.ListApplies(run.ID)
	require.NoError(t, err)
	require.Empty(t, applies)
}

func TestRepository_ApplyStats(t *testing.T) {
	repo := setupTestRepo(t)

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))

	stats, err := repo.ApplyStats(run.ID)
	require.NoError(t, err)
	require.Equal(t, ApplyStats{}, stats, "Fresh run should have zero stats")

	for _, a := range []*Apply{
		{RunID: run.ID, OrbitalSpeed: "1", Altitude: "1", Delivered: true, AppliedAt: time.Now()},
		{RunID: run.ID, OrbitalSpeed: "2", Altitude: "2", Delivered: true, AppliedAt: time.Now()},
		{RunID: run.ID, OrbitalSpeed: "3", Altitude: "3", Delivered: false, Error: "send failed", AppliedAt: time.Now()},
	} {
		require.NoError(t, repo.RecordApply(a))
	}

	stats, err = repo.ApplyStats(run.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.Delivered)
	require.Equal(t, int64(1), stats.Failed)
}

// TestRepository_DeleteRunCascades verifies that removing a run removes its
// apply rows through the foreign key.
func TestRepository_DeleteRunCascades(t *testing.T) {
	store := setupTestStore(t)
	repo := store.Repository()

	run := newTestRun("run-1")
	require.NoError(t, repo.CreateRun(run))
	require.NoError(t, repo.RecordApply(&Apply{
		RunID: run.ID, OrbitalSpeed: "2", Altitude: "10", Delivered: true, AppliedAt: time.Now(),
	}))

	_, err := store.Connection().Exec(`DELETE FROM runs WHERE id = ?`, run.ID)
	require.NoError(t, err)

	applies, err := repo.ListApplies(run.ID)
	require.NoError(t, err)
	require.Empty(t, applies, "Applies should be deleted with their run")
}

// TestRepository_ApplyValuesStoredVerbatim is a property-based test using
// rapid. Parameter values are opaque strings and must round trip byte for
// byte, whatever the operator typed.
func TestRepository_ApplyValuesStoredVerbatim(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		repo := setupTestRepo(t)

		run := newTestRun("run-prop")
		if err := repo.CreateRun(run); err != nil {
			r.Fatalf("CreateRun failed: %v", err)
		}

		speed := rapid.StringMatching(`[ -~]{0,40}`).Draw(r, "speed")
		altitude := rapid.StringMatching(`[ -~]{0,40}`).Draw(r, "altitude")

		apply := &Apply{
			RunID:        run.ID,
			OrbitalSpeed: speed,
			Altitude:     altitude,
			Delivered:    rapid.Bool().Draw(r, "delivered"),
			AppliedAt:    time.Now(),
		}
		if err := repo.RecordApply(apply); err != nil {
			r.Fatalf("RecordApply failed: %v", err)
		}

		applies, err := repo.ListApplies(run.ID)
		if err != nil {
			r.Fatalf("ListApplies failed: %v", err)
		}
		if len(applies) != 1 {
			r.Fatalf("expected 1 apply, got %d", len(applies))
		}
		if applies[0].OrbitalSpeed != speed || applies[0].Altitude != altitude {
			r.Fatalf("values changed in storage: %q/%q became %q/%q",
				speed, altitude, applies[0].OrbitalSpeed, applies[0].Altitude)
		}
	})
}
