package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvmc-sim/lvmc-sim/sim/trace"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	rs, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })
	return rs
}

func TestRunStore_RunLifecycle(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()

	runID, err := rs.BeginRun(ctx, RunParams{
		Seed: 42, G: 2.0, V0: 10.0, Width: 32, Height: 16, Density: 0.3, Flow: "none",
	})
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0))

	require.NoError(t, rs.FinishRun(ctx, runID, 1000, 12.5))
}

func TestRunStore_WriteEventsAndCounts(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()

	runID, err := rs.BeginRun(ctx, RunParams{Seed: 1, Width: 8, Height: 8, Flow: "none"})
	require.NoError(t, err)

	events := []trace.EventRecord{
		{Step: 1, Time: 0.1, Dt: 0.1, Type: "hop", X: 2, Y: 3, Outcome: "moved"},
		{Step: 2, Time: 0.3, Dt: 0.2, Type: "hop", X: 3, Y: 3, Outcome: "blocked"},
		{Step: 3, Time: 0.4, Dt: 0.1, Type: "flip", X: 5, Y: 1},
	}
	require.NoError(t, rs.WriteEvents(ctx, runID, events))

	counts, err := rs.EventCounts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hop": 2, "flip": 1}, counts)
}

func TestRunStore_WriteEventsEmptyBatch(t *testing.T) {
	rs := openTestStore(t)

	// No-op, and no transaction left dangling.
	require.NoError(t, rs.WriteEvents(context.Background(), 1, nil))
}

func TestRunStore_EventCountsScopedToRun(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()

	run1, err := rs.BeginRun(ctx, RunParams{Seed: 1, Width: 8, Height: 8, Flow: "none"})
	require.NoError(t, err)
	run2, err := rs.BeginRun(ctx, RunParams{Seed: 2, Width: 8, Height: 8, Flow: "none"})
	require.NoError(t, err)

	require.NoError(t, rs.WriteEvents(ctx, run1, []trace.EventRecord{
		{Step: 1, Time: 0.1, Dt: 0.1, Type: "hop"},
	}))
	require.NoError(t, rs.WriteEvents(ctx, run2, []trace.EventRecord{
		{Step: 1, Time: 0.2, Dt: 0.2, Type: "flip"},
		{Step: 2, Time: 0.5, Dt: 0.3, Type: "flip"},
	}))

	counts, err := rs.EventCounts(ctx, run1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hop": 1}, counts)

	counts, err = rs.EventCounts(ctx, run2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"flip": 2}, counts)
}

func TestRunStore_Snapshots(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()

	runID, err := rs.BeginRun(ctx, RunParams{Seed: 7, Width: 4, Height: 4, Flow: "none"})
	require.NoError(t, err)

	want := []Snapshot{
		{Step: 100, Time: 1.5, Particles: 10, Energy: -4.0, Polarization: 0.25, Grid: "· ·\n· ↑"},
		{Step: 200, Time: 3.1, Particles: 9, Energy: -6.0, Polarization: 0.4, Grid: "· ·\n↑ ·"},
	}
	// Insert out of order; Snapshots returns step order.
	require.NoError(t, rs.WriteSnapshot(ctx, runID, want[1]))
	require.NoError(t, rs.WriteSnapshot(ctx, runID, want[0]))

	got, err := rs.Snapshots(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
