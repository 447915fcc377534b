package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLoadSaveRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, found, err := s.Load(ctx, "spell-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "spell-1", map[string]any{"counter": float64(3)}))
	snap, found, err := s.Load(ctx, "spell-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(3), snap["counter"])
}

func TestMemoryStoreRunsAndLedger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := RunRecord{
		RunId:     "run-1",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Success:   true,
		Metrics:   RunMetrics{StepsExecuted: 2, GasUsed: "120000"},
	}
	require.NoError(t, s.AddRun(ctx, "spell-1", run))
	runs, err := s.GetRuns(ctx, "spell-1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunId)

	entries := []LedgerEntry{{Timestamp: run.Timestamp, Event: "run_started", Payload: map[string]any{}}}
	require.NoError(t, s.SaveLedger(ctx, "spell-1", "run-1", entries))
	got, err := s.LoadLedger(ctx, "spell-1", "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run_started", got[0].Event)
}

func TestMemoryStoreListSpells(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "b", map[string]any{}))
	require.NoError(t, s.Save(ctx, "a", map[string]any{}))
	ids, err := s.ListSpells(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
