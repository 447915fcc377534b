package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadSaveRoundtrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "my-spell", map[string]any{"x": float64(1)}))
	snap, found, err := s.Load(ctx, "my-spell")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(1), snap["x"])

	assert.FileExists(t, filepath.Join(dir, "my-spell.json"))
}

func TestFileStoreRunsPersistAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s1, err := NewFileStore(dir)
	require.NoError(t, err)

	run := RunRecord{RunId: "run-1", Timestamp: time.Now(), Success: true, Metrics: RunMetrics{GasUsed: "0"}}
	require.NoError(t, s1.AddRun(ctx, "sp", run))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	runs, err := s2.GetRuns(ctx, "sp", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunId)
}

func TestFileStoreSanitizesSpellId(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "weird/id with spaces", map[string]any{}))
	entries, err := s.ListSpells(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
