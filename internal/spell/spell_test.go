package spell

import (
	"context"
	"testing"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestCompileMinimalSpell(t *testing.T) {
	src := "spell Minimal:\n  version: \"1.0.0\"\n  on manual:\n    x = 42\n"
	res := Compile("spell-1", src, fixedNow)
	require.True(t, res.Success)
	require.NotNil(t, res.IR)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "2026-01-01T00:00:00Z", res.IR.Meta.Created)
	assert.NotEmpty(t, res.IR.Meta.Hash)
}

func TestCompileRejectsInvalidVersion(t *testing.T) {
	src := "spell Bad:\n  version: \"not-a-version\"\n  on manual:\n    x = 1\n"
	res := Compile("spell-2", src, fixedNow)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
}

func TestCompileAcceptsNestedConditional(t *testing.T) {
	src := "spell Cond:\n  on manual:\n    if true:\n      y = 1\n"
	res := Compile("spell-3", src, fixedNow)
	require.True(t, res.Success)
	assert.NotNil(t, res.IR)
}

func TestRunExecutesManualTriggerAndPersists(t *testing.T) {
	src := "spell Counter:\n  on manual:\n    state.count = state.count + 1\n"
	res := Compile("counter", src, fixedNow)
	require.True(t, res.Success)

	store := state.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "counter", map[string]any{"count": float64(5)}))

	result := Run(ctx, res.IR, RunOptions{
		RunId:    "run-1",
		Vault:    "0xvault",
		Chain:    1,
		Adapters: adapter.NewRegistry(),
		Store:    store,
	})
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, float64(6), result.FinalState["count"])

	snap, found, err := store.Load(ctx, "counter")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(6), snap["count"])

	runs, err := store.GetRuns(ctx, "counter", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)

	ledger, err := store.LoadLedger(ctx, "counter", "run-1")
	require.NoError(t, err)
	assert.NotEmpty(t, ledger)
}

func TestRunSeedsPersistentStateAsNilWhenNoSnapshot(t *testing.T) {
	// Grimoire has no separate persistent-state declaration syntax, so a
	// cold run with no prior StateStore entry seeds state.count as nil; the
	// spell's own first statement writes the literal 0 before the
	// accumulating one reads it.
	src := "spell Seeded:\n  on manual:\n    state.count = 0\n    state.count = state.count + 1\n"
	res := Compile("seeded", src, fixedNow)
	require.True(t, res.Success)

	result := Run(context.Background(), res.IR, RunOptions{
		RunId:    "run-1",
		Adapters: adapter.NewRegistry(),
	})
	require.NoError(t, result.Error)
	assert.Equal(t, float64(1), result.FinalState["count"])
}
