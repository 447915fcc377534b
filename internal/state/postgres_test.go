package state

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPostgresStore spins up a disposable PostgreSQL container, grounded
// on the teacher's test/database/client.go testcontainers usage, and
// returns a PostgresStore pointed at it with migrations already applied.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("grimoire_test"),
		postgres.WithUsername("grimoire"),
		postgres.WithPassword("grimoire"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := PostgresConfig{
		Host:            host,
		Port:            portNum,
		User:            "grimoire",
		Password:        "grimoire",
		Database:        "grimoire_test",
		SSLMode:         "disable",
		MaxConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 15 * time.Minute,
	}

	store, err := NewPostgresStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStoreLoadSaveRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}
	ctx := context.Background()
	s := newTestPostgresStore(t)

	_, found, err := s.Load(ctx, "spell-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "spell-1", map[string]any{"counter": float64(7)}))
	snap, found, err := s.Load(ctx, "spell-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(7), snap["counter"])
}

func TestPostgresStoreRunsAndLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}
	ctx := context.Background()
	s := newTestPostgresStore(t)

	run := RunRecord{
		RunId:     "run-1",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Success:   true,
		Duration:  250 * time.Millisecond,
		Metrics:   RunMetrics{StepsExecuted: 3, GasUsed: "210000"},
		FinalState: map[string]any{"ok": true},
	}
	require.NoError(t, s.AddRun(ctx, "spell-1", run))

	runs, err := s.GetRuns(ctx, "spell-1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunId, runs[0].RunId)
	assert.Equal(t, run.Metrics.GasUsed, runs[0].Metrics.GasUsed)

	entries := []LedgerEntry{{Timestamp: run.Timestamp, Event: "run_started", Payload: map[string]any{"runId": "run-1"}}}
	require.NoError(t, s.SaveLedger(ctx, "spell-1", "run-1", entries))
	loaded, err := s.LoadLedger(ctx, "spell-1", "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "run_started", loaded[0].Event)

	ids, err := s.ListSpells(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "spell-1")
}
