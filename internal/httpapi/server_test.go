package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	s := NewServer(store, "test")
	return s, store
}

func TestHandleListSpells(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.Save(context.Background(), "alpha", map[string]any{}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/spells", nil)
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{"alpha"}, body["spells"])
}

func TestHandleGetStateNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/spells/missing/state", nil)
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRunsAndLedger(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.AddRun(ctx, "alpha", state.RunRecord{RunId: "r1", Success: true}))
	require.NoError(t, store.SaveLedger(ctx, "alpha", "r1", []state.LedgerEntry{{Event: "run_started", Payload: map[string]any{}}}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/spells/alpha/runs", nil)
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/spells/alpha/runs/r1/ledger", nil)
	s.Engine().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body))
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
}
