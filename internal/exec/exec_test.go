package exec

import (
	"context"
	"testing"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/franalgaba/grimoire-sub002/internal/lexer"
	"github.com/franalgaba/grimoire-sub002/internal/parser"
	"github.com/franalgaba/grimoire-sub002/internal/transform"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func compile(t *testing.T, src string) *ir.SpellIR {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	spellAST, err := parser.Parse(toks)
	require.NoError(t, err)
	lowered, diags := transform.Lower(spellAST)
	require.Empty(t, diags)
	return ir.Generate("test-spell", lowered, "deadbeef", "2026-01-01T00:00:00Z")
}

func newRun(sir *ir.SpellIR, clock Clock, simulate bool) (*Driver, *Context) {
	d := NewDriver(clock)
	ec := NewContext("run-1", sir, "0xvault", 1, map[string]any{}, nil, adapter.NewRegistry(), simulate, clock)
	return d, ec
}

func TestMinimalSpellExecutes(t *testing.T) {
	src := "spell Minimal:\n  version: \"1.0.0\"\n  on manual:\n    x = 42\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), false)
	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)
	v, found := ec.Bindings.Get("x")
	require.True(t, found)
	assert.Equal(t, float64(42), v)
}

func TestConditionalForLoopEmitsOnlyMatchingEvent(t *testing.T) {
	src := "spell Loopy:\n  version: \"1.0.0\"\n  on manual:\n    items = [1, 20, 3]\n    for i in items:\n      if i > 10:\n        emit big(v=i)\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), false)
	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)

	var customEvents []LedgerEntry
	for _, e := range outcome.Ledger.Entries() {
		if e.Event == EventCustom {
			customEvents = append(customEvents, e)
		}
	}
	require.Len(t, customEvents, 1)
	assert.Equal(t, "big", customEvents[0].Payload["name"])
	assert.Equal(t, float64(20), customEvents[0].Payload["v"])
}

func TestAdvisoryFallbackBindsCoercedValue(t *testing.T) {
	src := "spell Ask:\n  version: \"1.0.0\"\n  advisors:\n    oracle: { model: \"gpt\", scope: \"risk\" }\n  on manual:\n    ok = oracle.ask(**proceed?**, schema=bool, fallback=true)\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), false)
	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)

	v, found := ec.Bindings.Get("ok")
	require.True(t, found)
	assert.Equal(t, true, v)
	assert.Equal(t, 1, ec.Metrics.AdvisoryCalls)

	events := outcome.Ledger.Entries()
	var names []string
	for _, e := range events {
		names = append(names, e.Event)
	}
	assert.Contains(t, names, EventAdvisoryStarted)
	assert.Contains(t, names, EventAdvisoryCompleted)
}

func TestAdvisoryStartedCarriesMCPToolDescriptor(t *testing.T) {
	src := "spell Ask:\n  version: \"1.0.0\"\n  advisors:\n    oracle: { model: \"gpt\", scope: \"risk\" }\n  on manual:\n    ok = oracle.ask(**proceed?**, schema=bool, fallback=true, mcp={name: \"proceed_check\", description: \"oracle risk check\"})\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), false)
	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)

	var started *LedgerEntry
	for i, e := range outcome.Ledger.Entries() {
		if e.Event == EventAdvisoryStarted {
			started = &outcome.Ledger.Entries()[i]
		}
	}
	require.NotNil(t, started)
	tool, ok := started.Payload["mcp"].(mcp.Tool)
	require.True(t, ok, "mcp field should carry an mcp.Tool descriptor")
	assert.Equal(t, "proceed_check", tool.Name)
}

func TestSimulateFlagEmitsSimulatedNotExecuted(t *testing.T) {
	src := "spell Swap:\n  version: \"1.0.0\"\n  on manual:\n    @aave.swap(from=\"usdc\", to=\"dai\", amount=100)\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), true)
	ec.Adapters.Register(adapter.NewMock("aave", 1))

	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)
	assert.Equal(t, 1, ec.Metrics.ActionsExecuted)
	assert.Equal(t, 1, outcome.Ledger.Count(EventActionSimulated))
	assert.Equal(t, 0, outcome.Ledger.Count(EventActionExecuted))
}

func TestLedgerMonotonicityAndMetricConservation(t *testing.T) {
	src := "spell Chain:\n  version: \"1.0.0\"\n  on manual:\n    a = 1\n    b = 2\n    c = a + b\n"
	sir := compile(t, src)
	d, ec := newRun(sir, NewFakeClock(fixedStart), false)
	outcome := d.Run(context.Background(), ec, sir.Triggers[0].Steps)
	require.True(t, outcome.Success)

	entries := outcome.Ledger.Entries()
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp))
	}
	completed := outcome.Ledger.Count(EventStepCompleted, EventStepFailed)
	assert.Equal(t, ec.Metrics.StepsExecuted, completed)
}
