package ir

import (
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/lexer"
	"github.com/franalgaba/grimoire-sub002/internal/parser"
	"github.com/franalgaba/grimoire-sub002/internal/transform"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *SpellIR {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	spell, err := parser.Parse(toks)
	require.NoError(t, err)
	source, _ := transform.Lower(spell)
	return Generate("spell-1", source, "deadbeef", "2026-01-01T00:00:00Z")
}

func TestMinimalSpellIR(t *testing.T) {
	src := "spell Minimal:\n  version: \"1.0.0\"\n  on manual:\n    x = 42\n"
	sir := compile(t, src)
	require.Len(t, sir.Order, 1)
	step := sir.Steps[sir.Order[0]]
	require.Equal(t, StepCompute, step.Kind)
	require.Len(t, step.Assignments, 1)
	require.Equal(t, "x", step.Assignments[0].Variable)
	require.Equal(t, expr.Literal, step.Assignments[0].Expression.Kind)
	require.Equal(t, float64(42), step.Assignments[0].Expression.Value)
}

func TestStepIdsAreUnique(t *testing.T) {
	src := "" +
		"spell Many:\n" +
		"  on manual:\n" +
		"    a = 1\n" +
		"    if a > 0:\n" +
		"      b = 2\n" +
		"    else:\n" +
		"      b = 3\n" +
		"    for i in [1,2]:\n" +
		"      emit tick(v=i)\n"
	sir := compile(t, src)
	seen := map[string]bool{}
	for id := range sir.Steps {
		require.False(t, seen[id], "duplicate step id %s", id)
		seen[id] = true
	}
	require.True(t, len(sir.Steps) >= 4)
}

func TestConditionalForLoopLowering(t *testing.T) {
	src := "" +
		"spell Loopy:\n" +
		"  on manual:\n" +
		"    for i in items:\n" +
		"      if i > 10:\n" +
		"        emit big(v=i)\n"
	sir := compile(t, src)
	require.Len(t, sir.Triggers, 1)
	require.Len(t, sir.Triggers[0].Steps, 1)
	loopStep := sir.Steps[sir.Triggers[0].Steps[0]]
	require.Equal(t, StepLoop, loopStep.Kind)
	require.Equal(t, LoopFor, loopStep.LoopType)
	require.Len(t, loopStep.BodySteps, 1)
	condStep := sir.Steps[loopStep.BodySteps[0]]
	require.Equal(t, StepConditional, condStep.Kind)
	require.Len(t, condStep.ThenSteps, 1)
	emitStep := sir.Steps[condStep.ThenSteps[0]]
	require.Equal(t, StepEmit, emitStep.Kind)
	require.Equal(t, "big", emitStep.Event)
}

func TestActionAndAdvisoryClassification(t *testing.T) {
	src := "" +
		"spell Act:\n" +
		"  venues:\n" +
		"    main = @aave\n" +
		"  advisors:\n" +
		"    oracle: { model: \"gpt\", scope: \"risk\" }\n" +
		"  on manual:\n" +
		"    @aave.deposit(asset=\"usdc\", amount=100)\n" +
		"    result = oracle.ask(**proceed?**, schema=bool, timeout=30s, fallback=true)\n"
	sir := compile(t, src)
	require.Len(t, sir.Triggers[0].Steps, 2)
	actionStep := sir.Steps[sir.Triggers[0].Steps[0]]
	require.Equal(t, StepAction, actionStep.Kind)
	require.Equal(t, "aave", actionStep.Action.Alias)
	require.Equal(t, "deposit", actionStep.Action.Method)
	advStep := sir.Steps[sir.Triggers[0].Steps[1]]
	require.Equal(t, StepAdvisory, advStep.Kind)
	require.Equal(t, "oracle", advStep.Advisory.Advisor)
	require.Equal(t, "result", advStep.OutputBinding)
}

func TestAssignmentBatching(t *testing.T) {
	src := "spell Batch:\n  on manual:\n    a = 1\n    b = 2\n    c = 3\n"
	sir := compile(t, src)
	require.Len(t, sir.Order, 1)
	step := sir.Steps[sir.Order[0]]
	require.Len(t, step.Assignments, 3)
}

func TestStatePersistentAssignment(t *testing.T) {
	src := "spell St:\n  on manual:\n    state.counter = 0\n    ephemeral.tmp = 1\n"
	sir := compile(t, src)
	require.Contains(t, sir.PersistentState, "counter")
	require.Contains(t, sir.EphemeralState, "tmp")
}
