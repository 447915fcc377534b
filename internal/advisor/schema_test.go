package advisor

import (
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromExprBareTypes(t *testing.T) {
	assert.Equal(t, KindBoolean, FromExpr(expr.BindingRef("bool")).Kind)
	assert.Equal(t, KindNumber, FromExpr(expr.BindingRef("number")).Kind)
	assert.Equal(t, KindString, FromExpr(expr.BindingRef("string")).Kind)
}

func TestFromExprEnum(t *testing.T) {
	call := &expr.Expr{
		Kind:     expr.Call,
		Fn:       "enum",
		ArgNames: []string{"values"},
		Args: []*expr.Expr{{
			Kind: expr.Array,
			Items: []*expr.Expr{
				expr.Lit("bullish", "string"),
				expr.Lit("bearish", "string"),
			},
		}},
	}
	s := FromExpr(call)
	require.Equal(t, KindEnum, s.Kind)
	assert.Equal(t, []string{"bullish", "bearish"}, s.Values)
}

func TestCoerceBoolean(t *testing.T) {
	assert.Equal(t, true, Coerce("yes", Spec{Kind: KindBoolean}))
	assert.Equal(t, false, Coerce("", Spec{Kind: KindBoolean}))
	assert.Equal(t, false, Coerce(nil, Spec{Kind: KindBoolean}))
}

func TestCoerceEnumFallsBackToFirstValue(t *testing.T) {
	s := Spec{Kind: KindEnum, Values: []string{"bullish", "bearish"}}
	assert.Equal(t, "bullish", Coerce("bullish", s))
	assert.Equal(t, "bullish", Coerce("sideways", s))
}

func TestCoerceObjectFillsMissingFields(t *testing.T) {
	s := Spec{Kind: KindObject, Fields: map[string]Spec{
		"confidence": {Kind: KindNumber},
		"reason":     {Kind: KindString},
	}}
	out := Coerce(map[string]any{"confidence": float64(0.8)}, s)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.8, m["confidence"])
	assert.Equal(t, "", m["reason"])
}

func TestCoerceArray(t *testing.T) {
	s := Spec{Kind: KindArray, Item: &Spec{Kind: KindNumber}}
	out := Coerce([]any{"1", true, float64(3)}, s)
	arr, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, arr, 3)
	assert.Equal(t, float64(1), arr[1])
}

func TestCompileAndValidateSchema(t *testing.T) {
	s := Spec{Kind: KindObject, Fields: map[string]Spec{
		"confidence": {Kind: KindNumber},
	}}
	compiled, err := Compile("risk-oracle", s)
	require.NoError(t, err)
	err = Validate(compiled, map[string]any{"confidence": 0.5})
	assert.NoError(t, err)
}

func TestCompileAllResolvesEveryAdvisoryStep(t *testing.T) {
	sir := &ir.SpellIR{
		Steps: map[string]*ir.Step{
			"ask_risk": {Id: "ask_risk", Kind: ir.StepAdvisory, Advisory: ir.Advisory{
				Advisor: "risk-oracle", OutputSchema: expr.BindingRef("bool"),
			}},
			"compute_1": {Id: "compute_1", Kind: ir.StepCompute},
		},
	}
	resolved, errs := CompileAll(sir)
	assert.Empty(t, errs)
	require.Len(t, resolved, 1)
	assert.Equal(t, "ask_risk", resolved[0].StepId)
	assert.Equal(t, "risk-oracle", resolved[0].Advisor)
	assert.Equal(t, "boolean", resolved[0].Doc.Type)
}
