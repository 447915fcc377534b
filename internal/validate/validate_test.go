package validate

import (
	"testing"

	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleDetection(t *testing.T) {
	sir := &ir.SpellIR{
		Steps: map[string]*ir.Step{
			"A": {Id: "A", Kind: ir.StepCompute, DependsOn: []string{"B"}},
			"B": {Id: "B", Kind: ir.StepCompute, DependsOn: []string{"A"}},
		},
		Order: []string{"A", "B"},
	}
	res := Validate(sir)
	require.False(t, res.Valid)
	var found bool
	for _, f := range res.Errors {
		if f.Code == "DEPENDENCY_CYCLE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNoStepsWarns(t *testing.T) {
	sir := &ir.SpellIR{Steps: map[string]*ir.Step{}}
	res := Validate(sir)
	require.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "NO_STEPS", res.Warnings[0].Code)
}

func TestUnknownStepReference(t *testing.T) {
	sir := &ir.SpellIR{
		Steps: map[string]*ir.Step{
			"A": {Id: "A", Kind: ir.StepCompute, DependsOn: []string{"missing"}},
		},
		Order: []string{"A"},
	}
	res := Validate(sir)
	require.False(t, res.Valid)
	assert.Equal(t, "UNKNOWN_STEP_REFERENCE", res.Errors[0].Code)
}

func TestValidLinearGraph(t *testing.T) {
	sir := &ir.SpellIR{
		Steps: map[string]*ir.Step{
			"compute_1": {Id: "compute_1", Kind: ir.StepCompute},
			"compute_2": {Id: "compute_2", Kind: ir.StepCompute, DependsOn: []string{"compute_1"}},
		},
		Order: []string{"compute_1", "compute_2"},
	}
	res := Validate(sir)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestAdvisorySchemaCompilesCleanlyForBareTypeSchema(t *testing.T) {
	sir := &ir.SpellIR{
		Steps: map[string]*ir.Step{
			"ask_risk": {
				Id: "ask_risk", Kind: ir.StepAdvisory,
				Advisory: ir.Advisory{Advisor: "oracle", OutputSchema: expr.BindingRef("bool"), Timeout: litNumber(30)},
			},
		},
		Order: []string{"ask_risk"},
	}
	res := Validate(sir)
	for _, f := range res.Errors {
		assert.NotEqual(t, "INVALID_ADVISORY_SCHEMA", f.Code)
	}
}

func litNumber(v float64) *expr.Expr {
	return &expr.Expr{Kind: expr.Literal, Value: v}
}
