package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSwapDeterministic(t *testing.T) {
	m := NewMock("aave", 1)
	m.ExRates["usdc/dai"] = 1.01
	action := Action{Method: "swap", Args: map[string]any{"from": "usdc", "to": "dai", "amount": float64(100)}}
	res, err := m.SimulateAction(context.Background(), action, Context{ChainId: 1})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 101.0, res.Output["amountOut"])
}

func TestMockUnsupportedAction(t *testing.T) {
	m := NewMock("aave", 1)
	res, err := m.SimulateAction(context.Background(), Action{Method: "unknown"}, Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestRegistryResolveSkillPrefersSupportedChain(t *testing.T) {
	reg := NewRegistry()
	aave := NewMock("aave", 1)
	compound := NewMock("compound", 137)
	reg.Register(aave)
	reg.Register(compound)

	picked, err := reg.ResolveSkill([]string{"@compound", "@aave"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "aave", picked.Meta().Name)
}

func TestRegistryResolveSkillFallsBackToFirst(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMock("aave", 1))
	picked, err := reg.ResolveSkill([]string{"@aave"}, 999)
	require.NoError(t, err)
	assert.Equal(t, "aave", picked.Meta().Name)
}
