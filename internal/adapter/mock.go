package adapter

import (
	"context"
	"fmt"
	"math/big"
)

// Mock is a deterministic in-memory adapter used by `simulate` and by every
// executor test, per SPEC_FULL §4.J: fixed exchange-rate arithmetic so
// tests are reproducible without network access.
type Mock struct {
	Name    string
	Chains  []uint64
	ExRates map[string]float64 // "FROM/TO" -> rate, default 1.0
}

// NewMock builds a Mock adapter supporting the seven core DeFi actions.
func NewMock(name string, chains ...uint64) *Mock {
	return &Mock{Name: name, Chains: chains, ExRates: map[string]float64{}}
}

func (m *Mock) Meta() Meta {
	return Meta{
		Name:            m.Name,
		SupportedChains: m.Chains,
		Actions:         []string{"swap", "lend", "borrow", "transfer", "bridge", "stake", "claim"},
		ExecutionType:   OnChain,
		Description:     "deterministic mock adapter for simulation and tests",
	}
}

func (m *Mock) rate(from, to string) float64 {
	if r, ok := m.ExRates[from+"/"+to]; ok {
		return r
	}
	return 1.0
}

func (m *Mock) BuildAction(_ context.Context, action Action, actx Context) ([]BuiltTransaction, error) {
	return []BuiltTransaction{{
		To:       m.Name,
		Data:     action.Method,
		Value:    amountArg(action),
		ChainId:  actx.ChainId,
		GasLimit: "21000",
	}}, nil
}

func (m *Mock) ExecuteAction(ctx context.Context, action Action, actx Context) (ActionExecutionResult, error) {
	out, gas, err := m.run(action)
	if err != nil {
		return ActionExecutionResult{Success: false, Error: err.Error()}, nil
	}
	return ActionExecutionResult{Success: true, TxHash: fmt.Sprintf("0xmock%s", action.Method), GasUsed: gas, Output: out}, nil
}

func (m *Mock) SimulateAction(ctx context.Context, action Action, actx Context) (SimulationResult, error) {
	out, gas, err := m.run(action)
	if err != nil {
		return SimulationResult{Success: false, Error: err.Error()}, nil
	}
	return SimulationResult{Success: true, GasUsed: gas, Output: out}, nil
}

// run applies fixed exchange-rate arithmetic per action kind, returning a
// decimal-string gas estimate (spec.md §6: "gas amounts serialised as
// decimal strings").
func (m *Mock) run(action Action) (map[string]any, string, error) {
	switch action.Method {
	case "swap":
		from, _ := action.Args["from"].(string)
		to, _ := action.Args["to"].(string)
		amt := amountFloat(action)
		out := amt * m.rate(from, to)
		return map[string]any{"amountOut": out}, "120000", nil
	case "lend", "stake":
		return map[string]any{"deposited": amountFloat(action)}, "90000", nil
	case "borrow":
		return map[string]any{"borrowed": amountFloat(action)}, "110000", nil
	case "transfer", "bridge":
		return map[string]any{"sent": amountFloat(action)}, "21000", nil
	case "claim":
		return map[string]any{"claimed": amountFloat(action)}, "60000", nil
	default:
		return nil, "", fmt.Errorf("mock adapter does not support action %q", action.Method)
	}
}

func amountArg(action Action) string {
	if v, ok := action.Args["amount"]; ok {
		return fmt.Sprint(v)
	}
	return "0"
}

func amountFloat(action Action) float64 {
	v, ok := action.Args["amount"]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case *big.Int:
		f, _ := new(big.Float).SetInt(t).Float64()
		return f
	case string:
		if t == "max" {
			return -1 // sentinel per spec.md §4.H
		}
	}
	return 0
}
