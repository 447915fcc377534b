package exec

import "math/big"

// Metrics tracks per-run counters (spec.md §4.G ctx.metrics).
type Metrics struct {
	StepsExecuted   int
	ActionsExecuted int
	GasUsed         *big.Int
	AdvisoryCalls   int
	Errors          int
	Retries         int
}

// NewMetrics returns a zeroed Metrics with GasUsed initialised to 0.
func NewMetrics() *Metrics {
	return &Metrics{GasUsed: big.NewInt(0)}
}

// AddGas accumulates a decimal-string gas amount (spec.md §6 gas
// serialisation rule), ignoring malformed input rather than failing the
// run over telemetry.
func (m *Metrics) AddGas(decimal string) {
	if decimal == "" {
		return
	}
	n, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return
	}
	m.GasUsed.Add(m.GasUsed, n)
}
