package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// Driver dispatches a spell's top-level steps against a Registry, handling
// ledgering, metrics, guard evaluation and cancellation (spec.md §4.I),
// grounded on the teacher's runtime/executor/executor.go Execute loop
// (sequential dispatch, per-step telemetry, fail-fast/halt propagation).
type Driver struct {
	Registry Registry
	Clock    Clock
}

// NewDriver builds a Driver with the default executor registry.
func NewDriver(clock Clock) *Driver {
	if clock == nil {
		clock = RealClock{}
	}
	return &Driver{Registry: NewRegistry(), Clock: clock}
}

// RunOutcome is the driver's result for one trigger invocation.
type RunOutcome struct {
	Success   bool
	StartTime time.Time
	EndTime   time.Time
	Error     error
	Ledger    *InMemoryLedger
}

// Run executes stepIds (a trigger's top-level step list) in topological
// order, evaluating guards and updating metrics after each top-level step,
// and stopping on halt, unhandled failure, or ctx cancellation
// (spec.md §4.I, §5).
func (d *Driver) Run(ctx context.Context, ec *Context, stepIds []string) RunOutcome {
	ledger := NewLedger(d.Clock)
	ec.Clock = d.Clock
	start := d.Clock.Now()
	ledger.Append(EventRunStarted, map[string]any{"runId": ec.RunId})

	ordered, cycleErr := topoOrder(ec.Spell, stepIds)
	success := true
	var runErr error

	if cycleErr != nil {
		success = false
		runErr = cycleErr
	} else {
	dispatchLoop:
		for _, id := range ordered {
			select {
			case <-ctx.Done():
				success = false
				runErr = fmt.Errorf("CANCELLED: %w", ctx.Err())
				break dispatchLoop
			default:
			}

			res := d.dispatch(ctx, ec, ledger, id)
			if !res.Success {
				success = false
				runErr = res.Error
			}

			d.evaluateGuards(ec, ledger, &success, &runErr)

			if res.Halted || !success {
				break
			}
		}
	}

	ledger.Append(EventRunCompleted, map[string]any{"success": success})
	return RunOutcome{Success: success, StartTime: start, EndTime: d.Clock.Now(), Error: runErr, Ledger: ledger}
}

// dispatch runs exactly one step, bracketing it with step_started /
// step_completed|step_failed ledger entries and metrics.stepsExecuted,
// regardless of nesting depth (needed for the metric-conservation
// invariant, spec.md §8).
func (d *Driver) dispatch(ctx context.Context, ec *Context, ledger *InMemoryLedger, stepId string) StepResult {
	step, found := ec.Spell.Steps[stepId]
	if !found {
		err := fmt.Errorf("UNKNOWN_STEP_REFERENCE: step %q not found", stepId)
		return StepResult{StepId: stepId, Success: false, Error: err}
	}

	select {
	case <-ctx.Done():
		return StepResult{StepId: stepId, Success: false, Error: ctx.Err()}
	default:
	}

	ledger.Append(EventStepStarted, map[string]any{"stepId": stepId, "kind": string(step.Kind)})

	executor, found := d.Registry[step.Kind]
	if !found {
		err := fmt.Errorf("no executor registered for step kind %q", step.Kind)
		ec.Metrics.StepsExecuted++
		ec.Metrics.Errors++
		ledger.Append(EventStepFailed, map[string]any{"stepId": stepId, "error": err.Error()})
		return StepResult{StepId: stepId, Success: false, Error: err}
	}

	runner := func(ctx2 context.Context, id string) (StepResult, error) {
		res := d.dispatch(ctx2, ec, ledger, id)
		return res, res.Error
	}

	res, err := executor(ctx, ec, step, ledger, runner)
	if err != nil && res.Error == nil {
		res.Error = err
	}
	res.StepId = stepId

	ec.Metrics.StepsExecuted++
	if res.Error != nil || !res.Success {
		ec.Metrics.Errors++
		ledger.Append(EventStepFailed, map[string]any{"stepId": stepId, "error": errString(res.Error)})
	} else {
		ledger.Append(EventStepCompleted, map[string]any{"stepId": stepId, "halted": res.Halted})
	}
	return res
}

// evaluateGuards checks every guard whose check expression references only
// currently-bound names; a failing error-severity guard fails the run, a
// failing warn-severity guard emits guard_failed and continues
// (spec.md §4.I).
func (d *Driver) evaluateGuards(ec *Context, ledger *InMemoryLedger, success *bool, runErr *error) {
	if !*success {
		return
	}
	bound := ec.Bindings.Snapshot()
	for _, g := range ec.Spell.Guards {
		if !referencesOnlyBound(g.Check, bound) {
			continue
		}
		v, err := eval.Eval(g.Check, ec.newEvalContext())
		if err != nil {
			continue
		}
		if truthy(v) {
			continue
		}
		if g.Severity == "error" {
			*success = false
			*runErr = fmt.Errorf("GUARD_FAILED: %s", g.Message)
			ledger.Append(EventGuardFailed, map[string]any{"guardId": g.Id, "severity": g.Severity, "message": g.Message})
			return
		}
		ledger.Append(EventGuardFailed, map[string]any{"guardId": g.Id, "severity": g.Severity, "message": g.Message})
	}
}

func referencesOnlyBound(e *expr.Expr, bound map[string]any) bool {
	ok := true
	expr.Walk(e, func(n *expr.Expr) {
		if n.Kind == expr.Binding {
			if _, found := bound[n.Name]; !found {
				ok = false
			}
		}
	})
	return ok
}

// topoOrder computes a topological order over stepIds using their
// DependsOn edges (Kahn's algorithm, ties broken by original index for
// determinism — spec.md §4.I); it mirrors internal/validate's cycle
// detection but returns the order instead of a pass/fail verdict.
func topoOrder(sir *ir.SpellIR, stepIds []string) ([]string, error) {
	index := make(map[string]int, len(stepIds))
	for i, id := range stepIds {
		index[id] = i
	}
	indegree := make(map[string]int, len(stepIds))
	adj := make(map[string][]string, len(stepIds))
	for _, id := range stepIds {
		indegree[id] = 0
	}
	for _, id := range stepIds {
		step := sir.Steps[id]
		if step == nil {
			continue
		}
		for _, dep := range step.DependsOn {
			if _, in := index[dep]; !in {
				continue
			}
			adj[dep] = append(adj[dep], id)
			indegree[id]++
		}
	}

	var ready []string
	for _, id := range stepIds {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		// pick the lowest-original-index ready node for determinism.
		besti := 0
		for i := 1; i < len(ready); i++ {
			if index[ready[i]] < index[ready[besti]] {
				besti = i
			}
		}
		next := ready[besti]
		ready = append(ready[:besti], ready[besti+1:]...)
		order = append(order, next)

		for _, dst := range adj[next] {
			indegree[dst]--
			if indegree[dst] == 0 {
				ready = append(ready, dst)
			}
		}
	}

	if len(order) != len(stepIds) {
		return nil, fmt.Errorf("DEPENDENCY_CYCLE: step graph contains a cycle")
	}
	return order, nil
}
