package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execCompute evaluates each assignment in source order, emitting
// binding_set after every successful write; the first failing expression
// aborts the step (spec.md §4.H).
func execCompute(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, _ Runner) (StepResult, error) {
	evalCtx := ec.newEvalContext()
	var last any
	for _, a := range step.Assignments {
		v, err := eval.EvalAsync(ctx, a.Expression, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		switch a.Target {
		case ir.TargetPersistent:
			ec.Persistent[a.Variable] = v
			evalCtx.Persistent[a.Variable] = v
		case ir.TargetEphemeral:
			ec.Ephemeral[a.Variable] = v
			evalCtx.Ephemeral[a.Variable] = v
		default:
			ec.Bindings.Set(a.Variable, v)
			evalCtx.Bindings[a.Variable] = v
		}
		ledger.Append(EventBindingSet, map[string]any{"variable": a.Variable, "target": string(a.Target)})
		last = v
	}
	return ok(step.Id, last), nil
}
