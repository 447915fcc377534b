package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execConditional evaluates condition and runs thenSteps (truthy) or
// elseSteps (falsy) sequentially, propagating the first failure
// (spec.md §4.H).
func execConditional(ctx context.Context, ec *Context, step *ir.Step, _ *InMemoryLedger, run Runner) (StepResult, error) {
	v, err := eval.EvalAsync(ctx, step.Condition, ec.newEvalContext())
	if err != nil {
		return fail(step.Id, err), err
	}
	branch := step.ElseSteps
	if truthy(v) {
		branch = step.ThenSteps
	}
	return runSequential(ctx, step.Id, branch, run)
}
