package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execTry runs trySteps; on failure it matches catch blocks in order
// (matcher is a predicate over the error), running the first match.
// Unmatched failures re-raise (spec.md §4.H).
func execTry(ctx context.Context, ec *Context, step *ir.Step, _ *InMemoryLedger, run Runner) (StepResult, error) {
	res, err := runSequential(ctx, step.Id, step.TrySteps, run)
	if err == nil && res.Success {
		return res, nil
	}

	for _, c := range step.CatchBlocks {
		matched := true
		if c.Matcher != nil {
			evalCtx := ec.newEvalContext()
			evalCtx.Bindings["error"] = errString(err)
			v, mErr := eval.EvalAsync(ctx, c.Matcher, evalCtx)
			matched = mErr == nil && truthy(v)
		}
		if matched {
			return runSequential(ctx, step.Id, c.Steps, run)
		}
	}
	return StepResult{StepId: step.Id, Success: false, Error: err}, err
}
