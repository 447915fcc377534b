package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execHalt marks the result halted; the scheduler stops further dispatch
// (spec.md §4.H).
func execHalt(ctx context.Context, ec *Context, step *ir.Step, _ *InMemoryLedger, _ Runner) (StepResult, error) {
	var msg any
	if step.Message != nil {
		if v, err := eval.EvalAsync(ctx, step.Message, ec.newEvalContext()); err == nil {
			msg = v
		}
	}
	return StepResult{StepId: step.Id, Success: true, Halted: true, Output: msg}, nil
}
