package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execWait pauses for `duration` seconds via the context's injectable
// Clock (spec.md §4.H: "in tests the timer may be fake").
func execWait(ctx context.Context, ec *Context, step *ir.Step, _ *InMemoryLedger, _ Runner) (StepResult, error) {
	v, err := eval.EvalAsync(ctx, step.Duration, ec.newEvalContext())
	if err != nil {
		return fail(step.Id, err), err
	}
	secs, isNum := toFloatLocal(v)
	if !isNum {
		err := fmt.Errorf("TYPE_ERROR: wait duration must be numeric")
		return fail(step.Id, err), err
	}
	if ec.Clock != nil {
		ec.Clock.Sleep(time.Duration(secs * float64(time.Second)))
	}
	return ok(step.Id, nil), nil
}
