package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execEmit evaluates each data field and appends a custom_event ledger
// entry (spec.md §4.H).
func execEmit(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, _ Runner) (StepResult, error) {
	evalCtx := ec.newEvalContext()
	data := map[string]any{}
	for k, e := range step.Data {
		v, err := eval.EvalAsync(ctx, e, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		data[k] = v
	}
	payload := map[string]any{"name": step.Event}
	for k, v := range data {
		payload[k] = v
	}
	ledger.Append(EventCustom, payload)
	return ok(step.Id, data), nil
}
