package exec

import (
	"context"
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execLoop implements repeat/for/until iteration, each capped by
// maxIterations; body failure aborts the loop with the body error
// (spec.md §4.H).
func execLoop(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, run Runner) (StepResult, error) {
	max := step.MaxIterations
	if max <= 0 {
		max = ir.DefaultMaxIterations
	}
	evalCtx := ec.newEvalContext()
	var outputs []any

	runBody := func() (StepResult, error) {
		res, err := runSequential(ctx, step.Id, step.BodySteps, run)
		if err == nil && res.Success {
			outputs = append(outputs, res.Output)
		}
		return res, err
	}

	switch step.LoopType {
	case ir.LoopRepeat:
		v, err := eval.EvalAsync(ctx, step.LoopCount, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		count, ok := toIntLocal(v)
		if !ok {
			err := fmt.Errorf("TYPE_ERROR: repeat count must be numeric")
			return fail(step.Id, err), err
		}
		if count > max {
			count = max
		}
		for i := 0; i < count; i++ {
			ec.Bindings.Set("index", float64(i))
			evalCtx.Bindings["index"] = float64(i)
			res, err := runBody()
			if err != nil || !res.Success {
				return res, err
			}
			if res.Halted {
				return res, nil
			}
		}

	case ir.LoopFor:
		v, err := eval.EvalAsync(ctx, step.LoopSource, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		arr, isArr := v.([]any)
		if !isArr {
			err := fmt.Errorf("TYPE_ERROR: for-loop source is not an array")
			return fail(step.Id, err), err
		}
		n := len(arr)
		if n > max {
			n = max
		}
		for i := 0; i < n; i++ {
			item := arr[i]
			ec.Bindings.Set(step.LoopVar, item)
			ec.Bindings.Set("item", item)
			ec.Bindings.Set("index", float64(i))
			evalCtx.Bindings[step.LoopVar] = item
			evalCtx.Bindings["item"] = item
			evalCtx.Bindings["index"] = float64(i)
			res, err := runBody()
			if err != nil || !res.Success {
				return res, err
			}
			if res.Halted {
				return res, nil
			}
		}

	case ir.LoopUntil:
		for i := 0; i < max; i++ {
			v, err := eval.EvalAsync(ctx, step.LoopCond, ec.newEvalContext())
			if err != nil {
				return fail(step.Id, err), err
			}
			if truthy(v) {
				break
			}
			res, err := runBody()
			if err != nil || !res.Success {
				return res, err
			}
			if res.Halted {
				return res, nil
			}
		}
	}

	if step.OutputBinding != "" {
		ec.Bindings.Set(step.OutputBinding, outputs)
		ledger.Append(EventBindingSet, map[string]any{"variable": step.OutputBinding})
	}
	return ok(step.Id, outputs), nil
}
