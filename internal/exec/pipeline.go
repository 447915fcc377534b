package exec

import (
	"context"
	"fmt"
	"sort"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execPipeline evaluates source (must be an array) then applies stages in
// order: where/sort/map/take/skip (spec.md §4.H).
func execPipeline(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, run Runner) (StepResult, error) {
	evalCtx := ec.newEvalContext()
	v, err := eval.EvalAsync(ctx, step.PipeSource, evalCtx)
	if err != nil {
		return fail(step.Id, err), err
	}
	arr, isArr := v.([]any)
	if !isArr {
		err := fmt.Errorf("TYPE_ERROR: pipeline source is not an array")
		return fail(step.Id, err), err
	}

	for _, stage := range step.Stages {
		switch stage.Op {
		case "where":
			var out []any
			for i, item := range arr {
				itemCtx := ec.newEvalContext()
				itemCtx.Item, itemCtx.Index, itemCtx.HasItem = item, float64(i), true
				keep, err := eval.EvalAsync(ctx, stage.Pred, itemCtx)
				if err != nil {
					return fail(step.Id, err), err
				}
				if truthy(keep) {
					out = append(out, item)
				}
			}
			arr = out

		case "sort":
			arr, err = sortStage(ctx, ec, arr, stage)
			if err != nil {
				return fail(step.Id, err), err
			}

		case "map":
			var out []any
			for i, item := range arr {
				ec.Bindings.Set("item", item)
				ec.Bindings.Set("index", float64(i))
				res, err := runSequential(ctx, step.Id, stage.Steps, run)
				if err != nil || !res.Success {
					return res, err
				}
				out = append(out, res.Output)
			}
			arr = out

		case "take":
			n, err := stageCount(ctx, ec, stage.N)
			if err != nil {
				return fail(step.Id, err), err
			}
			if n < len(arr) {
				arr = arr[:n]
			}

		case "skip":
			n, err := stageCount(ctx, ec, stage.N)
			if err != nil {
				return fail(step.Id, err), err
			}
			if n < len(arr) {
				arr = arr[n:]
			} else {
				arr = nil
			}
		}
	}

	if step.OutputBinding != "" {
		ec.Bindings.Set(step.OutputBinding, arr)
		ledger.Append(EventBindingSet, map[string]any{"variable": step.OutputBinding})
	}
	return ok(step.Id, arr), nil
}

func stageCount(ctx context.Context, ec *Context, e *expr.Expr) (int, error) {
	v, err := eval.EvalAsync(ctx, e, ec.newEvalContext())
	if err != nil {
		return 0, err
	}
	n, ok := toIntLocal(v)
	if !ok {
		return 0, fmt.Errorf("TYPE_ERROR: pipeline take/skip count must be numeric")
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func sortStage(ctx context.Context, ec *Context, arr []any, stage ir.Stage) ([]any, error) {
	type keyed struct {
		item any
		key  float64
	}
	keys := make([]keyed, len(arr))
	for i, item := range arr {
		itemCtx := ec.newEvalContext()
		itemCtx.Item, itemCtx.Index, itemCtx.HasItem = item, float64(i), true
		v, err := eval.EvalAsync(ctx, stage.By, itemCtx)
		if err != nil {
			return nil, err
		}
		f, _ := toFloatLocal(v)
		keys[i] = keyed{item: item, key: f}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if stage.Order == "desc" {
			return keys[i].key > keys[j].key
		}
		return keys[i].key < keys[j].key
	})
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k.item
	}
	return out, nil
}
