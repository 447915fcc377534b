package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execAction resolves a venue from alias or skill, evaluates arguments and
// constraints, then simulates or executes the call depending on
// ctx.simulate, applying the step's onFailure policy (spec.md §4.H).
func execAction(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, _ Runner) (StepResult, error) {
	evalCtx := ec.newEvalContext()
	args := map[string]any{}
	for k, e := range step.Action.Args {
		v, err := eval.EvalAsync(ctx, e, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		args[k] = v
	}
	constraints := map[string]any{}
	for k, e := range step.Action.Constraints {
		v, err := eval.EvalAsync(ctx, e, evalCtx)
		if err != nil {
			return fail(step.Id, err), err
		}
		constraints[k] = v
	}

	ad, resolveErr := resolveAdapter(ec, step.Action)
	attempt := func() (StepResult, error) {
		if resolveErr != nil {
			return fail(step.Id, resolveErr), resolveErr
		}
		return dispatchAction(ctx, ec, step, ledger, ad, args, constraints)
	}

	res, err := attempt()
	if err == nil {
		return res, nil
	}
	return applyOnFailure(ec, step, res, err, attempt)
}

func resolveAdapter(ec *Context, action ir.Action) (adapter.Adapter, error) {
	if action.Alias != "" {
		a, found := ec.Adapters.Lookup(action.Alias)
		if !found {
			return nil, fmt.Errorf("unknown venue alias %q", action.Alias)
		}
		return a, nil
	}
	if action.Skill != "" {
		skill, found := ec.Skill(action.Skill)
		if !found {
			return nil, fmt.Errorf("unknown skill %q", action.Skill)
		}
		return ec.Adapters.ResolveSkill(skill.Adapters, ec.Chain)
	}
	return nil, fmt.Errorf("action step resolves neither an alias nor a skill")
}

func dispatchAction(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, ad adapter.Adapter, args, constraints map[string]any) (StepResult, error) {
	payload := adapter.Action{Method: step.Action.Method, Args: args, Constraints: constraints}
	actx := adapter.Context{Provider: ad.Meta().Name, WalletAddress: ec.Vault, ChainId: ec.Chain}

	if ec.Simulate {
		res, err := ad.SimulateAction(ctx, payload, actx)
		if err != nil {
			return fail(step.Id, err), err
		}
		ledger.Append(EventActionSimulated, map[string]any{"method": step.Action.Method, "success": res.Success, "gasUsed": res.GasUsed})
		ec.Metrics.ActionsExecuted++
		ec.Metrics.AddGas(res.GasUsed)
		if !res.Success {
			err := fmt.Errorf("STEP_FAILED: %s", res.Error)
			return StepResult{StepId: step.Id, Success: false, Error: err, Output: res.Output}, err
		}
		return ok(step.Id, res.Output), nil
	}

	res, err := ad.ExecuteAction(ctx, payload, actx)
	if err != nil {
		return fail(step.Id, err), err
	}
	ledger.Append(EventActionExecuted, map[string]any{"method": step.Action.Method, "success": res.Success, "txHash": res.TxHash, "gasUsed": res.GasUsed})
	ec.Metrics.ActionsExecuted++
	ec.Metrics.AddGas(res.GasUsed)
	if !res.Success {
		err := fmt.Errorf("STEP_FAILED: %s", res.Error)
		return StepResult{StepId: step.Id, Success: false, Error: err, Output: res.Output}, err
	}
	return ok(step.Id, res.Output), nil
}

// applyOnFailure implements the action step's onFailure policy: revert
// fails the step, continue returns success with failure output recorded,
// retry(n) re-attempts up to n times with exponential backoff
// (spec.md §4.H).
func applyOnFailure(ec *Context, step *ir.Step, lastRes StepResult, lastErr error, attempt func() (StepResult, error)) (StepResult, error) {
	switch step.OnFailure.Mode {
	case "continue":
		return StepResult{StepId: step.Id, Success: true, Output: map[string]any{"error": errString(lastErr)}}, nil
	case "retry":
		backoff := time.Second
		for i := 0; i < step.OnFailure.Max; i++ {
			ec.Metrics.Retries++
			if ec.Clock != nil {
				ec.Clock.Sleep(backoff)
			}
			backoff *= 2
			res, err := attempt()
			if err == nil {
				return res, nil
			}
			lastRes, lastErr = res, err
		}
		return lastRes, lastErr
	default:
		return lastRes, lastErr
	}
}
