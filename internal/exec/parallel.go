package exec

import (
	"context"
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

type branchOutcome struct {
	name    string
	success bool
	output  any
	err     error
}

// execParallel runs branches sequentially in declaration order (the
// deterministic baseline, spec.md §4.H) and applies the join policy.
func execParallel(ctx context.Context, ec *Context, step *ir.Step, _ *InMemoryLedger, run Runner) (StepResult, error) {
	var outcomes []branchOutcome
	succeeded := 0

	for _, b := range step.Branches {
		res, err := runSequential(ctx, step.Id, b.Steps, run)
		success := err == nil && res.Success
		if success {
			succeeded++
		} else if step.OnFail == "abort" {
			return StepResult{StepId: step.Id, Success: false, Error: err}, err
		}
		outcomes = append(outcomes, branchOutcome{name: b.Name, success: success, output: res.Output, err: err})

		switch step.Join.Mode {
		case "first":
			if success {
				return ok(step.Id, map[string]any{"branch": b.Name, "output": res.Output}), nil
			}
		case "any":
			if succeeded >= step.Join.Count {
				return finalizeAll(step.Id, outcomes), nil
			}
		}
	}

	switch step.Join.Mode {
	case "all", "any", "":
		return finalizeAll(step.Id, outcomes), nil
	case "majority":
		if succeeded*2 > len(step.Branches) {
			return finalizeAll(step.Id, outcomes), nil
		}
		err := fmt.Errorf("STEP_FAILED: parallel majority join did not reach quorum (%d/%d succeeded)", succeeded, len(step.Branches))
		return StepResult{StepId: step.Id, Success: false, Error: err}, err
	case "best":
		return bestBranch(step.Id, outcomes, step.Join.Order)
	case "first":
		err := fmt.Errorf("STEP_FAILED: no branch succeeded for join=first")
		return StepResult{StepId: step.Id, Success: false, Error: err}, err
	default:
		return finalizeAll(step.Id, outcomes), nil
	}
}

func finalizeAll(stepId string, outcomes []branchOutcome) StepResult {
	out := map[string]any{}
	for _, o := range outcomes {
		out[o.name] = o.output
	}
	return ok(stepId, out)
}

func bestBranch(stepId string, outcomes []branchOutcome, order string) (StepResult, error) {
	var bestName string
	var bestVal float64
	found := false
	for _, o := range outcomes {
		if !o.success {
			continue
		}
		f, isNum := toFloatLocal(o.output)
		if !isNum {
			continue
		}
		if !found || (order == "min" && f < bestVal) || (order != "min" && f > bestVal) {
			bestVal, bestName, found = f, o.name, true
		}
	}
	if !found {
		err := fmt.Errorf("STEP_FAILED: no branch produced a numeric output for join=best")
		return StepResult{StepId: stepId, Success: false, Error: err}, err
	}
	return ok(stepId, map[string]any{"branch": bestName, "output": bestVal}), nil
}
