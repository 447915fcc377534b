package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// Runner dispatches a nested step by id, used by executors for
// conditional/loop/parallel/pipeline/try bodies (spec.md §4.H's
// `executeStepById`).
type Runner func(ctx context.Context, stepId string) (StepResult, error)

// Executor is one step-kind handler (spec.md §4.H: receives
// `(step, ctx, ledger, executeStepById)`).
type Executor func(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, run Runner) (StepResult, error)

// Registry maps a step kind to its executor, grounded on the teacher's
// core/decorator/registry.go kind→handler registration pattern
// (internal/adapter.Registry is the sibling venue-side instance of the
// same idiom).
type Registry map[ir.StepKind]Executor

// NewRegistry builds the default registry covering every step kind.
func NewRegistry() Registry {
	return Registry{
		ir.StepCompute:     execCompute,
		ir.StepConditional: execConditional,
		ir.StepLoop:        execLoop,
		ir.StepParallel:    execParallel,
		ir.StepPipeline:    execPipeline,
		ir.StepTry:         execTry,
		ir.StepAction:      execAction,
		ir.StepEmit:        execEmit,
		ir.StepWait:        execWait,
		ir.StepHalt:        execHalt,
		ir.StepAdvisory:    execAdvisory,
	}
}

// runSequential runs a nested id list in order, stopping at the first
// failure or halt, and reports its outcome under parentId.
func runSequential(ctx context.Context, parentId string, ids []string, run Runner) (StepResult, error) {
	var last StepResult
	for _, id := range ids {
		res, err := run(ctx, id)
		last = res
		if err != nil || !res.Success {
			return StepResult{StepId: parentId, Success: false, Error: res.Error, Output: res.Output}, res.Error
		}
		if res.Halted {
			return StepResult{StepId: parentId, Success: true, Halted: true, Output: res.Output}, nil
		}
	}
	return StepResult{StepId: parentId, Success: true, Output: last.Output}, nil
}
