package exec

import (
	"context"

	"github.com/franalgaba/grimoire-sub002/internal/advisor"
	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// execAdvisory emits advisory_started (carrying a forward-compatible
// mcp.Tool descriptor built from the step's mcp argument, never invoked),
// produces a value by evaluating fallback and coercing it to outputSchema,
// binds it to outputBinding, and emits advisory_completed (or
// advisory_failed on error, still binding the coerced fallback) —
// spec.md §4.H. Real advisor invocation is a pure, never-dereferenced
// extension point (see internal/advisor.BuildMCPTool).
func execAdvisory(ctx context.Context, ec *Context, step *ir.Step, ledger *InMemoryLedger, _ Runner) (StepResult, error) {
	evalCtx := ec.newEvalContext()
	adv := step.Advisory

	prompt, _ := eval.EvalAsync(ctx, adv.Prompt, evalCtx)
	schema := advisor.FromExpr(adv.OutputSchema)

	mcpFields := make(map[string]any, len(adv.MCP))
	for k, e := range adv.MCP {
		v, _ := eval.EvalAsync(ctx, e, evalCtx)
		mcpFields[k] = v
	}
	tool := advisor.BuildMCPTool(adv, mcpFields)

	ledger.Append(EventAdvisoryStarted, map[string]any{
		"advisor":      adv.Advisor,
		"prompt":       prompt,
		"schema":       string(schema.Kind),
		"skills":       adv.Skills,
		"allowedTools": adv.AllowedTools,
		"mcp":          tool,
	})
	ec.Metrics.AdvisoryCalls++

	fallbackVal, evalErr := eval.EvalAsync(ctx, adv.Fallback, evalCtx)
	coerced := advisor.Coerce(fallbackVal, schema)

	if evalErr != nil {
		ledger.Append(EventAdvisoryFailed, map[string]any{"advisor": adv.Advisor, "error": evalErr.Error()})
	} else {
		ledger.Append(EventAdvisoryCompleted, map[string]any{"advisor": adv.Advisor, "output": coerced})
	}

	if step.OutputBinding != "" {
		ec.Bindings.Set(step.OutputBinding, coerced)
		evalCtx.Bindings[step.OutputBinding] = coerced
		ledger.Append(EventBindingSet, map[string]any{"variable": step.OutputBinding})
	}
	return ok(step.Id, coerced), nil
}
