package spell

import (
	"context"
	"fmt"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/eval"
	"github.com/franalgaba/grimoire-sub002/internal/exec"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/franalgaba/grimoire-sub002/internal/state"
)

// RunOptions configures one Run invocation (spec.md §6 CLI surface:
// simulate/run share this shape, differing only in Simulate).
type RunOptions struct {
	RunId     string
	Vault     string
	Chain     uint64
	Params    map[string]any
	Simulate  bool
	Adapters  *adapter.Registry
	Store     state.Store // nil disables persistence (CLI's --no-state)
	Clock     exec.Clock
}

// ExecutionResult is the CLI-facing run outcome (spec.md §4.I).
type ExecutionResult struct {
	Success    bool
	RunId      string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Metrics    *exec.Metrics
	FinalState map[string]any
	Ledger     []exec.LedgerEntry
	Error      error
}

// Run executes a compiled spell's manual trigger (or the first non-manual
// trigger if no manual one exists) to completion, seeding persistent state
// from opts.Store when present, and persisting the run record, ledger and
// updated state snapshot back to it afterward (spec.md §4.G, §6).
func Run(ctx context.Context, sir *ir.SpellIR, opts RunOptions) ExecutionResult {
	clock := opts.Clock
	if clock == nil {
		clock = exec.RealClock{}
	}
	adapters := opts.Adapters
	if adapters == nil {
		adapters = adapter.NewRegistry()
	}

	persistent, err := loadPersistentState(ctx, sir, opts)
	if err != nil {
		return ExecutionResult{Success: false, RunId: opts.RunId, Error: err}
	}

	ec := exec.NewContext(opts.RunId, sir, opts.Vault, opts.Chain, opts.Params, persistent, adapters, opts.Simulate, clock)

	trigger := pickTrigger(sir)
	driver := exec.NewDriver(clock)

	var outcome exec.RunOutcome
	if trigger == nil {
		outcome = exec.RunOutcome{Success: true, StartTime: clock.Now(), EndTime: clock.Now()}
	} else {
		outcome = driver.Run(ctx, ec, trigger.Steps)
	}

	result := ExecutionResult{
		Success:    outcome.Success,
		RunId:      opts.RunId,
		StartTime:  outcome.StartTime,
		EndTime:    outcome.EndTime,
		Duration:   outcome.EndTime.Sub(outcome.StartTime),
		Metrics:    ec.Metrics,
		FinalState: ec.FinalState(),
		Error:      outcome.Error,
	}
	if outcome.Ledger != nil {
		result.Ledger = outcome.Ledger.Entries()
	}

	persistRunResult(ctx, sir, opts, result)
	return result
}

// pickTrigger chooses the manual trigger, falling back to the first
// declared trigger when no manual one exists (CLI-driven runs only ever
// dispatch one trigger per invocation).
func pickTrigger(sir *ir.SpellIR) *ir.Trigger {
	for i := range sir.Triggers {
		if sir.Triggers[i].Manual {
			return &sir.Triggers[i]
		}
	}
	if len(sir.Triggers) > 0 {
		return &sir.Triggers[0]
	}
	return nil
}

// loadPersistentState resolves each declared persistent-state variable's
// starting value from a prior StateStore snapshot, defaulting to nil for a
// variable the snapshot doesn't cover (e.g. the spell's first-ever run).
//
// StateVar.InitialValue is NOT evaluated here: Grimoire has no separate
// "default value" declaration syntax for state.persistent.x — IR generation
// records the variable's *first-write expression* there purely for
// introspection (spec.md §3: "declares them by first write"), and that
// expression can itself reference the same variable (`state.count =
// state.count + 1`), which would be meaningless to evaluate before any
// value exists. Spec.md §3's "read once at run start from the StateStore"
// is the only seeding rule this function implements.
func loadPersistentState(ctx context.Context, sir *ir.SpellIR, opts RunOptions) (map[string]any, error) {
	var snapshot map[string]any
	if opts.Store != nil {
		snap, found, err := opts.Store.Load(ctx, sir.Id)
		if err != nil {
			return nil, fmt.Errorf("STATE_LOAD_ERROR: %w", err)
		}
		if found {
			snapshot = snap
		}
	}

	out := make(map[string]any, len(sir.PersistentState))
	for name := range sir.PersistentState {
		if v, found := snapshot[name]; found {
			out[name] = v
			continue
		}
		out[name] = nil
	}
	return out, nil
}

// persistRunResult writes the run record, ledger and final state snapshot
// back to opts.Store; persistence errors are swallowed into the ledger's
// already-flushed result rather than overriding a run's own outcome,
// matching spec.md §7's "the run always produces a finalised
// ExecutionResult ... never an exception to the caller".
func persistRunResult(ctx context.Context, sir *ir.SpellIR, opts RunOptions, result ExecutionResult) {
	if opts.Store == nil {
		return
	}
	_ = opts.Store.Save(ctx, sir.Id, result.FinalState)

	record := state.RunRecord{
		RunId:      result.RunId,
		Timestamp:  result.StartTime,
		Success:    result.Success,
		Duration:   result.Duration,
		FinalState: result.FinalState,
	}
	if result.Error != nil {
		record.Error = result.Error.Error()
	}
	if result.Metrics != nil {
		gas := "0"
		if result.Metrics.GasUsed != nil {
			gas = result.Metrics.GasUsed.String()
		}
		record.Metrics = state.RunMetrics{
			StepsExecuted:   result.Metrics.StepsExecuted,
			ActionsExecuted: result.Metrics.ActionsExecuted,
			GasUsed:         gas,
			AdvisoryCalls:   result.Metrics.AdvisoryCalls,
			Errors:          result.Metrics.Errors,
			Retries:         result.Metrics.Retries,
		}
	}
	_ = opts.Store.AddRun(ctx, sir.Id, record)

	entries := make([]state.LedgerEntry, len(result.Ledger))
	for i, e := range result.Ledger {
		entries[i] = state.LedgerEntry{Timestamp: e.Timestamp, Event: e.Event, Payload: e.Payload}
	}
	_ = opts.Store.SaveLedger(ctx, sir.Id, result.RunId, entries)
}
