// Command grimoire is the Grimoire spell compiler/runtime CLI: validate,
// simulate and run spells, list registered venue adapters, and optionally
// serve a read-only run inspector over a StateStore.
//
// Grounded on the teacher's runtime/cli/harness.go Cobra root-command
// harness (persistent flags on a shared root, one subcommand per
// operation) and intelligencedev-manifold's godotenv-before-flag-parsing
// bootstrap.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/advisor"
	"github.com/franalgaba/grimoire-sub002/internal/exec"
	"github.com/franalgaba/grimoire-sub002/internal/httpapi"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/franalgaba/grimoire-sub002/internal/spell"
	"github.com/franalgaba/grimoire-sub002/internal/state"
	"github.com/franalgaba/grimoire-sub002/internal/state/rediscache"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "grimoire",
		Short:        "Compile and run Grimoire DeFi workflow spells",
		SilenceUsage: true,
	}

	root.AddCommand(
		newValidateCmd(),
		newSimulateCmd(),
		newRunCmd(),
		newVenuesCmd(),
		newServeCmd(),
	)
	return root
}

// --- shared flags & helpers ----------------------------------------------

type executionFlags struct {
	params           string
	vault            string
	chain            uint64
	stateDir         string
	noState          bool
	statePostgresDSN string
	advisorSkillsDir []string
	lockRedisAddr    string
}

func (f *executionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.params, "params", "", "JSON object of trigger params")
	cmd.Flags().StringVar(&f.vault, "vault", "", "vault address (0x...)")
	cmd.Flags().Uint64Var(&f.chain, "chain", 1, "chain id")
	cmd.Flags().StringVar(&f.stateDir, "state-dir", "", "directory for FileStore persistence (default: in-memory)")
	cmd.Flags().BoolVar(&f.noState, "no-state", false, "disable persistence entirely")
	cmd.Flags().StringVar(&f.statePostgresDSN, "state-postgres-dsn", "", "libpq DSN for PostgresStore persistence (overrides --state-dir)")
	cmd.Flags().StringArrayVar(&f.advisorSkillsDir, "advisor-skills-dir", nil, "directories of external advisor skill definitions to watch (forward-compatible; not yet consumed by any advisor)")
	cmd.Flags().StringVar(&f.lockRedisAddr, "lock-redis-addr", "", "redis addr for cross-process run locking (default: unlocked)")
}

func (f *executionFlags) parseParams() (map[string]any, error) {
	if f.params == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(f.params), &out); err != nil {
		return nil, fmt.Errorf("--params: %w", err)
	}
	return out, nil
}

// buildStore resolves the StateStore implementation the flags select:
// --no-state wins, then --state-postgres-dsn (PostgresStore), then
// --state-dir (FileStore), else an in-memory store.
func (f *executionFlags) buildStore(ctx context.Context) (state.Store, error) {
	if f.noState {
		return nil, nil
	}
	if f.statePostgresDSN != "" {
		cfg := state.PostgresConfig{RawDSN: f.statePostgresDSN, MaxConns: 10}
		return state.NewPostgresStore(ctx, cfg)
	}
	if f.stateDir != "" {
		return state.NewFileStore(f.stateDir)
	}
	return state.NewMemoryStore(), nil
}

// watchAdvisorSkillDirs starts an fsnotify watcher over each directory so
// future advisor-skill reloading has somewhere to hook in; today it only
// logs changes to stderr and nothing consumes them (skills are declared in
// spell source, not loaded from disk).
func watchAdvisorSkillDirs(dirs []string) (*fsnotify.Watcher, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("advisor-skills-dir watcher: %w", err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, fmt.Errorf("advisor-skills-dir watcher: %w", err)
		}
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "advisor-skills-dir: %s\n", ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "advisor-skills-dir watcher error: %v\n", err)
			}
		}
	}()
	return w, nil
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func defaultAdapters() *adapter.Registry {
	reg := adapter.NewRegistry()
	reg.Register(adapter.NewMock("aave", 1, 137))
	reg.Register(adapter.NewMock("uniswap", 1, 10, 137))
	reg.Register(adapter.NewMock("compound", 1))
	return reg
}

// --- validate -------------------------------------------------------------

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <spellPath>",
		Short: "Compile a spell and report validator findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			res := spell.Compile(args[0], src, time.Now)
			for _, f := range res.Errors {
				fmt.Printf("ERROR   [%s] %s %s\n", f.Code, f.StepId, f.Message)
			}
			for _, f := range res.Warnings {
				fmt.Printf("WARNING [%s] %s %s\n", f.Code, f.StepId, f.Message)
			}
			if !res.Success {
				return fmt.Errorf("validation failed: %d error(s)", len(res.Errors))
			}
			if strict {
				if err := printAdvisorySchemas(res.IR); err != nil {
					return err
				}
				if len(res.Warnings) > 0 {
					return fmt.Errorf("validation failed in --strict mode: %d warning(s)", len(res.Warnings))
				}
			}
			fmt.Println("OK")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as failures")
	return cmd
}

// printAdvisorySchemas prints the resolved JSON Schema document for every
// advisory step, in step-id order (SPEC_FULL §4.H: "validate --strict prints
// the resolved schema for every advisory step"). A schema that fails to
// compile here would already have aborted above as INVALID_ADVISORY_SCHEMA,
// so an error from CompileAll at this point would mean the IR changed out
// from under us between Validate and here.
func printAdvisorySchemas(sir *ir.SpellIR) error {
	if sir == nil {
		return nil
	}
	resolved, errs := advisor.CompileAll(sir)
	if len(errs) > 0 {
		return fmt.Errorf("resolving advisory schemas: %w", errs[0])
	}
	for _, r := range resolved {
		doc, err := json.MarshalIndent(r.Doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling schema for step %s: %w", r.StepId, err)
		}
		fmt.Printf("SCHEMA  %s (%s):\n%s\n", r.StepId, r.Advisor, doc)
	}
	return nil
}

// --- simulate / run ---------------------------------------------------------

func newSimulateCmd() *cobra.Command {
	f := &executionFlags{}
	cmd := &cobra.Command{
		Use:   "simulate <spellPath>",
		Short: "Compile then execute a spell with simulate=true (no real venue calls)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpellFile(cmd.Context(), args[0], f, true)
		},
	}
	f.register(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	f := &executionFlags{}
	cmd := &cobra.Command{
		Use:   "run <spellPath>",
		Short: "Compile then execute a spell for real",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpellFile(cmd.Context(), args[0], f, false)
		},
	}
	f.register(cmd)
	return cmd
}

func runSpellFile(ctx context.Context, path string, f *executionFlags, simulate bool) error {
	src, err := readSource(path)
	if err != nil {
		return err
	}
	compiled := spell.Compile(path, src, time.Now)
	if !compiled.Success {
		for _, e := range compiled.Errors {
			fmt.Fprintf(os.Stderr, "ERROR [%s] %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("spell failed to compile")
	}

	params, err := f.parseParams()
	if err != nil {
		return err
	}
	store, err := f.buildStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	watcher, err := watchAdvisorSkillDirs(f.advisorSkillsDir)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	if f.lockRedisAddr != "" {
		locker, err := rediscache.NewLocker(f.lockRedisAddr, "grimoire")
		if err != nil {
			return fmt.Errorf("LOCK_HELD: %w", err)
		}
		defer locker.Close()
		handle, err := locker.Acquire(ctx, compiled.IR.Id, 5*time.Minute)
		if err != nil {
			return fmt.Errorf("LOCK_HELD: %w", err)
		}
		defer locker.Release(ctx, handle)
	}

	result := spell.Run(ctx, compiled.IR, spell.RunOptions{
		RunId:    uuid.NewString(),
		Vault:    f.vault,
		Chain:    f.chain,
		Params:   params,
		Simulate: simulate,
		Adapters: defaultAdapters(),
		Store:    store,
		Clock:    exec.RealClock{},
	})

	printRunResult(result)
	if !result.Success {
		return fmt.Errorf("run did not complete successfully")
	}
	return nil
}

func printRunResult(result spell.ExecutionResult) {
	fmt.Printf("run %s: success=%v duration=%s\n", result.RunId, result.Success, result.Duration)
	if result.Metrics != nil {
		gas := "0"
		if result.Metrics.GasUsed != nil {
			gas = result.Metrics.GasUsed.String()
		}
		fmt.Printf("  steps=%d actions=%d gas=%s advisoryCalls=%d errors=%d retries=%d\n",
			result.Metrics.StepsExecuted, result.Metrics.ActionsExecuted, gas,
			result.Metrics.AdvisoryCalls, result.Metrics.Errors, result.Metrics.Retries)
	}
	if result.Error != nil {
		fmt.Printf("  error: %v\n", result.Error)
	}
	if len(result.FinalState) > 0 {
		b, _ := json.MarshalIndent(result.FinalState, "  ", "  ")
		fmt.Printf("  state: %s\n", b)
	}
}

// --- venues ----------------------------------------------------------------

func newVenuesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "List registered venue adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			metas := defaultAdapters().List()
			if asJSON {
				b, err := json.MarshalIndent(metas, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			for _, m := range metas {
				fmt.Printf("%s  chains=%v  actions=%v  type=%s\n", m.Name, m.SupportedChains, m.Actions, m.ExecutionType)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	return cmd
}

// --- serve -------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var addr, stateDir, postgresDSN string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP inspector over a StateStore's run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var store state.Store
			var err error
			switch {
			case postgresDSN != "":
				store, err = state.NewPostgresStore(cmd.Context(), state.PostgresConfig{RawDSN: postgresDSN, MaxConns: 10})
			case stateDir != "":
				store, err = state.NewFileStore(stateDir)
			default:
				store = state.NewMemoryStore()
			}
			if err != nil {
				return err
			}
			defer store.Close()
			srv := httpapi.NewServer(store, "release")
			fmt.Printf("serving on %s\n", addr)
			return srv.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "FileStore directory to serve (default: empty in-memory store)")
	cmd.Flags().StringVar(&postgresDSN, "state-postgres-dsn", "", "libpq DSN for PostgresStore (overrides --state-dir)")
	return cmd
}
