package exec

import (
	"github.com/franalgaba/grimoire-sub002/internal/adapter"
	"github.com/franalgaba/grimoire-sub002/internal/ast"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
)

// Frame is one entry in the execution call stack, used for nested
// loop/parallel/pipeline/try diagnostics.
type Frame struct {
	StepId string
	Kind   ir.StepKind
}

// Context is the execution context shared by every step executor
// (spec.md §4.G). Only the currently executing step may mutate it.
type Context struct {
	RunId string
	Spell *ir.SpellIR
	Vault string
	Chain uint64
	Params map[string]any

	Bindings   *Bindings
	Persistent map[string]any
	Ephemeral  map[string]any

	Metrics   *Metrics
	CallStack []Frame

	Adapters       *adapter.Registry
	AdvisorTooling map[string]map[string]any

	Simulate bool
	Clock    Clock

	assetIndex map[string]ast.AssetDecl
	skillIndex map[string]ast.SkillDecl
}

// NewContext builds a fresh Context for one run. persistent should come
// from the StateStore's prior snapshot for this spell, or be empty for a
// first run; ephemeral always starts empty.
func NewContext(runId string, spell *ir.SpellIR, vault string, chain uint64, params map[string]any, persistent map[string]any, adapters *adapter.Registry, simulate bool, clock Clock) *Context {
	if persistent == nil {
		persistent = map[string]any{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	ctx := &Context{
		RunId:          runId,
		Spell:          spell,
		Vault:          vault,
		Chain:          chain,
		Params:         params,
		Bindings:       NewBindings(),
		Persistent:     persistent,
		Ephemeral:      map[string]any{},
		Metrics:        NewMetrics(),
		Adapters:       adapters,
		AdvisorTooling: map[string]map[string]any{},
		Simulate:       simulate,
		Clock:          clock,
		assetIndex:     map[string]ast.AssetDecl{},
		skillIndex:     map[string]ast.SkillDecl{},
	}
	for _, v := range spell.Assets {
		ctx.assetIndex[v.Symbol] = v
	}
	for _, s := range spell.Skills {
		ctx.skillIndex[s.Name] = s
	}
	for name, sv := range spell.PersistentState {
		if _, ok := ctx.Persistent[name]; !ok {
			ctx.Persistent[name] = nil
			_ = sv
		}
	}
	return ctx
}

// Asset looks up a declared asset by symbol.
func (c *Context) Asset(symbol string) (ast.AssetDecl, bool) {
	a, ok := c.assetIndex[symbol]
	return a, ok
}

// Skill looks up a declared skill by name.
func (c *Context) Skill(name string) (ast.SkillDecl, bool) {
	s, ok := c.skillIndex[name]
	return s, ok
}

// PushFrame records entry into a nested construct.
func (c *Context) PushFrame(stepId string, kind ir.StepKind) {
	c.CallStack = append(c.CallStack, Frame{StepId: stepId, Kind: kind})
}

// PopFrame removes the most recently pushed frame, if any.
func (c *Context) PopFrame() {
	if len(c.CallStack) > 0 {
		c.CallStack = c.CallStack[:len(c.CallStack)-1]
	}
}

// FinalState snapshots persistent state at run end (spec.md §4.I
// ExecutionResult.finalState).
func (c *Context) FinalState() map[string]any {
	out := make(map[string]any, len(c.Persistent))
	for k, v := range c.Persistent {
		out[k] = v
	}
	return out
}
