// Package ir defines Grimoire's typed intermediate representation (spec.md
// §3) and the generator that linearises a transform.SpellSource's statement
// trees into a flat, dependency-ordered Step list (spec.md §4.E), grounded
// in the teacher's runtime/planner/ir_builder.go counter-based id scheme and
// ChainOp/ElementKind tagged-string-constant idiom.
package ir

import (
	"github.com/franalgaba/grimoire-sub002/internal/ast"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
)

// StepKind discriminates a Step's variant (spec.md §3).
type StepKind string

const (
	StepCompute     StepKind = "compute"
	StepConditional StepKind = "conditional"
	StepLoop        StepKind = "loop"
	StepParallel    StepKind = "parallel"
	StepPipeline    StepKind = "pipeline"
	StepTry         StepKind = "try"
	StepAction      StepKind = "action"
	StepEmit        StepKind = "emit"
	StepWait        StepKind = "wait"
	StepHalt        StepKind = "halt"
	StepAdvisory    StepKind = "advisory"
)

// LoopType discriminates a loop step's iteration strategy.
type LoopType string

const (
	LoopRepeat LoopType = "repeat"
	LoopFor    LoopType = "for"
	LoopUntil  LoopType = "until"
)

// Assignment is one `compute` step entry. Target discriminates where
// Variable is written: a run-local binding, or persistent/ephemeral state
// (spec.md §3 state.persistent / state.ephemeral).
type Assignment struct {
	Variable   string
	Expression *expr.Expr
	Target     AssignTarget
}

// AssignTarget discriminates an Assignment's write destination.
type AssignTarget string

const (
	TargetBinding    AssignTarget = "binding"
	TargetPersistent AssignTarget = "persistent"
	TargetEphemeral  AssignTarget = "ephemeral"
)

// Branch is one `parallel` step branch.
type Branch struct {
	ID    string
	Name  string
	Steps []string
}

// JoinPolicy mirrors ast.JoinSpec at the IR level.
type JoinPolicy struct {
	Mode  string // all|first|any|majority|best
	Count int
	Order string
}

// Stage is one `pipeline` step stage.
type Stage struct {
	Op    string // where|sort|map|take|skip
	Pred  *expr.Expr
	By    *expr.Expr
	Order string
	Steps []string // map stage's lowered body
	N     *expr.Expr
}

// CatchBlock is one `try` step catch clause.
type CatchBlock struct {
	Matcher *expr.Expr
	Steps   []string
}

// OnFailure mirrors ast.OnFailureSpec at the IR level.
type OnFailure struct {
	Mode string // revert|continue|retry
	Max  int
}

// Action is a venue/skill call lowered from an expr.Call with Recv set.
type Action struct {
	Method      string
	Alias       string // set if resolved via venue alias
	Skill       string // set if resolved via skill (spec.md §4.F AUTO_VENUE)
	Args        map[string]*expr.Expr
	Constraints map[string]*expr.Expr
}

// Advisory is the lowered payload of an `<advisor>.ask(...)` call.
type Advisory struct {
	Advisor      string
	Prompt       *expr.Expr
	OutputSchema *expr.Expr
	Timeout      *expr.Expr
	Fallback     *expr.Expr
	Skills       []string
	AllowedTools []string
	MCP          map[string]*expr.Expr
}

// Step is the IR's tagged-sum execution unit (spec.md §3). Every variant
// carries Id/DependsOn; exactly the fields for Kind are populated.
type Step struct {
	Id        string
	Kind      StepKind
	DependsOn []string

	// compute
	Assignments []Assignment

	// conditional
	Condition *expr.Expr
	ThenSteps []string
	ElseSteps []string

	// loop
	LoopType      LoopType
	LoopVar       string
	LoopSource    *expr.Expr
	LoopCount     *expr.Expr
	LoopCond      *expr.Expr
	BodySteps     []string
	MaxIterations int
	OutputBinding string

	// parallel
	Branches []Branch
	Join     JoinPolicy
	OnFail   string // abort|continue

	// pipeline
	PipeSource *expr.Expr
	Stages     []Stage

	// try
	TrySteps    []string
	CatchBlocks []CatchBlock

	// action
	Action    Action
	OnFailure OnFailure

	// emit
	Event string
	Data  map[string]*expr.Expr

	// wait
	Duration *expr.Expr

	// halt
	Message *expr.Expr

	// advisory
	Advisory Advisory
}

// Meta carries build provenance (spec.md §3 SpellIR.meta), with a blake2b
// content hash of the source text (SPEC_FULL §3). The semver-checked version
// string is SpellIR.Version, not a Meta field.
type Meta struct {
	Name    string
	Created string // RFC 3339
	Hash    string // hex blake2b-256 of the source text
}

// StateVar is one `state.persistent`/`state.ephemeral` declaration.
type StateVar struct {
	Key          string
	InitialValue *expr.Expr
}

// Guard mirrors ast.GuardDecl at the IR level.
type Guard struct {
	Id       string
	Check    *expr.Expr
	Severity string
	Message  string
}

// Trigger mirrors transform.TriggerSource at the IR level (steps already
// flattened into the Step arena).
type Trigger struct {
	Manual   bool
	Schedule string
	Event    string
	Steps    []string // top-level step ids for this trigger
}

// SpellIR is the compiler's final, immutable-after-validation output
// (spec.md §3).
type SpellIR struct {
	Id      string
	Version string
	Meta    Meta

	Aliases  []Alias
	Assets   []ast.AssetDecl
	Skills   []ast.SkillDecl
	Advisors []ast.AdvisorDecl
	Params   []ast.ParamDecl

	PersistentState map[string]StateVar
	EphemeralState  map[string]StateVar

	Steps map[string]*Step // arena keyed by stable string id
	Order []string         // declaration order, for deterministic iteration

	Guards   []Guard
	Triggers []Trigger
}

// Alias is a user-named venue handle (spec.md §3 SpellIR.aliases).
type Alias struct {
	Alias   string
	Chain   uint64
	Address string
	Group   string
}
