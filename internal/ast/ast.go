// Package ast defines the concrete AST produced by the Grimoire parser
// (spec.md §4.B): a SpellAST of declaration sections, trigger handlers and
// statements.
package ast

import "github.com/franalgaba/grimoire-sub002/internal/expr"

// SpellAST is the parser's top-level output.
type SpellAST struct {
	Name        string
	Version     string
	Description string
	Params      []ParamDecl
	Assets      []AssetDecl
	Venues      []VenueDecl
	Skills      []SkillDecl
	Advisors    []AdvisorDecl
	Guards      []GuardDecl
	Triggers    []Trigger
}

type ParamDecl struct {
	Name    string
	Type    string
	Default *expr.Expr
}

type AssetDecl struct {
	Symbol   string
	Chain    uint64
	Address  string
	Decimals int
}

// VenueDecl is either a single alias binding (`alias = @handle`) or a
// categorical group (`lending: [@a, @b]`), per spec.md §4.C venue
// flattening.
type VenueDecl struct {
	Alias   string
	Group   string // non-empty for categorical entries
	Address string // the @handle text
}

type SkillDecl struct {
	Name     string
	Type     string
	Adapters []string
}

type AdvisorDecl struct {
	Name  string
	Model string
	Scope string
}

type GuardDecl struct {
	ID       string
	Check    *expr.Expr
	Severity string // info|warn|error
	Message  string
}

// TriggerKind enumerates trigger surface syntax (spec.md §4.B).
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerHourly   TriggerKind = "hourly"
	TriggerDaily    TriggerKind = "daily"
	TriggerSchedule TriggerKind = "schedule"
	TriggerEvent    TriggerKind = "event"
)

type Trigger struct {
	Kind     TriggerKind
	Cron     string // for TriggerSchedule
	Event    string // for TriggerEvent
	Body     []Statement
}

// StmtKind discriminates a Statement's variant.
type StmtKind string

const (
	StmtAssign      StmtKind = "assign"
	StmtConditional StmtKind = "conditional"
	StmtFor         StmtKind = "for"
	StmtRepeat      StmtKind = "repeat"
	StmtUntil       StmtKind = "until"
	StmtAtomic      StmtKind = "atomic"
	StmtParallel    StmtKind = "parallel"
	StmtPipeline    StmtKind = "pipeline"
	StmtTry         StmtKind = "try"
	StmtAction      StmtKind = "action"
	StmtEmit        StmtKind = "emit"
	StmtWait        StmtKind = "wait"
	StmtHalt        StmtKind = "halt"
	StmtExpr        StmtKind = "expr"
)

// Statement is a single node in a trigger body / block body.
type Statement struct {
	Kind StmtKind

	// assign. Target defaults to a plain binding; state.x / ephemeral.x
	// assignment forms set Persistent/Ephemeral instead.
	Variable   string
	Value      *expr.Expr
	Persistent bool
	Ephemeral  bool

	// conditional
	Cond *expr.Expr
	Then []Statement
	Else []Statement

	// for
	LoopVar string
	Source  *expr.Expr

	// repeat
	Count *expr.Expr

	// for/repeat/until/atomic share Body
	Body []Statement

	// parallel
	Branches []ParallelBranch
	Join     JoinSpec
	OnFail   string // abort|continue

	// pipeline
	PipeSource *expr.Expr
	Stages     []PipelineStage

	// try
	TryBody  []Statement
	Catches  []CatchBlock

	// action (venue.method(...) call statement)
	VenueAlias string // set if @alias form used
	SkillName  string // set if bare identifier (skill) form used
	Method     string
	Args       []NamedArg
	Constraints map[string]*expr.Expr
	OnFailure  OnFailureSpec

	// emit
	Event string
	Data  []NamedArg

	// wait
	Duration *expr.Expr

	// halt
	Message *expr.Expr

	// expr statement / advisory-call assignment reuse Value/Variable above.
	// The parser never sets Advisory: an advisor .ask(...) call stays a
	// generic Call in Value and is classified during IR generation.
	Advisory *AdvisoryCall

	// OutputBinding is shared by parallel/pipeline ("-> name").
	OutputBinding string
}

type NamedArg struct {
	Name  string
	Value *expr.Expr
}

type ParallelBranch struct {
	ID    string
	Name  string
	Steps []Statement
}

type JoinSpec struct {
	Mode  string // all|first|any|majority|best
	Count int    // for any(count)
	Order string // for best(order)
}

type PipelineStage struct {
	Op      string // where|sort|map|take|skip
	Pred    *expr.Expr
	By      *expr.Expr
	Order   string
	Body    []Statement
	N       *expr.Expr
}

type CatchBlock struct {
	Matcher *expr.Expr
	Body    []Statement
}

type OnFailureSpec struct {
	Mode string // revert|continue|retry
	Max  int    // for retry(n)
}

// AdvisoryCall captures an `<advisor>.ask(...)` call's parsed fields.
type AdvisoryCall struct {
	Advisor  string
	Prompt   *expr.Expr
	Schema   *expr.Expr
	Timeout  *expr.Expr
	Fallback *expr.Expr
	Skills   []string
	AllowedTools []string
	MCP      map[string]*expr.Expr
}
