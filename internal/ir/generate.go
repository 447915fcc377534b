package ir

import (
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/ast"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/transform"
)

// DefaultMaxIterations bounds loops that don't specify one explicitly; the
// spec leaves the default unspecified but requires maxIterations >= 1
// (spec.md §3 invariant 6).
const DefaultMaxIterations = 1000

// generator lowers statement trees into the flat Step arena, assigning
// counter-based ids per spec.md §4.E (`fmt.Sprintf("%s_%d", kind, counter)`).
type generator struct {
	counters map[StepKind]int
	steps    map[string]*Step
	order    []string

	venueAliases map[string]bool
	skillNames   map[string]bool
	advisorNames map[string]bool
}

// Generate lowers a transform.SpellSource into a SpellIR (spec.md §4.E).
// hash and created are supplied by the caller (internal/spell.Compile),
// which owns the blake2b hashing and clock.
func Generate(id string, src *transform.SpellSource, hash, created string) *SpellIR {
	g := &generator{
		counters:     map[StepKind]int{},
		steps:        map[string]*Step{},
		venueAliases: map[string]bool{},
		skillNames:   map[string]bool{},
		advisorNames: map[string]bool{},
	}
	for _, v := range src.Venues {
		g.venueAliases[v.Alias] = true
	}
	for _, s := range src.Skills {
		g.skillNames[s.Name] = true
	}
	for _, a := range src.Advisors {
		g.advisorNames[a.Name] = true
	}

	sir := &SpellIR{
		Id:      id,
		Version: src.Version,
		Meta:    Meta{Name: src.Spell, Created: created, Hash: hash},
		Assets:  src.Assets,
		Skills:  src.Skills,
		Params:  src.Params,
	}
	for _, v := range src.Venues {
		sir.Aliases = append(sir.Aliases, Alias{Alias: v.Alias, Address: v.Address, Group: v.Group})
	}
	for _, a := range src.Advisors {
		sir.Advisors = append(sir.Advisors, a)
	}
	for _, gd := range src.Guards {
		sir.Guards = append(sir.Guards, Guard{Id: gd.ID, Check: gd.Check, Severity: gd.Severity, Message: gd.Message})
	}

	for _, t := range src.Triggers {
		ids := g.lowerBlock(t.Steps, "")
		sir.Triggers = append(sir.Triggers, Trigger{Manual: t.Manual, Schedule: t.Schedule, Event: t.Event, Steps: ids})
	}

	sir.Steps = g.steps
	sir.Order = g.order
	sir.PersistentState, sir.EphemeralState = collectStateVars(g.steps)
	return sir
}

// collectStateVars scans every compute step for state.x / ephemeral.x
// assignments and records each distinct name's first-seen expression as its
// initial value (spec.md §3: `state.persistent`/`state.ephemeral` are
// `name → {key, initialValue}` maps; the surface syntax declares them by
// first write rather than a separate section).
func collectStateVars(steps map[string]*Step) (map[string]StateVar, map[string]StateVar) {
	persistent := map[string]StateVar{}
	ephemeral := map[string]StateVar{}
	for _, s := range steps {
		if s.Kind != StepCompute {
			continue
		}
		for _, a := range s.Assignments {
			switch a.Target {
			case TargetPersistent:
				if _, ok := persistent[a.Variable]; !ok {
					persistent[a.Variable] = StateVar{Key: a.Variable, InitialValue: a.Expression}
				}
			case TargetEphemeral:
				if _, ok := ephemeral[a.Variable]; !ok {
					ephemeral[a.Variable] = StateVar{Key: a.Variable, InitialValue: a.Expression}
				}
			}
		}
	}
	return persistent, ephemeral
}

func (g *generator) nextId(kind StepKind) string {
	g.counters[kind]++
	return fmt.Sprintf("%s_%d", kind, g.counters[kind])
}

func (g *generator) addStep(s *Step) {
	g.steps[s.Id] = s
	g.order = append(g.order, s.Id)
}

// lowerBlock lowers one statement list into an ordered id list, batching
// consecutive assignment statements into a single compute step (spec.md
// §4.E) and chaining dependsOn to the previous step at this nesting level.
func (g *generator) lowerBlock(stmts []ast.Statement, _ string) []string {
	var ids []string
	var pendingAssigns []Assignment
	prev := ""

	flush := func() {
		if len(pendingAssigns) == 0 {
			return
		}
		id := g.nextId(StepCompute)
		s := &Step{Id: id, Kind: StepCompute, Assignments: pendingAssigns}
		if prev != "" {
			s.DependsOn = []string{prev}
		}
		g.addStep(s)
		ids = append(ids, id)
		prev = id
		pendingAssigns = nil
	}

	for _, stmt := range stmts {
		// An assigned method call (`x = oracle.ask(...)`, `x = @v.m(...)`)
		// is not batched: lowerExprStatement classifies it.
		callStep := !stmt.Persistent && !stmt.Ephemeral && stmt.Value != nil && stmt.Value.Kind == expr.Call && stmt.Value.Recv != nil
		if stmt.Kind == ast.StmtAssign && !callStep {
			target := TargetBinding
			if stmt.Persistent {
				target = TargetPersistent
			} else if stmt.Ephemeral {
				target = TargetEphemeral
			}
			pendingAssigns = append(pendingAssigns, Assignment{Variable: stmt.Variable, Expression: stmt.Value, Target: target})
			continue
		}
		flush()
		id := g.lowerStatement(stmt, prev)
		if id != "" {
			ids = append(ids, id)
			prev = id
		}
	}
	flush()
	return ids
}

func (g *generator) dep(prev string) []string {
	if prev == "" {
		return nil
	}
	return []string{prev}
}

func (g *generator) lowerStatement(stmt ast.Statement, prev string) string {
	switch stmt.Kind {
	case ast.StmtConditional:
		id := g.nextId(StepConditional)
		then := g.lowerBlock(stmt.Then, id)
		els := g.lowerBlock(stmt.Else, id)
		g.addStep(&Step{Id: id, Kind: StepConditional, DependsOn: g.dep(prev), Condition: stmt.Cond, ThenSteps: then, ElseSteps: els})
		return id

	case ast.StmtFor:
		id := g.nextId(StepLoop)
		body := g.lowerBlock(stmt.Body, id)
		g.addStep(&Step{Id: id, Kind: StepLoop, DependsOn: g.dep(prev), LoopType: LoopFor, LoopVar: stmt.LoopVar, LoopSource: stmt.Source, BodySteps: body, MaxIterations: DefaultMaxIterations})
		return id

	case ast.StmtRepeat:
		id := g.nextId(StepLoop)
		body := g.lowerBlock(stmt.Body, id)
		g.addStep(&Step{Id: id, Kind: StepLoop, DependsOn: g.dep(prev), LoopType: LoopRepeat, LoopCount: stmt.Count, BodySteps: body, MaxIterations: DefaultMaxIterations})
		return id

	case ast.StmtUntil:
		id := g.nextId(StepLoop)
		body := g.lowerBlock(stmt.Body, id)
		g.addStep(&Step{Id: id, Kind: StepLoop, DependsOn: g.dep(prev), LoopType: LoopUntil, LoopCond: stmt.Cond, BodySteps: body, MaxIterations: DefaultMaxIterations})
		return id

	case ast.StmtAtomic:
		// Atomic blocks are spliced transparently: no dedicated IR step
		// kind, their body is lowered in place and chained as usual.
		ids := g.lowerBlock(stmt.Body, prev)
		if len(ids) == 0 {
			return ""
		}
		return ids[len(ids)-1]

	case ast.StmtParallel:
		id := g.nextId(StepParallel)
		var branches []Branch
		for _, b := range stmt.Branches {
			steps := g.lowerBlock(b.Steps, id)
			branches = append(branches, Branch{ID: b.ID, Name: b.Name, Steps: steps})
		}
		g.addStep(&Step{
			Id: id, Kind: StepParallel, DependsOn: g.dep(prev),
			Branches: branches, OutputBinding: stmt.OutputBinding,
			Join:   JoinPolicy{Mode: stmt.Join.Mode, Count: stmt.Join.Count, Order: stmt.Join.Order},
			OnFail: stmt.OnFail,
		})
		return id

	case ast.StmtPipeline:
		id := g.nextId(StepPipeline)
		var stages []Stage
		for _, st := range stmt.Stages {
			s := Stage{Op: st.Op, Pred: st.Pred, By: st.By, Order: st.Order, N: st.N}
			if st.Op == "map" {
				s.Steps = g.lowerBlock(st.Body, id)
			}
			stages = append(stages, s)
		}
		g.addStep(&Step{Id: id, Kind: StepPipeline, DependsOn: g.dep(prev), PipeSource: stmt.PipeSource, Stages: stages, OutputBinding: stmt.OutputBinding})
		return id

	case ast.StmtTry:
		id := g.nextId(StepTry)
		tryIds := g.lowerBlock(stmt.TryBody, id)
		var catches []CatchBlock
		for _, c := range stmt.Catches {
			catches = append(catches, CatchBlock{Matcher: c.Matcher, Steps: g.lowerBlock(c.Body, id)})
		}
		g.addStep(&Step{Id: id, Kind: StepTry, DependsOn: g.dep(prev), TrySteps: tryIds, CatchBlocks: catches})
		return id

	case ast.StmtEmit:
		id := g.nextId(StepEmit)
		data := map[string]*expr.Expr{}
		for _, a := range stmt.Data {
			data[a.Name] = a.Value
		}
		g.addStep(&Step{Id: id, Kind: StepEmit, DependsOn: g.dep(prev), Event: stmt.Event, Data: data})
		return id

	case ast.StmtWait:
		id := g.nextId(StepWait)
		g.addStep(&Step{Id: id, Kind: StepWait, DependsOn: g.dep(prev), Duration: stmt.Duration})
		return id

	case ast.StmtHalt:
		id := g.nextId(StepHalt)
		g.addStep(&Step{Id: id, Kind: StepHalt, DependsOn: g.dep(prev), Message: stmt.Message})
		return id

	case ast.StmtExpr, ast.StmtAssign:
		return g.lowerExprStatement(stmt, prev)

	default:
		return ""
	}
}

// lowerExprStatement classifies a bare or assigned Call expression as an
// `action` step (method call on a venueRef/skill binding), an `advisory`
// step (`.ask(...)` on a declared advisor), or falls back to a single-entry
// `compute` step — this is the IR-generation-time classification point
// described on expr.Expr's call fields, since the parser itself keeps
// these as generic postfix calls.
func (g *generator) lowerExprStatement(stmt ast.Statement, prev string) string {
	call := stmt.Value
	if call != nil && call.Kind == expr.Call && call.Recv != nil {
		if call.Fn == "ask" && call.Recv.Kind == expr.Binding && g.advisorNames[call.Recv.Name] {
			return g.lowerAdvisory(call, stmt.Variable, prev)
		}
		if alias, skill, ok := g.resolveReceiver(call.Recv); ok {
			return g.lowerAction(call, alias, skill, prev)
		}
	}
	// Plain compute: bind to Variable if this was an assignment, else
	// evaluate for side effects only (e.g. a bare builtin call).
	id := g.nextId(StepCompute)
	variable := stmt.Variable
	if variable == "" {
		variable = "_"
	}
	g.addStep(&Step{Id: id, Kind: StepCompute, DependsOn: g.dep(prev), Assignments: []Assignment{{Variable: variable, Expression: call, Target: TargetBinding}}})
	return id
}

// resolveReceiver reports whether e is a venueRef/skill receiver an action
// step can bind to, and which of the two it is.
func (g *generator) resolveReceiver(e *expr.Expr) (alias, skill string, ok bool) {
	switch e.Kind {
	case expr.VenueRef:
		return e.Name, "", true
	case expr.Binding:
		if g.skillNames[e.Name] {
			return "", e.Name, true
		}
		if g.venueAliases[e.Name] {
			return e.Name, "", true
		}
	}
	return "", "", false
}

func (g *generator) lowerAction(call *expr.Expr, alias, skill, prev string) string {
	id := g.nextId(StepAction)
	args := map[string]*expr.Expr{}
	constraints := map[string]*expr.Expr{}
	of := OnFailure{Mode: "revert"}
	for i, name := range call.ArgNames {
		switch name {
		case "":
			continue
		case "onFailure":
			of = parseOnFailure(call.Args[i])
		case "constraints":
			if call.Args[i].Kind == expr.Object {
				for _, k := range call.Args[i].Keys {
					constraints[k] = call.Args[i].Values[k]
				}
			}
		default:
			args[name] = call.Args[i]
		}
	}
	g.addStep(&Step{
		Id: id, Kind: StepAction, DependsOn: g.dep(prev),
		Action:    Action{Method: call.Fn, Alias: alias, Skill: skill, Args: args, Constraints: constraints},
		OnFailure: of,
	})
	return id
}

// parseOnFailure reads the `onFailure=revert|continue|retry(n)` argument,
// which the parser leaves as a generic Call/Binding expression.
func parseOnFailure(e *expr.Expr) OnFailure {
	switch e.Kind {
	case expr.Binding:
		return OnFailure{Mode: e.Name}
	case expr.Call:
		if e.Fn == "retry" && len(e.Args) == 1 && e.Args[0].Kind == expr.Literal {
			if n, ok := e.Args[0].Value.(float64); ok {
				return OnFailure{Mode: "retry", Max: int(n)}
			}
		}
	}
	return OnFailure{Mode: "revert"}
}

func (g *generator) lowerAdvisory(call *expr.Expr, outputBinding, prev string) string {
	id := g.nextId(StepAdvisory)
	adv := Advisory{Advisor: call.Recv.Name}
	if len(call.Args) > 0 && call.ArgNames[0] == "" {
		adv.Prompt = call.Args[0]
	}
	for i, name := range call.ArgNames {
		switch name {
		case "schema":
			adv.OutputSchema = call.Args[i]
		case "timeout":
			adv.Timeout = call.Args[i]
		case "fallback":
			adv.Fallback = call.Args[i]
		case "skills":
			adv.Skills = literalStrings(call.Args[i])
		case "allowedTools":
			adv.AllowedTools = literalStrings(call.Args[i])
		case "mcp":
			if call.Args[i].Kind == expr.Object {
				adv.MCP = call.Args[i].Values
			}
		}
	}
	g.addStep(&Step{Id: id, Kind: StepAdvisory, DependsOn: g.dep(prev), Advisory: adv, OutputBinding: outputBinding})
	return id
}

func literalStrings(e *expr.Expr) []string {
	if e == nil || e.Kind != expr.Array {
		return nil
	}
	var out []string
	for _, it := range e.Items {
		if it.Kind == expr.Literal {
			if s, ok := it.Value.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
