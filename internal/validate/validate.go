// Package validate checks a compiled SpellIR for structural and semantic
// errors (spec.md §4.F), grounded in the teacher's
// runtime/validation/recursion.go DFS-with-visiting-set cycle detector,
// generalised here to Kahn's algorithm over the step dependsOn graph since
// the spec wants an explicit unscheduled-node cycle report.
package validate

import (
	"sort"

	"github.com/franalgaba/grimoire-sub002/internal/advisor"
	"github.com/franalgaba/grimoire-sub002/internal/expr"
	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Severity classifies a Finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one validator diagnostic (spec.md §4.F).
type Finding struct {
	Code       string
	Message    string
	Severity   Severity
	StepId     string
	Suggestion string // e.g. `did you mean "usdc"?` — message-quality only
}

// Result is the validator's output (spec.md §4.F: {valid, errors[], warnings[]}).
type Result struct {
	Valid    bool
	Errors   []Finding
	Warnings []Finding
}

// Validate runs every check from spec.md §4.F against sir and returns a
// Result whose Valid field is false iff Errors is non-empty (warnings never
// affect validity; only the CLI's --strict mode escalates them).
func Validate(sir *ir.SpellIR) Result {
	var res Result

	if len(sir.Steps) == 0 {
		res.Warnings = append(res.Warnings, Finding{Code: "NO_STEPS", Message: "spell has no steps", Severity: SeverityWarning})
	}

	known := knownStepIds(sir)
	checkUnknownReferences(sir, known, &res)
	checkCycle(sir, &res)
	checkAssetsAndAdvisors(sir, &res)
	checkAdvisoryTimeouts(sir, &res)
	checkActionVenues(sir, &res)
	checkAdvisorySchemas(sir, &res)

	res.Valid = len(res.Errors) == 0
	return res
}

// checkAdvisorySchemas implements INVALID_ADVISORY_SCHEMA: an advisory
// step's outputSchema must itself compile into a valid JSON Schema document
// (SPEC_FULL §4.H, §7 — "a schema that cannot itself compile is a compile
// error"). A schema that compiles cleanly produces no finding here; the
// resolved document is available via advisor.CompileAll for `validate
// --strict` to print.
func checkAdvisorySchemas(sir *ir.SpellIR, res *Result) {
	_, errs := advisor.CompileAll(sir)
	for _, err := range errs {
		res.Errors = append(res.Errors, Finding{
			Code: "INVALID_ADVISORY_SCHEMA", Severity: SeverityError, StepId: err.StepId,
			Message: err.Error(),
		})
	}
}

func knownStepIds(sir *ir.SpellIR) map[string]bool {
	known := map[string]bool{}
	for id := range sir.Steps {
		known[id] = true
	}
	return known
}

// checkUnknownReferences implements UNKNOWN_STEP_REFERENCE: every id
// appearing in dependsOn, thenSteps/elseSteps, bodySteps, branches[].steps,
// try/catch bodies and pipeline map stages must resolve to a declared step.
func checkUnknownReferences(sir *ir.SpellIR, known map[string]bool, res *Result) {
	check := func(stepId string, refs []string) {
		for _, ref := range refs {
			if !known[ref] {
				res.Errors = append(res.Errors, Finding{
					Code: "UNKNOWN_STEP_REFERENCE", Severity: SeverityError, StepId: stepId,
					Message:    "reference to unknown step id " + ref,
					Suggestion: suggestion(ref, stepIdList(known)),
				})
			}
		}
	}
	for _, id := range sir.Order {
		s := sir.Steps[id]
		check(id, s.DependsOn)
		check(id, s.ThenSteps)
		check(id, s.ElseSteps)
		check(id, s.BodySteps)
		check(id, s.TrySteps)
		for _, b := range s.Branches {
			check(id, b.Steps)
		}
		for _, cb := range s.CatchBlocks {
			check(id, cb.Steps)
		}
		for _, st := range s.Stages {
			check(id, st.Steps)
		}
	}
}

// checkCycle implements DEPENDENCY_CYCLE via Kahn's algorithm: any step
// left unscheduled once no more zero-indegree nodes remain is part of a
// cycle.
func checkCycle(sir *ir.SpellIR, res *Result) {
	indegree := map[string]int{}
	adj := map[string][]string{}
	for id := range sir.Steps {
		indegree[id] = 0
	}
	for id, s := range sir.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := sir.Steps[dep]; !ok {
				continue // already reported as UNKNOWN_STEP_REFERENCE
			}
			adj[dep] = append(adj[dep], id)
			indegree[id]++
		}
	}

	var queue []string
	for _, id := range sir.Order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	scheduled := map[string]bool{}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		scheduled[n] = true
		for _, m := range adj[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	var cycle []string
	for _, id := range sir.Order {
		if !scheduled[id] {
			cycle = append(cycle, id)
		}
	}
	if len(cycle) > 0 {
		res.Errors = append(res.Errors, Finding{
			Code: "DEPENDENCY_CYCLE", Severity: SeverityError,
			Message: "dependency cycle among steps: " + joinIds(cycle),
		})
	}
}

// checkAssetsAndAdvisors implements UNKNOWN_ASSET (warning) and
// UNKNOWN_ADVISOR (error): an action referencing an asset symbol not in
// sir.Assets, or an advisory referencing an advisor not in sir.Advisors.
func checkAssetsAndAdvisors(sir *ir.SpellIR, res *Result) {
	assets := map[string]bool{}
	for _, a := range sir.Assets {
		assets[a.Symbol] = true
	}
	advisors := map[string]bool{}
	for _, a := range sir.Advisors {
		advisors[a.Name] = true
	}
	assetNames := stringKeys(assets)
	advisorNames := stringKeys(advisors)

	for _, id := range sir.Order {
		s := sir.Steps[id]
		if s.Kind == ir.StepAction {
			if sym, ok := literalAssetSymbol(s.Action.Args["asset"]); ok && !assets[sym] {
				res.Warnings = append(res.Warnings, Finding{
					Code: "UNKNOWN_ASSET", Severity: SeverityWarning, StepId: id,
					Message: "action references undeclared asset " + sym, Suggestion: suggestion(sym, assetNames),
				})
			}
		}
		if s.Kind == ir.StepAdvisory {
			if s.Advisory.Advisor != "" && !advisors[s.Advisory.Advisor] {
				res.Errors = append(res.Errors, Finding{
					Code: "UNKNOWN_ADVISOR", Severity: SeverityError, StepId: id,
					Message: "unknown advisor " + s.Advisory.Advisor, Suggestion: suggestion(s.Advisory.Advisor, advisorNames),
				})
			}
		}
	}
}

func literalAssetSymbol(e *expr.Expr) (string, bool) {
	if e == nil || e.Kind != expr.Literal {
		return "", false
	}
	s, ok := e.Value.(string)
	return s, ok
}

// checkAdvisoryTimeouts implements ADVISORY_NO_TIMEOUT: timeout must
// literally evaluate to a positive number at compile time (spec.md §3
// invariant 5: `advisory.timeout > 0`).
func checkAdvisoryTimeouts(sir *ir.SpellIR, res *Result) {
	for _, id := range sir.Order {
		s := sir.Steps[id]
		if s.Kind != ir.StepAdvisory {
			continue
		}
		t := s.Advisory.Timeout
		if t == nil || t.Kind != expr.Literal {
			res.Errors = append(res.Errors, Finding{Code: "ADVISORY_NO_TIMEOUT", Severity: SeverityError, StepId: id, Message: "advisory step has no constant timeout"})
			continue
		}
		f, ok := t.Value.(float64)
		if !ok || f <= 0 {
			res.Errors = append(res.Errors, Finding{Code: "ADVISORY_NO_TIMEOUT", Severity: SeverityError, StepId: id, Message: "advisory timeout must be > 0"})
		}
	}
}

// checkActionVenues implements AUTO_VENUE: a warning when an action
// resolves via a skill (auto-selected adapter) rather than an explicit
// venue alias.
func checkActionVenues(sir *ir.SpellIR, res *Result) {
	for _, id := range sir.Order {
		s := sir.Steps[id]
		if s.Kind == ir.StepAction && s.Action.Skill != "" {
			res.Warnings = append(res.Warnings, Finding{
				Code: "AUTO_VENUE", Severity: SeverityWarning, StepId: id,
				Message: "action resolves venue via skill " + s.Action.Skill + " rather than an explicit alias",
			})
		}
	}
}

func stepIdList(known map[string]bool) []string {
	out := make([]string, 0, len(known))
	for id := range known {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func stringKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func joinIds(ids []string) string {
	sort.Strings(ids)
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

// suggestion returns a `did you mean "x"?` hint when a close fuzzy match
// exists among candidates (spec.md SPEC_FULL §4.F: message-quality only,
// never changes valid/severity).
func suggestion(name string, candidates []string) string {
	best := ""
	bestRank := -1
	for _, c := range candidates {
		r := fuzzy.RankMatch(name, c)
		if r >= 0 && (bestRank == -1 || r < bestRank) {
			bestRank = r
			best = c
		}
	}
	if best == "" {
		return ""
	}
	return "did you mean \"" + best + "\"?"
}
