// Package transform lowers a parsed SpellAST into a neutral, order
// independent SpellSource record (spec.md §4.C), grounded in the teacher's
// runtime/ir/transform.go single-pass `Lower` shape: each section is walked
// once and the transformer never backtracks into the AST.
package transform

import (
	"github.com/franalgaba/grimoire-sub002/internal/ast"
)

// SpellSource is the transformer's output: everything the IR generator
// needs, with triggers already lowered to a schedule/event record.
type SpellSource struct {
	Spell       string
	Version     string
	Description string
	Assets      []ast.AssetDecl
	Params      []ast.ParamDecl
	Venues      []ast.VenueDecl
	Skills      []ast.SkillDecl
	Advisors    []ast.AdvisorDecl
	Guards      []ast.GuardDecl
	Triggers    []TriggerSource
}

// TriggerSource is one lowered trigger: exactly one of Manual/Schedule/Event
// is set, per spec.md §4.C's lowering table.
type TriggerSource struct {
	Manual   bool
	Schedule string
	Event    string
	Steps    []ast.Statement
}

// Diagnostic is a non-fatal note raised while lowering (e.g. a duplicate
// venue alias); the transformer never fails outright — that is the
// validator's job once IR exists.
type Diagnostic struct {
	Code    string
	Message string
}

// Lower transforms a parsed AST into a SpellSource plus any diagnostics.
func Lower(spell *ast.SpellAST) (*SpellSource, []Diagnostic) {
	var diags []Diagnostic
	src := &SpellSource{
		Spell:       spell.Name,
		Version:     spell.Version,
		Description: spell.Description,
		Assets:      spell.Assets,
		Params:      spell.Params,
		Skills:      spell.Skills,
		Advisors:    spell.Advisors,
		Guards:      spell.Guards,
	}
	src.Venues, diags = flattenVenues(spell.Venues, diags)
	for _, t := range spell.Triggers {
		src.Triggers = append(src.Triggers, lowerTrigger(t))
	}
	return src, diags
}

// flattenVenues passes the venue entries through in declaration order; the
// parser has already expanded each categorical group (`lending:` followed by
// `- @a` / `- @b` lines) into individual entries carrying the group label.
// Duplicate aliases produce a DUPLICATE_VENUE_ALIAS diagnostic but are kept;
// alias lookup at run time returns the first declared entry.
func flattenVenues(in []ast.VenueDecl, diags []Diagnostic) ([]ast.VenueDecl, []Diagnostic) {
	seen := map[string]bool{}
	out := make([]ast.VenueDecl, 0, len(in))
	for _, v := range in {
		if seen[v.Alias] {
			diags = append(diags, Diagnostic{Code: "DUPLICATE_VENUE_ALIAS", Message: "venue alias redeclared: " + v.Alias})
		}
		seen[v.Alias] = true
		out = append(out, v)
	}
	return out, diags
}

// lowerTrigger implements spec.md §4.C's trigger lowering table:
// manual → {manual:true}, hourly → {schedule:"0 * * * *"},
// daily → {schedule:"0 0 * * *"}, schedule(c) → {schedule:c},
// event(n) → {event:n}.
func lowerTrigger(t ast.Trigger) TriggerSource {
	ts := TriggerSource{Steps: t.Body}
	switch t.Kind {
	case ast.TriggerManual:
		ts.Manual = true
	case ast.TriggerHourly:
		ts.Schedule = "0 * * * *"
	case ast.TriggerDaily:
		ts.Schedule = "0 0 * * *"
	case ast.TriggerSchedule:
		ts.Schedule = t.Cron
	case ast.TriggerEvent:
		ts.Event = t.Event
	}
	return ts
}
