package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/invopop/jsonschema"
	jsonschemaval "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidAdvisorySchema is returned when an advisory's outputSchema
// cannot compile into a valid JSON Schema document (SPEC_FULL §4.H:
// INVALID_ADVISORY_SCHEMA compile error).
type ErrInvalidAdvisorySchema struct {
	Advisor string
	Cause   error
}

func (e *ErrInvalidAdvisorySchema) Error() string {
	return fmt.Sprintf("INVALID_ADVISORY_SCHEMA: advisor %q: %v", e.Advisor, e.Cause)
}

func (e *ErrInvalidAdvisorySchema) Unwrap() error { return e.Cause }

// Document renders s as a JSON Schema document, grounded on the pack's
// pkg/schema/export.go invopop/jsonschema Reflector pattern (used there to
// export the runbook schema for CLI introspection).
func (s Spec) Document(advisorName string) *jsonschema.Schema {
	doc := &jsonschema.Schema{
		Version: jsonschema.Version,
		ID:      jsonschema.ID("grimoire://advisor/" + advisorName),
		Title:   advisorName + " output",
	}
	applySpec(doc, s)
	return doc
}

func applySpec(doc *jsonschema.Schema, s Spec) {
	switch s.Kind {
	case KindBoolean:
		doc.Type = "boolean"
	case KindNumber:
		doc.Type = "number"
	case KindString:
		doc.Type = "string"
	case KindEnum:
		doc.Type = "string"
		for _, v := range s.Values {
			doc.Enum = append(doc.Enum, v)
		}
	case KindObject:
		doc.Type = "object"
		doc.Properties = jsonschema.NewProperties()
		for name, field := range s.Fields {
			fieldDoc := &jsonschema.Schema{}
			applySpec(fieldDoc, field)
			doc.Properties.Set(name, fieldDoc)
		}
	case KindArray:
		doc.Type = "array"
		itemDoc := &jsonschema.Schema{}
		if s.Item != nil {
			applySpec(itemDoc, *s.Item)
		}
		doc.Items = itemDoc
	}
}

// Compile marshals s's JSON Schema document and compiles it with
// santhosh-tekuri/jsonschema/v5, surfacing any malformed schema as an
// ErrInvalidAdvisorySchema at spell-compile time rather than at run time.
func Compile(advisorName string, s Spec) (*jsonschemaval.Schema, error) {
	doc := s.Document(advisorName)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &ErrInvalidAdvisorySchema{Advisor: advisorName, Cause: err}
	}

	c := jsonschemaval.NewCompiler()
	url := "grimoire://advisor/" + advisorName + ".json"
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, &ErrInvalidAdvisorySchema{Advisor: advisorName, Cause: err}
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, &ErrInvalidAdvisorySchema{Advisor: advisorName, Cause: err}
	}
	return compiled, nil
}

// Validate checks a coerced advisor output value against its compiled
// schema, returning a descriptive error on mismatch instead of panicking.
func Validate(compiled *jsonschemaval.Schema, value any) error {
	if compiled == nil {
		return nil
	}
	return compiled.Validate(value)
}

// Resolved is one advisory step's compiled schema, returned by CompileAll
// for the validator's INVALID_ADVISORY_SCHEMA check and for `validate
// --strict`'s schema dump (SPEC_FULL §4.H, §7).
type Resolved struct {
	StepId  string
	Advisor string
	Doc     *jsonschema.Schema
}

// SchemaError pairs a step id with the ErrInvalidAdvisorySchema its
// outputSchema produced, so callers can attach it to a per-step Finding.
type SchemaError struct {
	StepId string
	Err    error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("step %s: %v", e.StepId, e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// CompileAll walks every advisory step in sir in step-id order, compiling
// its outputSchema and collecting either a Resolved descriptor or a
// SchemaError. A schema that fails to compile is reported per-step rather
// than aborting the whole walk, so the caller sees every broken advisor in
// one pass instead of just the first.
func CompileAll(sir *ir.SpellIR) ([]Resolved, []*SchemaError) {
	ids := make([]string, 0, len(sir.Steps))
	for id, s := range sir.Steps {
		if s.Kind == ir.StepAdvisory {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var resolved []Resolved
	var errs []*SchemaError
	for _, id := range ids {
		step := sir.Steps[id]
		spec := FromExpr(step.Advisory.OutputSchema)
		if _, err := Compile(step.Advisory.Advisor, spec); err != nil {
			errs = append(errs, &SchemaError{StepId: id, Err: err})
			continue
		}
		resolved = append(resolved, Resolved{StepId: id, Advisor: step.Advisory.Advisor, Doc: spec.Document(step.Advisory.Advisor)})
	}
	return resolved, errs
}
