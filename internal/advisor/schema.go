// Package advisor implements Grimoire's advisor output coercion rules
// (spec.md §6) and schema tooling: a JSON Schema document per advisory step
// for CLI introspection (invopop/jsonschema), compiled and checked with
// santhosh-tekuri/jsonschema/v5, plus a forward-compatible mcp.Tool
// descriptor that is built but never invoked (SPEC_FULL §4.H).
package advisor

import (
	"math"
	"strconv"

	"github.com/franalgaba/grimoire-sub002/internal/expr"
)

// Kind enumerates the advisor output schema shapes (spec.md §6).
type Kind string

const (
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Spec is a parsed advisor output schema.
type Spec struct {
	Kind   Kind
	Values []string          // enum
	Fields map[string]Spec   // object
	Item   *Spec             // array
}

// FromExpr parses an advisory step's `schema=...` argument expression into a
// Spec. The surface syntax allows a bare type name (`bool`, `number`,
// `string`) or a call-shaped descriptor (`enum(values=[...])`,
// `object(fields={...})`, `array(items=...)`).
func FromExpr(e *expr.Expr) Spec {
	if e == nil {
		return Spec{Kind: KindString}
	}
	switch e.Kind {
	case expr.Binding:
		return Spec{Kind: bindingKind(e.Name)}
	case expr.Call:
		switch e.Fn {
		case "enum":
			var values []string
			if v := e.NamedArg("values"); v != nil && v.Kind == expr.Array {
				for _, it := range v.Items {
					if it.Kind == expr.Literal {
						if s, ok := it.Value.(string); ok {
							values = append(values, s)
						}
					}
				}
			}
			return Spec{Kind: KindEnum, Values: values}
		case "object":
			fields := map[string]Spec{}
			if v := e.NamedArg("fields"); v != nil && v.Kind == expr.Object {
				for _, k := range v.Keys {
					fields[k] = FromExpr(v.Values[k])
				}
			}
			return Spec{Kind: KindObject, Fields: fields}
		case "array":
			item := FromExpr(e.NamedArg("items"))
			return Spec{Kind: KindArray, Item: &item}
		}
	}
	return Spec{Kind: KindString}
}

func bindingKind(name string) Kind {
	switch name {
	case "bool", "boolean":
		return KindBoolean
	case "number", "int", "float":
		return KindNumber
	default:
		return KindString
	}
}

// Coerce applies spec.md §6's advisor output coercion rules.
func Coerce(value any, s Spec) any {
	switch s.Kind {
	case KindBoolean:
		return truthy(value)
	case KindNumber:
		f := toFloat(value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return float64(0)
		}
		return f
	case KindString:
		return toStringValue(value)
	case KindEnum:
		if len(s.Values) == 0 {
			return value
		}
		str := toStringValue(value)
		for _, v := range s.Values {
			if v == str {
				return str
			}
		}
		return s.Values[0]
	case KindObject:
		out := map[string]any{}
		m, _ := value.(map[string]any)
		for name, field := range s.Fields {
			var fv any
			if m != nil {
				fv = m[name]
			}
			out[name] = Coerce(fv, field)
		}
		return out
	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return []any{}
		}
		out := make([]any, 0, len(arr))
		itemSpec := Spec{Kind: KindString}
		if s.Item != nil {
			itemSpec = *s.Item
		}
		for _, it := range arr {
			out = append(out, Coerce(it, itemSpec))
		}
		return out
	default:
		return value
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) != 0
	default:
		return v != nil
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toStringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
