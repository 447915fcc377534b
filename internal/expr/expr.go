// Package expr defines Grimoire's Expression tagged sum (spec.md §3). The
// same tree shape is produced by the parser, carried unchanged through the
// transformer and IR generator, and consumed by the evaluator — expressions
// are never linearised the way control-flow statements are.
package expr

// Kind discriminates an Expr's variant.
type Kind string

const (
	Literal    Kind = "literal"
	Binding    Kind = "binding"
	Param      Kind = "param"
	Persistent Kind = "persistent"
	Ephemeral  Kind = "ephemeral"
	BinOp      Kind = "binop"
	UnOp       Kind = "unop"
	Call       Kind = "call"
	Field      Kind = "field"
	Index      Kind = "index"
	Array      Kind = "array"
	Object     Kind = "object"
	VenueRef   Kind = "venueRef"
)

// Expr is a node in an expression tree (spec.md §3).
type Expr struct {
	Kind Kind `json:"kind"`

	// literal
	Value    any    `json:"value,omitempty"`
	LitType  string `json:"litType,omitempty"`

	// binding / param / persistent / ephemeral / venueRef: Name holds the
	// referenced identifier (venueRef's alias).
	Name string `json:"name,omitempty"`

	// binop / unop
	Op    string `json:"op,omitempty"`
	Left  *Expr  `json:"left,omitempty"`
	Right *Expr  `json:"right,omitempty"`
	Arg   *Expr  `json:"arg,omitempty"`

	// call. Recv is nil for a builtin function call (min, max, ...); when
	// set, the call is a method-style call used for venue actions
	// (`@alias.deposit(...)`) and advisor asks (`oracle.ask(...)`) — the IR
	// generator, not the parser, decides which of those it is. ArgNames
	// runs parallel to Args; an empty name marks a positional argument.
	Recv     *Expr    `json:"recv,omitempty"`
	Fn       string   `json:"fn,omitempty"`
	Args     []*Expr  `json:"args,omitempty"`
	ArgNames []string `json:"argNames,omitempty"`

	// field / index
	Obj   *Expr  `json:"obj,omitempty"`
	Field string `json:"field,omitempty"`
	Idx   *Expr  `json:"idx,omitempty"`

	// array
	Items []*Expr `json:"items,omitempty"`

	// object — Keys preserves declaration order since Go maps don't.
	Keys   []string         `json:"keys,omitempty"`
	Values map[string]*Expr `json:"values,omitempty"`
}

// NamedArg returns the value of the named call argument, or nil.
func (e *Expr) NamedArg(name string) *Expr {
	for i, n := range e.ArgNames {
		if n == name {
			return e.Args[i]
		}
	}
	return nil
}

// Lit builds a literal expression.
func Lit(v any, litType string) *Expr { return &Expr{Kind: Literal, Value: v, LitType: litType} }

// BindingRef builds a binding() reference expression.
func BindingRef(name string) *Expr { return &Expr{Kind: Binding, Name: name} }

// ParamRef builds a param() reference expression.
func ParamRef(name string) *Expr { return &Expr{Kind: Param, Name: name} }

// String renders a compact debug form, used in error messages.
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case Literal:
		return formatLit(e.Value)
	case Binding:
		return e.Name
	case Param:
		return "param(" + e.Name + ")"
	case Persistent:
		return "persistent(" + e.Name + ")"
	case Ephemeral:
		return "ephemeral(" + e.Name + ")"
	case BinOp:
		return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
	case UnOp:
		return "(" + e.Op + " " + e.Arg.String() + ")"
	case Call:
		return e.Fn + "(...)"
	case Field:
		return e.Obj.String() + "." + e.Field
	case Index:
		return e.Obj.String() + "[" + e.Idx.String() + "]"
	case Array:
		return "[...]"
	case Object:
		return "{...}"
	case VenueRef:
		return "@" + e.Name
	default:
		return "?"
	}
}

func formatLit(v any) string {
	switch t := v.(type) {
	case string:
		return "\"" + t + "\""
	default:
		return ""
	}
}

// Walk visits e and every descendant expression, depth-first.
func Walk(e *Expr, fn func(*Expr)) {
	if e == nil {
		return
	}
	fn(e)
	Walk(e.Left, fn)
	Walk(e.Right, fn)
	Walk(e.Arg, fn)
	Walk(e.Recv, fn)
	for _, a := range e.Args {
		Walk(a, fn)
	}
	Walk(e.Obj, fn)
	Walk(e.Idx, fn)
	for _, it := range e.Items {
		Walk(it, fn)
	}
	for _, k := range e.Keys {
		Walk(e.Values[k], fn)
	}
}
