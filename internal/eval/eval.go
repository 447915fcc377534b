// Package eval implements Grimoire's expression evaluator (spec.md §4.D),
// grounded in the teacher's runtime/execution/evaluator.go split between a
// synchronous fast path and an async path for calls that cross the venue
// adapter / advisor boundary.
package eval

import (
	"context"
	"math"
	"math/big"
	"sort"

	"github.com/franalgaba/grimoire-sub002/internal/expr"
)

// VenueInfo is the resolved shape of a venueRef(alias) expression.
type VenueInfo struct {
	Alias   string
	Chain   uint64
	Address string
}

// VenueResolver resolves a venue alias to its declared handle.
type VenueResolver func(alias string) (VenueInfo, error)

// Context is the evaluator's binding scope (spec.md §4.D EvalContext).
type Context struct {
	Bindings   map[string]any
	Params     map[string]any
	Persistent map[string]any
	Ephemeral  map[string]any
	Item       any
	Index      any
	HasItem    bool

	Resolver VenueResolver
}

// NewContext builds an empty evaluation context.
func NewContext() *Context {
	return &Context{
		Bindings:   map[string]any{},
		Params:     map[string]any{},
		Persistent: map[string]any{},
		Ephemeral:  map[string]any{},
	}
}

// Eval evaluates e synchronously. It is the fast path for expressions that
// never cross an async boundary (literals, arithmetic, bindings, field
// access); EvalAsync must be used for a tree that may contain a
// venue/advisor call.
func Eval(e *expr.Expr, ctx *Context) (any, error) {
	return EvalAsync(context.Background(), e, ctx)
}

// EvalAsync evaluates e, honouring ctx cancellation at its only suspension
// point: venueRef resolution via Context.Resolver, which spec.md §4.D marks
// as crossing the adapter boundary.
func EvalAsync(ctx context.Context, e *expr.Expr, ec *Context) (any, error) {
	if e == nil {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch e.Kind {
	case expr.Literal:
		return e.Value, nil

	case expr.Binding:
		if ec.HasItem {
			switch e.Name {
			case "item":
				return ec.Item, nil
			case "index":
				return ec.Index, nil
			}
		}
		v, ok := ec.Bindings[e.Name]
		if !ok {
			return nil, newErr(ErrUnknownBinding, "unbound name %q", e.Name)
		}
		return v, nil

	case expr.Param:
		v, ok := ec.Params[e.Name]
		if !ok {
			return nil, newErr(ErrUnknownBinding, "unknown param %q", e.Name)
		}
		return v, nil

	case expr.Persistent:
		return ec.Persistent[e.Name], nil

	case expr.Ephemeral:
		return ec.Ephemeral[e.Name], nil

	case expr.BinOp:
		return evalBinOp(ctx, e, ec)

	case expr.UnOp:
		return evalUnOp(ctx, e, ec)

	case expr.Call:
		if e.Recv != nil {
			// Action/advisory calls are lowered out of the expression tree
			// at IR-generation time (internal/ir); any Recv-bearing call
			// reaching the evaluator directly is a venue/advisor read used
			// inline, e.g. inside a guard check — resolve the receiver and
			// treat the call as a venue method lookup with no side effect.
			recv, err := EvalAsync(ctx, e.Recv, ec)
			if err != nil {
				return nil, err
			}
			return recv, nil
		}
		return evalBuiltin(ctx, e, ec)

	case expr.Field:
		obj, err := EvalAsync(ctx, e.Obj, ec)
		if err != nil {
			return nil, err
		}
		m, ok := obj.(map[string]any)
		if !ok {
			return nil, newErr(ErrTypeError, "field access on non-object")
		}
		return m[e.Field], nil

	case expr.Index:
		obj, err := EvalAsync(ctx, e.Obj, ec)
		if err != nil {
			return nil, err
		}
		idx, err := EvalAsync(ctx, e.Idx, ec)
		if err != nil {
			return nil, err
		}
		return evalIndex(obj, idx)

	case expr.Array:
		out := make([]any, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := EvalAsync(ctx, it, ec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case expr.Object:
		out := map[string]any{}
		for _, k := range e.Keys {
			v, err := EvalAsync(ctx, e.Values[k], ec)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case expr.VenueRef:
		if ec.Resolver == nil {
			return nil, newErr(ErrTypeError, "no venue resolver configured")
		}
		info, err := ec.Resolver(e.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"alias": info.Alias, "chain": info.Chain, "address": info.Address}, nil

	default:
		return nil, newErr(ErrTypeError, "unevaluable expression kind %q", e.Kind)
	}
}

func evalIndex(obj, idx any) (any, error) {
	switch o := obj.(type) {
	case []any:
		f, ok := toFloat(idx)
		if !ok {
			return nil, newErr(ErrTypeError, "array index must be numeric")
		}
		i := int(f)
		if i < 0 || i >= len(o) {
			return nil, newErr(ErrTypeError, "array index out of range")
		}
		return o[i], nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, newErr(ErrTypeError, "object index must be a string")
		}
		return o[key], nil
	default:
		return nil, newErr(ErrTypeError, "cannot index non-collection value")
	}
}

func evalUnOp(ctx context.Context, e *expr.Expr, ec *Context) (any, error) {
	switch e.Op {
	case "not":
		v, err := EvalAsync(ctx, e.Arg, ec)
		if err != nil {
			return nil, err
		}
		return !isTruthy(v), nil
	case "-":
		v, err := EvalAsync(ctx, e.Arg, ec)
		if err != nil {
			return nil, err
		}
		if bi, ok := toBigInt(v); ok {
			return new(big.Int).Neg(bi), nil
		}
		if f, ok := toFloat(v); ok {
			return -f, nil
		}
		return nil, newErr(ErrTypeError, "unary - on non-numeric value")
	default:
		return nil, newErr(ErrTypeError, "unknown unary operator %q", e.Op)
	}
}

func evalBinOp(ctx context.Context, e *expr.Expr, ec *Context) (any, error) {
	// and/or short-circuit, per spec.md §4.D.
	if e.Op == "and" {
		l, err := EvalAsync(ctx, e.Left, ec)
		if err != nil {
			return nil, err
		}
		if !isTruthy(l) {
			return l, nil
		}
		return EvalAsync(ctx, e.Right, ec)
	}
	if e.Op == "or" {
		l, err := EvalAsync(ctx, e.Left, ec)
		if err != nil {
			return nil, err
		}
		if isTruthy(l) {
			return l, nil
		}
		return EvalAsync(ctx, e.Right, ec)
	}

	l, err := EvalAsync(ctx, e.Left, ec)
	if err != nil {
		return nil, err
	}
	r, err := EvalAsync(ctx, e.Right, ec)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", ">", "<=", ">=":
		return compare(e.Op, l, r)
	case "+", "-", "*", "/", "%":
		return arith(e.Op, l, r)
	default:
		return nil, newErr(ErrTypeError, "unknown binary operator %q", e.Op)
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a.(type) {
	case float64, *big.Int:
		return numericEqual(a, b)
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	default:
		return false
	}
}

func compare(op string, a, b any) (any, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, newErr(ErrTypeError, "comparison on non-numeric operands")
	}
	switch op {
	case "<":
		return af < bf, nil
	case ">":
		return af > bf, nil
	case "<=":
		return af <= bf, nil
	case ">=":
		return af >= bf, nil
	}
	return nil, newErr(ErrTypeError, "unknown comparison operator %q", op)
}

// arith implements spec.md §4.D's numeric promotion rule: arithmetic on two
// integral operands is exact (big.Int); any float operand promotes the
// whole expression to float64.
func arith(op string, a, b any) (any, error) {
	if op == "+" {
		as, aok := a.(string)
		bs, bok := b.(string)
		if aok && bok {
			return as + bs, nil
		}
	}

	aBig, aIsInt := toBigInt(a)
	bBig, bIsInt := toBigInt(b)
	if aIsInt && bIsInt {
		switch op {
		case "+":
			return new(big.Int).Add(aBig, bBig), nil
		case "-":
			return new(big.Int).Sub(aBig, bBig), nil
		case "*":
			return new(big.Int).Mul(aBig, bBig), nil
		case "/":
			if bBig.Sign() == 0 {
				return nil, newErr(ErrDivByZero, "division by zero")
			}
			q := new(big.Int)
			m := new(big.Int)
			q.QuoRem(aBig, bBig, m)
			if m.Sign() == 0 {
				return q, nil
			}
			af, _ := new(big.Float).SetInt(aBig).Float64()
			bf, _ := new(big.Float).SetInt(bBig).Float64()
			return af / bf, nil
		case "%":
			if bBig.Sign() == 0 {
				return nil, newErr(ErrDivByZero, "division by zero")
			}
			return new(big.Int).Mod(aBig, bBig), nil
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, newErr(ErrTypeError, "arithmetic on non-numeric operands")
	}
	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, newErr(ErrDivByZero, "division by zero")
		}
		return af / bf, nil
	case "%":
		if bf == 0 {
			return nil, newErr(ErrDivByZero, "division by zero")
		}
		return math.Mod(af, bf), nil
	}
	return nil, newErr(ErrTypeError, "unknown arithmetic operator %q", op)
}

// evalBuiltin dispatches the small built-in function set (spec.md §4.D:
// min, max, abs, floor, ceil, len, sum, avg).
func evalBuiltin(ctx context.Context, e *expr.Expr, ec *Context) (any, error) {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := EvalAsync(ctx, a, ec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch e.Fn {
	case "min", "max":
		return minMax(e.Fn, args)
	case "abs":
		if len(args) != 1 {
			return nil, newErr(ErrTypeError, "abs takes exactly one argument")
		}
		if bi, ok := toBigInt(args[0]); ok {
			return new(big.Int).Abs(bi), nil
		}
		f, ok := toFloat(args[0])
		if !ok {
			return nil, newErr(ErrTypeError, "abs on non-numeric value")
		}
		return math.Abs(f), nil
	case "floor":
		return roundFn(math.Floor, args)
	case "ceil":
		return roundFn(math.Ceil, args)
	case "len":
		return lenFn(args)
	case "sum":
		return sumFn(args)
	case "avg":
		return avgFn(args)
	default:
		return nil, newErr(ErrTypeError, "unknown builtin function %q", e.Fn)
	}
}

func minMax(fn string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, newErr(ErrTypeError, "%s requires at least one argument", fn)
	}
	vals := flattenNumeric(args)
	if len(vals) == 0 {
		return nil, newErr(ErrTypeError, "%s on non-numeric arguments", fn)
	}
	sort.Float64s(vals)
	if fn == "min" {
		return vals[0], nil
	}
	return vals[len(vals)-1], nil
}

func flattenNumeric(args []any) []float64 {
	var out []float64
	for _, a := range args {
		if arr, ok := a.([]any); ok {
			out = append(out, flattenNumeric(arr)...)
			continue
		}
		if f, ok := toFloat(a); ok {
			out = append(out, f)
		}
	}
	return out
}

func roundFn(f func(float64) float64, args []any) (any, error) {
	if len(args) != 1 {
		return nil, newErr(ErrTypeError, "expected exactly one argument")
	}
	v, ok := toFloat(args[0])
	if !ok {
		return nil, newErr(ErrTypeError, "non-numeric argument")
	}
	return f(v), nil
}

func lenFn(args []any) (any, error) {
	if len(args) != 1 {
		return nil, newErr(ErrTypeError, "len takes exactly one argument")
	}
	switch t := args[0].(type) {
	case []any:
		return float64(len(t)), nil
	case string:
		return float64(len(t)), nil
	case map[string]any:
		return float64(len(t)), nil
	default:
		return nil, newErr(ErrTypeError, "len on unsupported type")
	}
}

func sumFn(args []any) (any, error) {
	vals := flattenNumeric(args)
	var total float64
	for _, v := range vals {
		total += v
	}
	return total, nil
}

func avgFn(args []any) (any, error) {
	vals := flattenNumeric(args)
	if len(vals) == 0 {
		return float64(0), nil
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals)), nil
}
