package eval

import "math/big"

// isTruthy implements spec.md §4.D's truthiness rule: false, 0, 0n, "",
// null, undefined (nil), and [] are falsy; everything else is truthy.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case *big.Int:
		return t.Sign() != 0
	case string:
		return t != ""
	case []any:
		return len(t) != 0
	default:
		return true
	}
}

// isInteger reports whether f has no fractional part, so arithmetic on it
// can stay in arbitrary-precision integer space (spec.md §4.D: "arithmetic
// on arbitrary-precision integers is exact").
func isInteger(f float64) bool {
	return f == float64(int64(f))
}

func toBigInt(v any) (*big.Int, bool) {
	switch t := v.(type) {
	case *big.Int:
		return t, true
	case float64:
		if isInteger(t) {
			return big.NewInt(int64(t)), true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case *big.Int:
		f, _ := new(big.Float).SetInt(t).Float64()
		return f, true
	}
	return 0, false
}

func numericEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return false
}
