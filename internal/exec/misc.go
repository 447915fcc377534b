package exec

import "math/big"

// truthy mirrors spec.md §4.D truthiness coercion for the small set of
// value shapes the executor needs to branch on directly (conditions,
// guard checks, until-loop termination).
func truthy(v any) bool {
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
		return v != nil
	}
}

func toFloatLocal(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case *big.Int:
		f, _ := new(big.Float).SetInt(t).Float64()
		return f, true
	default:
		return 0, false
	}
}

func toIntLocal(v any) (int, bool) {
	f, ok := toFloatLocal(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
