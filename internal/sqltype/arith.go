package sqltype

import "fmt"

// Add, Sub, Mul, Div, Neg implement the Arithmetic expression's four binary
// kernels plus unary negation (spec.md §3 Expression variants). Results
// promote to FLOAT if either operand is FLOAT, otherwise stay INT.
func Add(a, b Value) Value { return arith2(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Value) Value { return arith2(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Value) Value { return arith2(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }) }

// Div implements the documented non-trapping division rule: a divisor whose
// absolute value is below epsilon yields FloatMax instead of an error
// (spec.md §4.6/§8/§9 Open Questions).
func Div(a, b Value) Value {
	bf := b.GetFloat()
	if abs(bf) < epsilon {
		return NewFloat(FloatMax)
	}
	if a.Kind == FLOAT || b.Kind == FLOAT {
		return NewFloat(a.GetFloat() / bf)
	}
	// Integer division still routes through float per the spec's "division
	// by a value in (-eps, eps)" wording, which only makes sense for a
	// float-typed divisor check; exact integer division stays integral.
	bi := b.GetInt()
	if bi == 0 {
		return NewFloat(FloatMax)
	}
	return NewInt(a.GetInt() / bi)
}

// Neg implements unary arithmetic negation.
func Neg(a Value) Value {
	if a.Kind == FLOAT {
		return NewFloat(-a.FloatV)
	}
	return NewInt(-a.GetInt())
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func arith2(a, b Value, fi func(int64, int64) int64, ff func(float64, float64) float64) Value {
	if a.Kind == FLOAT || b.Kind == FLOAT {
		return NewFloat(ff(a.GetFloat(), b.GetFloat()))
	}
	return NewInt(fi(a.GetInt(), b.GetInt()))
}

// CastCost implements the documented cast-cost table (spec.md §4.6):
// identity = 0, same-kind widen = small, cross-kind = large,
// unsupported = math.MaxInt32 sentinel (mirrored here as CastUnsupported).
const CastUnsupported = 1<<31 - 1

func CastCost(from, to Kind) int {
	if from == to {
		return 0
	}
	switch {
	case from == INT && to == FLOAT, from == FLOAT && to == INT:
		return 1
	case from == CHARS && (to == INT || to == FLOAT):
		return 3
	case (from == INT || from == FLOAT) && to == CHARS:
		return 3
	case from == BOOL && (to == INT || to == FLOAT):
		return 2
	case (from == INT || from == FLOAT) && to == BOOL:
		return 2
	case to == CHARS && from == BOOL, from == CHARS && to == BOOL:
		return 3
	default:
		return CastUnsupported
	}
}

// Cast converts v to the target kind using the cast-cost table above to
// decide legality; callers should check CastCost first if they need to
// reject CastUnsupported conversions.
func Cast(v Value, to Kind) (Value, error) {
	if CastCost(v.Kind, to) == CastUnsupported {
		return Value{}, fmt.Errorf("unsupported cast %s -> %s", v.Kind, to)
	}
	switch to {
	case INT:
		return NewInt(v.GetInt()), nil
	case FLOAT:
		return NewFloat(v.GetFloat()), nil
	case BOOL:
		return NewBool(v.GetBool()), nil
	case CHARS:
		return NewChars(v.ToString()), nil
	default:
		return Undefined(), nil
	}
}
