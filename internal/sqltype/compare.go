package sqltype

import "bytes"

// Compare returns -1, 0, 1 comparing a to b following spec.md §4.6:
// integer/float comparisons promote through float; CHARS compares
// byte-wise; BOOL compares as 0/1 ints; UNDEFINED is never less/greater
// than anything meaningful and compares equal only to UNDEFINED.
func Compare(a, b Value) int {
	if a.Kind == UNDEFINED || b.Kind == UNDEFINED {
		if a.Kind == b.Kind {
			return 0
		}
		return -2 // incomparable sentinel; callers treat non-zero as "not equal"
	}
	if a.Kind == CHARS && b.Kind == CHARS {
		return bytes.Compare(a.CharsV, b.CharsV)
	}
	if a.Kind == CHARS || b.Kind == CHARS {
		// CHARS vs numeric: parse CHARS side to float and promote (spec.md
		// §4.6's CHARS -> INT/FLOAT parse rule, applied symmetrically).
		af, bf := numericFloat(a), numericFloat(b)
		return cmpFloat(af, bf)
	}
	if a.Kind == FLOAT || b.Kind == FLOAT {
		return cmpFloat(a.GetFloat(), b.GetFloat())
	}
	ai, bi := a.GetInt(), b.GetInt()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

func numericFloat(v Value) float64 {
	return v.GetFloat()
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }
