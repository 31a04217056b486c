package index

import (
	"encoding/binary"
	"math"

	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

// EncodeKey produces an order-preserving byte encoding of v, so that
// bytes.Compare over the encodings matches sqltype.Compare over the
// values, for exactly the value kinds a single-column index can be built
// over (spec.md §4.8 IndexScan: equality against a single-column indexed
// field).
func EncodeKey(v sqltype.Value) ([]byte, error) {
	switch v.Kind {
	case sqltype.INT:
		buf := make([]byte, 8)
		// Flip the sign bit so two's-complement ordering becomes
		// unsigned-lexicographic ordering: negative numbers sort before
		// non-negative ones once the top bit is inverted.
		binary.BigEndian.PutUint64(buf, uint64(v.IntV)^(1<<63))
		return buf, nil
	case sqltype.FLOAT:
		bits := math.Float64bits(v.FloatV)
		if v.FloatV < 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case sqltype.BOOL:
		if v.BoolV {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case sqltype.CHARS:
		return append([]byte(nil), v.CharsV...), nil
	default:
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "value kind %v cannot be indexed", v.Kind)
	}
}
