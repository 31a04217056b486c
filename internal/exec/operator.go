// Package exec implements spec.md §4.9's physical operator tree: the
// row (pull) and chunk iterator contracts, and the concrete operators
// internal/plan's physical planner assembles (TableScan, IndexScan,
// Predicate, Project, NestedLoopJoin, GroupBy, Insert, Delete, Explain,
// LoadData).
//
// Grounded on tinySQL's internal/engine/exec.go operator functions
// (evalSelect/evalInsert/evalDelete, each a plain function walking rows
// and building result sets), redesigned into spec.md §4.9's explicit
// open/next/close operator objects so a tree of operators can be built
// once by the physical planner and driven uniformly by
// internal/session.SqlResult.
package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// RowOperator is spec.md §4.9's row (pull) operator contract.
type RowOperator interface {
	Open(trx *trxmgr.MvccTrx) error
	// Next advances to the next output row. It returns rc.RECORD_EOF
	// (via the returned error, comparable with errors.Is) once
	// exhausted, and any other error aborts the enclosing statement.
	Next() error
	Current() tuple.Tuple
	Close() error
}

// Chunk is a columnar batch of tuples plus a selection vector, so
// Predicate can mask rows without copying (spec.md §4.9).
type Chunk struct {
	Tuples []tuple.Tuple
	Select []bool
}

// NewChunk allocates an empty chunk with the given capacity.
func NewChunk(capacity int) *Chunk {
	return &Chunk{Tuples: make([]tuple.Tuple, 0, capacity), Select: make([]bool, 0, capacity)}
}

// Len returns the number of rows currently buffered.
func (c *Chunk) Len() int { return len(c.Tuples) }

// Reset empties the chunk for reuse.
func (c *Chunk) Reset() {
	c.Tuples = c.Tuples[:0]
	c.Select = c.Select[:0]
}

// ChunkOperator is spec.md §4.9's chunk (vectorized) operator contract.
type ChunkOperator interface {
	Open(trx *trxmgr.MvccTrx) error
	Next(out *Chunk) error
	Close() error
}

// EOF is a convenience alias for the sentinel every operator returns
// once exhausted.
var EOF = rc.RECORD_EOF
