package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// rightFactory reopens the join's right-hand child for every outer
// row, since NestedLoopJoin's right side must be rescanned from the
// start per spec.md §4.8 ("for each outer row, reopen right and
// iterate fully").
type rightFactory func() RowOperator

// NestedLoopJoin implements spec.md §4.8's NestedLoopJoin: the outer
// (left) child iterates once; for each outer row, a fresh right
// operator instance is opened and iterated fully, testing On against
// each combined row.
type NestedLoopJoin struct {
	Left        RowOperator
	NewRight    rightFactory
	On          expr.Expression
	LeftOuter   bool // true for LEFT JOIN: unmatched left rows still emit once, right side NULL

	trx        *trxmgr.MvccTrx
	right      RowOperator
	leftCur    tuple.Tuple
	matched    bool
	leftDone   bool
	emittedNil bool
	cur        tuple.Tuple
}

// NewNestedLoopJoin builds a join whose right side is re-created via
// newRight for every outer row (newRight typically closes over a
// physical-plan factory that rebuilds a fresh TableScan/IndexScan).
func NewNestedLoopJoin(left RowOperator, newRight rightFactory, on expr.Expression, leftOuter bool) *NestedLoopJoin {
	return &NestedLoopJoin{Left: left, NewRight: newRight, On: on, LeftOuter: leftOuter}
}

func (j *NestedLoopJoin) Open(trx *trxmgr.MvccTrx) error {
	j.trx = trx
	return j.Left.Open(trx)
}

func (j *NestedLoopJoin) nextLeft() error {
	if err := j.Left.Next(); err != nil {
		return err
	}
	j.leftCur = j.Left.Current()
	j.matched = false
	if j.right != nil {
		j.right.Close()
	}
	j.right = j.NewRight()
	return j.right.Open(j.trx)
}

func (j *NestedLoopJoin) Next() error {
	if j.leftDone {
		return rc.RECORD_EOF
	}
	if j.leftCur == nil {
		if err := j.nextLeft(); err != nil {
			if err == rc.RECORD_EOF {
				j.leftDone = true
			}
			return err
		}
	}
	for {
		err := j.right.Next()
		if err == rc.RECORD_EOF {
			if j.LeftOuter && !j.matched {
				j.cur = tuple.NewJoinedTuple(j.leftCur, nullTuple(j.right.Current()))
				j.matched = true
				if nextErr := j.advanceLeft(); nextErr != nil && nextErr != rc.RECORD_EOF {
					return nextErr
				}
				return nil
			}
			if nextErr := j.advanceLeft(); nextErr != nil {
				return nextErr
			}
			continue
		}
		if err != nil {
			return err
		}
		joined := tuple.NewJoinedTuple(j.leftCur, j.right.Current())
		if j.On != nil {
			v, evalErr := j.On.GetValue(joined)
			if evalErr != nil {
				return evalErr
			}
			if !v.GetBool() {
				continue
			}
		}
		j.matched = true
		j.cur = joined
		return nil
	}
}

// advanceLeft moves to the next outer row, or marks the join done.
func (j *NestedLoopJoin) advanceLeft() error {
	if err := j.nextLeft(); err != nil {
		if err == rc.RECORD_EOF {
			j.leftDone = true
		}
		return err
	}
	return nil
}

// nullTuple builds an all-UNDEFINED tuple with the same shape as
// shape, for LEFT JOIN's unmatched-right-side rows.
func nullTuple(shape tuple.Tuple) tuple.Tuple {
	n := shape.Len()
	values := make([]sqltype.Value, n)
	specs := make([]tuple.CellSpec, n)
	for i := 0; i < n; i++ {
		values[i] = sqltype.Undefined()
		specs[i] = shape.CellSpec(i)
	}
	return &tuple.ValueListTuple{Values: values, Specs: specs}
}

func (j *NestedLoopJoin) Current() tuple.Tuple { return j.cur }

func (j *NestedLoopJoin) Close() error {
	if j.right != nil {
		j.right.Close()
	}
	return j.Left.Close()
}
