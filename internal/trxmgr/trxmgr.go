// Package trxmgr implements the MVCC transaction manager described in
// spec.md §4.5: per-row begin/end transaction identifiers (rather than
// version chains), a visibility check consulted by scanners and
// point-lookups, and commit/rollback driven by each transaction's
// append-only operation list.
//
// Grounded on tinySQL's internal/storage/mvcc.go (transaction kit shape:
// atomic id counter, live-transaction set, begin/commit/abort lifecycle)
// and concurrency.go (conflict-detection style), redesigned from
// tinySQL's xmin/xmax row-version-chain model to spec.md §4.5's
// begin_xid/end_xid in-place model: there is exactly one physical copy
// of each row, and MVCC state lives in two hidden fields on that row
// rather than in a chain of historical copies.
package trxmgr

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

// MaxTrxID is spec.md §4.5's MAX_TRX_ID sentinel: the default end_xid of
// a row nobody has deleted.
const MaxTrxID int32 = math.MaxInt32

// OpKind tags one entry of a transaction's operation list.
type OpKind int

const (
	OpInsert OpKind = iota
	OpDelete
)

// Op is one entry of an MvccTrx's append-only operation list (spec.md
// §3 "Transaction state").
type Op struct {
	Kind    OpKind
	TableID int32
	Table   *Table
	RID     record.RID
}

// Table is the minimal surface trxmgr needs from a table: its id (for
// logging) and its underlying record manager. Callers build one from an
// internal/table.Table's ID and Records.
type Table struct {
	ID      int32
	Records *record.Manager
}

// ReadMode mirrors spec.md §4.5's visit_record modes.
type ReadMode = record.ReadMode

const (
	ReadOnly  = record.ReadOnly
	ReadWrite = record.ReadWrite
)

// MvccTrx is one transaction: a trx_id, lifecycle flags, and an
// append-only op list (spec.md §3).
type MvccTrx struct {
	mu         sync.Mutex
	trxID      int32
	started    bool
	recovering bool
	ops        []Op
}

// TrxID returns the transaction's id, or 0 if it has not started.
func (t *MvccTrx) TrxID() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trxID
}

// Started reports whether the transaction is currently open.
func (t *MvccTrx) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Manager is the transaction kit (spec.md §3/§5): a monotonically
// increasing trx-id counter and the set of live transactions, guarded by
// a mutex; the counter itself is additionally atomic so recovery can
// bump it without taking the set lock.
type Manager struct {
	mu          sync.Mutex
	live        map[int32]*MvccTrx
	nextTrxID   atomic.Int64
	log         *walog.MvccTrxLogHandler
	recoveryIDs []uuid.UUID // one google/uuid stamp per completed recovery pass
}

// NewManager wires a transaction kit to the MVCC log family.
func NewManager(log *walog.MvccTrxLogHandler) *Manager {
	m := &Manager{live: make(map[int32]*MvccTrx), log: log}
	m.nextTrxID.Store(1)
	return m
}

// stampRecovery records a fresh correlation id for one recovery pass
// (internal/trxmgr.Replayer.Finish calls this once per Open), so crash
// logs can tie together everything a single recovery run touched.
func (m *Manager) stampRecovery() uuid.UUID {
	id := uuid.New()
	m.mu.Lock()
	m.recoveryIDs = append(m.recoveryIDs, id)
	m.mu.Unlock()
	return id
}

// LastRecoveryID returns the correlation id of the most recent recovery
// pass, or the zero UUID if none has run yet.
func (m *Manager) LastRecoveryID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recoveryIDs) == 0 {
		return uuid.UUID{}
	}
	return m.recoveryIDs[len(m.recoveryIDs)-1]
}

func (m *Manager) nextID() int32 {
	return int32(m.nextTrxID.Add(1))
}

// Begin starts a new transaction and registers it as live.
func (m *Manager) Begin() *MvccTrx {
	t := &MvccTrx{trxID: m.nextID(), started: true}
	m.mu.Lock()
	m.live[t.trxID] = t
	m.mu.Unlock()
	return t
}

// BeginRecovering starts (or resumes) a transaction under replay: its
// id is fixed by the log rather than freshly minted, and it is marked
// recovering so Rollback knows to re-verify row ownership before
// deleting (spec.md §4.5 Rollback, idempotency note).
func (m *Manager) BeginRecovering(trxID int32) *MvccTrx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.live[trxID]; ok {
		return t
	}
	t := &MvccTrx{trxID: trxID, started: true, recovering: true}
	m.live[trxID] = t
	if int64(trxID) >= m.nextTrxID.Load() {
		m.nextTrxID.Store(int64(trxID) + 1)
	}
	return t
}

// Live returns the recovering transaction registered under trxID, if
// any (used by recovery's MVCC replayer to append to its op list).
func (m *Manager) Live(trxID int32) (*MvccTrx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live[trxID]
	return t, ok
}

func (m *Manager) forget(trxID int32) {
	m.mu.Lock()
	delete(m.live, trxID)
	m.mu.Unlock()
}

// Insert implements spec.md §4.5 Insert: stamps the hidden fields for an
// uncommitted insert, writes the row, logs it, and records the op.
func (m *Manager) Insert(t *MvccTrx, tbl *Table, userData []byte) (record.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return record.RID{}, rc.Errorf(rc.INTERNAL, "insert on a transaction that has not started")
	}

	raw := make([]byte, record.HiddenFieldsSize+len(userData))
	record.EncodeHiddenFields(raw, -t.trxID, MaxTrxID)
	copy(raw[record.HiddenFieldsSize:], userData)

	rid, err := tbl.Records.InsertRecord(raw)
	if err != nil {
		return record.RID{}, err
	}
	if _, err := m.log.InsertRecord(t.trxID, tbl.ID, toWalRID(rid)); err != nil {
		return record.RID{}, fmt.Errorf("trxmgr: insert log: %w", err)
	}
	t.ops = append(t.ops, Op{Kind: OpInsert, TableID: tbl.ID, Table: tbl, RID: rid})
	return rid, nil
}

// Delete implements spec.md §4.5 Delete: visits the row under
// READ_WRITE, and on success stamps end = -trx_id.
func (m *Manager) Delete(t *MvccTrx, tbl *Table, rid record.RID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return rc.Errorf(rc.INTERNAL, "delete on a transaction that has not started")
	}

	if err := m.visit(t.trxID, tbl, rid, ReadWrite); err != nil {
		return err
	}

	err := tbl.Records.VisitRecord(rid, func(data []byte) bool {
		record.EncodeHiddenFields(data, data0Begin(data), -t.trxID)
		return true
	})
	if err != nil {
		return err
	}
	if _, err := m.log.DeleteRecord(t.trxID, tbl.ID, toWalRID(rid)); err != nil {
		return fmt.Errorf("trxmgr: delete log: %w", err)
	}
	t.ops = append(t.ops, Op{Kind: OpDelete, TableID: tbl.ID, Table: tbl, RID: rid})
	return nil
}

func data0Begin(data []byte) int32 {
	b, _ := record.DecodeHiddenFields(data)
	return b
}

// Visibility returns the hidden-field visibility check as a
// record.VisibilityFunc bound to trxID and mode, for use by scanners
// (spec.md §4.4 row/chunk scanner open(trx, mode)).
func (m *Manager) Visibility(trxID int32, mode ReadMode) record.VisibilityFunc {
	return func(beginXID, endXID int32) error {
		return checkVisibility(trxID, beginXID, endXID, mode)
	}
}

// visit performs spec.md §4.5's visit_record visibility check against
// the row currently stored at rid.
func (m *Manager) visit(trxID int32, tbl *Table, rid record.RID, mode ReadMode) error {
	data, err := tbl.Records.GetRecord(rid)
	if err != nil {
		return err
	}
	b, e := record.DecodeHiddenFields(data)
	return checkVisibility(trxID, b, e, mode)
}

// checkVisibility implements spec.md §4.5's three visibility cases
// verbatim: b/e sign encodes "uncommitted, owned by trx -b/-e";
// positive values are committed xids.
func checkVisibility(trxID, b, e int32, mode ReadMode) error {
	switch {
	case b > 0 && e > 0:
		if b <= trxID && trxID <= e {
			return nil
		}
		return rc.RECORD_INVISIBLE
	case b < 0:
		if -b == trxID {
			return nil
		}
		return rc.RECORD_INVISIBLE
	case e < 0:
		if mode == ReadOnly {
			if -e != trxID {
				return nil
			}
			return rc.RECORD_INVISIBLE
		}
		if -e != trxID {
			return rc.LOCKED_CONCURRENCY_CONFLICT
		}
		return rc.RECORD_INVISIBLE
	default:
		return rc.RECORD_INVISIBLE
	}
}

// Commit implements spec.md §4.5 Commit: stamps every row touched by
// this transaction's op list with the freshly minted commit_xid, logs
// the commit, then clears the op list and ends the transaction.
func (m *Manager) Commit(t *MvccTrx) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0, rc.Errorf(rc.INTERNAL, "commit on a transaction that has not started")
	}

	commitXID := m.nextID()
	if err := applyCommitStamps(t, commitXID); err != nil {
		return 0, err
	}
	if _, err := m.log.Commit(t.trxID, commitXID); err != nil {
		return 0, fmt.Errorf("trxmgr: commit log: %w", err)
	}
	t.ops = nil
	t.started = false
	m.forget(t.trxID)
	return commitXID, nil
}

// recoverApplyCommit re-applies a commit's row-stamping effect during
// recovery, reusing the original commit_xid and skipping the log append
// (spec.md §4.3: the log already records this commit).
func (m *Manager) recoverApplyCommit(t *MvccTrx, commitXID int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := applyCommitStamps(t, commitXID); err != nil {
		return err
	}
	t.ops = nil
	t.started = false
	m.forget(t.trxID)
	return nil
}

func applyCommitStamps(t *MvccTrx, commitXID int32) error {
	for _, op := range t.ops {
		switch op.Kind {
		case OpInsert:
			err := op.Table.Records.VisitRecord(op.RID, func(data []byte) bool {
				b, e := record.DecodeHiddenFields(data)
				if b == -t.trxID {
					record.EncodeHiddenFields(data, commitXID, e)
					return true
				}
				return false
			})
			if err != nil {
				return err
			}
		case OpDelete:
			err := op.Table.Records.VisitRecord(op.RID, func(data []byte) bool {
				b, e := record.DecodeHiddenFields(data)
				if e == -t.trxID {
					record.EncodeHiddenFields(data, b, commitXID)
					return true
				}
				return false
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback implements spec.md §4.5 Rollback: walks the op list in
// reverse, undoing inserts by deleting the row and undoing deletes by
// restoring end = MAX_TRX_ID.
func (m *Manager) Rollback(t *MvccTrx) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return rc.Errorf(rc.INTERNAL, "rollback on a transaction that has not started")
	}

	if err := applyRollbackUndo(t); err != nil {
		return err
	}
	if _, err := m.log.Rollback(t.trxID); err != nil {
		return fmt.Errorf("trxmgr: rollback log: %w", err)
	}
	t.ops = nil
	t.started = false
	m.forget(t.trxID)
	return nil
}

// recoverApplyRollback re-applies a rollback's undo effect during
// recovery (both for transactions whose last terminal log was a
// rollback, and for transactions with no terminal log at all), skipping
// the log append since either the log already records it or spec.md
// §4.3's "rollback if none" policy supplies it implicitly.
func (m *Manager) recoverApplyRollback(t *MvccTrx) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := applyRollbackUndo(t); err != nil {
		return err
	}
	t.ops = nil
	t.started = false
	m.forget(t.trxID)
	return nil
}

func applyRollbackUndo(t *MvccTrx) error {
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		switch op.Kind {
		case OpInsert:
			if t.recovering {
				data, err := op.Table.Records.GetRecord(op.RID)
				if err == rc.RECORD_NOT_EXIST {
					continue
				}
				if err != nil {
					return err
				}
				b, _ := record.DecodeHiddenFields(data)
				if b != -t.trxID {
					continue
				}
			}
			if err := op.Table.Records.DeleteRecord(op.RID); err != nil && err != rc.RECORD_NOT_EXIST {
				return err
			}
		case OpDelete:
			err := op.Table.Records.VisitRecord(op.RID, func(data []byte) bool {
				b, e := record.DecodeHiddenFields(data)
				if e != -t.trxID {
					return false
				}
				record.EncodeHiddenFields(data, b, MaxTrxID)
				return true
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func toWalRID(rid record.RID) walog.RID {
	return walog.RID{PageNum: int32(rid.PageNum), SlotNum: rid.SlotNum}
}
