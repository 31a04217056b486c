package record

import (
	"fmt"

	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
)

// Manager drives record-level operations against one table's buffer pool
// (spec.md §4.4): insert_record, delete_record, get_record, visit_record,
// plus row/chunk scanners.
type Manager struct {
	pool       *pager.Pool
	recordSize int
	// dataPages tracks every page_num formatted as a record page, in
	// ascending order, for sequential scans.
	dataPages []pager.PageNum
}

// NewManager wraps pool for a table whose records are recordSize bytes
// wide (system fields + user fields per spec.md §3/§6).
func NewManager(pool *pager.Pool, recordSize int) *Manager {
	return &Manager{pool: pool, recordSize: recordSize}
}

// RecordSize returns the fixed record width this manager was opened with.
func (m *Manager) RecordSize() int { return m.recordSize }

// pageView wraps the data region of f's page as a PageView.
func (m *Manager) pageView(f *pager.Frame) *PageView {
	buf := f.Page().Data[:]
	return WrapPage(buf)
}

func (m *Manager) isRecordPage(buf []byte) bool {
	rs := int(leUint32(buf[0:4]))
	return rs == m.recordSize
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// InsertRecord appends data (exactly RecordSize bytes) into the first page
// with a free slot, allocating a new page if none has room (spec.md §4.4
// insert_record).
func (m *Manager) InsertRecord(data []byte) (RID, error) {
	if len(data) != m.recordSize {
		return RID{}, rc.Errorf(rc.INVALID_ARGUMENT, "record size mismatch: want %d got %d", m.recordSize, len(data))
	}

	for _, pn := range m.dataPages {
		f, err := m.pool.GetPage(pn)
		if err != nil {
			return RID{}, err
		}
		pv := m.pageView(f)
		if slot := pv.FirstFreeSlot(); slot >= 0 {
			pv.PutRecord(slot, data)
			f.MarkDirty()
			m.pool.UnpinPage(f)
			return RID{PageNum: pn, SlotNum: int32(slot)}, nil
		}
		m.pool.UnpinPage(f)
	}

	f, err := m.pool.AllocatePage()
	if err != nil {
		return RID{}, fmt.Errorf("record: insert: %w", err)
	}
	pv := InitPage(f.Page().Data[:], m.recordSize)
	slot := pv.FirstFreeSlot()
	if slot < 0 {
		m.pool.UnpinPage(f)
		return RID{}, rc.Errorf(rc.INTERNAL, "fresh record page has zero capacity")
	}
	pv.PutRecord(slot, data)
	f.MarkDirty()
	pageNum := f.PageNum()
	m.dataPages = append(m.dataPages, pageNum)
	m.pool.UnpinPage(f)
	return RID{PageNum: pageNum, SlotNum: int32(slot)}, nil
}

// GetRecord reads the raw bytes stored at rid (spec.md §4.4 get_record).
func (m *Manager) GetRecord(rid RID) ([]byte, error) {
	f, err := m.pool.GetPage(rid.PageNum)
	if err != nil {
		return nil, err
	}
	defer m.pool.UnpinPage(f)
	pv := m.pageView(f)
	if int(rid.SlotNum) >= pv.Capacity() || !pv.Occupied(int(rid.SlotNum)) {
		return nil, rc.RECORD_NOT_EXIST
	}
	out := make([]byte, m.recordSize)
	copy(out, pv.SlotBytes(int(rid.SlotNum)))
	return out, nil
}

// DeleteRecord clears rid's occupancy bit (spec.md §4.4 delete_record).
func (m *Manager) DeleteRecord(rid RID) error {
	f, err := m.pool.GetPage(rid.PageNum)
	if err != nil {
		return err
	}
	defer m.pool.UnpinPage(f)
	pv := m.pageView(f)
	if int(rid.SlotNum) >= pv.Capacity() || !pv.Occupied(int(rid.SlotNum)) {
		return rc.RECORD_NOT_EXIST
	}
	pv.DeleteRecord(int(rid.SlotNum))
	f.MarkDirty()
	return nil
}

// Updater mutates a record's bytes in place; its boolean return indicates
// whether the update actually modified bytes (spec.md §4.4 visit_record).
type Updater func(data []byte) bool

// VisitRecord invokes updater with a mutable view of rid's bytes; the page
// is marked dirty iff updater reports a modification.
func (m *Manager) VisitRecord(rid RID, updater Updater) error {
	f, err := m.pool.GetPage(rid.PageNum)
	if err != nil {
		return err
	}
	defer m.pool.UnpinPage(f)
	pv := m.pageView(f)
	if int(rid.SlotNum) >= pv.Capacity() || !pv.Occupied(int(rid.SlotNum)) {
		return rc.RECORD_NOT_EXIST
	}
	buf := pv.SlotBytes(int(rid.SlotNum))
	if updater(buf) {
		f.MarkDirty()
	}
	return nil
}

// RegisterDataPage tells the manager about a page already formatted as a
// record page (used when a table is reopened and its page list is
// rebuilt from the table metadata / catalog).
func (m *Manager) RegisterDataPage(pn pager.PageNum) {
	m.dataPages = append(m.dataPages, pn)
}

// DataPages returns every page currently known to hold records, in scan
// order.
func (m *Manager) DataPages() []pager.PageNum {
	return append([]pager.PageNum{}, m.dataPages...)
}

// Rebuild re-populates DataPages() by walking every page the pool has
// ever grown to and registering the ones formatted for this manager's
// record size (spec.md §4.3/§8 invariant #6: a restart must not lose
// visibility of committed data). Page 0 is always the pool's file
// header, so the scan starts at page 1. Called once after a table is
// reopened from the catalog, when a fresh Manager's page list is empty.
func (m *Manager) Rebuild() error {
	m.dataPages = m.dataPages[:0]
	for pn := pager.PageNum(1); int32(pn) < m.pool.PageCount(); pn++ {
		f, err := m.pool.GetPage(pn)
		if err != nil {
			return err
		}
		buf := f.Page().Data[:]
		isRecordPage := m.isRecordPage(buf)
		m.pool.UnpinPage(f)
		if isRecordPage {
			m.RegisterDataPage(pn)
		}
	}
	return nil
}
