package walog

import "encoding/binary"

// MVCC op types (spec.md §4.3 MvccTrxLogHandler).
const (
	MVCCOpInsertRecord byte = 1
	MVCCOpDeleteRecord byte = 2
	MVCCOpCommit       byte = 3
	MVCCOpRollback     byte = 4
)

// RID mirrors record.RID without importing the record package (avoids an
// import cycle between walog and record); internal/trxmgr converts to and
// from this shape when it logs and when it replays.
type RID struct {
	PageNum int32
	SlotNum int32
}

// MvccTrxLogHandler emits the MVCC log family (spec.md §4.3):
// insert/delete record, commit, rollback.
type MvccTrxLogHandler struct {
	h *Handler
}

func NewMvccTrxLogHandler(h *Handler) *MvccTrxLogHandler {
	return &MvccTrxLogHandler{h: h}
}

func encodeTrxTableRID(trxID int32, tableID int32, rid RID) []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(trxID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(tableID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rid.PageNum))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(rid.SlotNum))
	return buf[:16]
}

// DecodeTrxTableRID reverses encodeTrxTableRID.
func DecodeTrxTableRID(payload []byte) (trxID int32, tableID int32, rid RID) {
	trxID = int32(binary.LittleEndian.Uint32(payload[0:4]))
	tableID = int32(binary.LittleEndian.Uint32(payload[4:8]))
	rid.PageNum = int32(binary.LittleEndian.Uint32(payload[8:12]))
	rid.SlotNum = int32(binary.LittleEndian.Uint32(payload[12:16]))
	return
}

func (m *MvccTrxLogHandler) InsertRecord(trxID, tableID int32, rid RID) (LSN, error) {
	return m.h.Append(FamilyMVCC, MVCCOpInsertRecord, encodeTrxTableRID(trxID, tableID, rid))
}

func (m *MvccTrxLogHandler) DeleteRecord(trxID, tableID int32, rid RID) (LSN, error) {
	return m.h.Append(FamilyMVCC, MVCCOpDeleteRecord, encodeTrxTableRID(trxID, tableID, rid))
}

func encodeTrxCommit(trxID, commitXID int32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(trxID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(commitXID))
	return buf
}

// DecodeTrxCommit reverses encodeTrxCommit.
func DecodeTrxCommit(payload []byte) (trxID, commitXID int32) {
	trxID = int32(binary.LittleEndian.Uint32(payload[0:4]))
	commitXID = int32(binary.LittleEndian.Uint32(payload[4:8]))
	return
}

func (m *MvccTrxLogHandler) Commit(trxID, commitXID int32) (LSN, error) {
	return m.h.Append(FamilyMVCC, MVCCOpCommit, encodeTrxCommit(trxID, commitXID))
}

func encodeTrxID(trxID int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(trxID))
	return buf
}

// DecodeTrxID reverses encodeTrxID.
func DecodeTrxID(payload []byte) int32 {
	return int32(binary.LittleEndian.Uint32(payload[0:4]))
}

func (m *MvccTrxLogHandler) Rollback(trxID int32) (LSN, error) {
	return m.h.Append(FamilyMVCC, MVCCOpRollback, encodeTrxID(trxID))
}
