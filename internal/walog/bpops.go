package walog

import "encoding/binary"

// Buffer-pool op types (spec.md §4.3 BufferPoolLogHandler).
const (
	BPOpAllocatePage   byte = 1
	BPOpDeallocatePage byte = 2
	BPOpFlushPage      byte = 3
)

// BufferPoolLogHandler emits the buffer-pool log family (spec.md §4.3):
// allocate/deallocate page (page num only) and flush page (full page
// image, enforcing WAL before the page is written to disk).
type BufferPoolLogHandler struct {
	h            *Handler
	bufferPoolID uint32
}

// NewBufferPoolLogHandler binds a log handler to one buffer pool's id so
// every entry it emits can be attributed during recovery.
func NewBufferPoolLogHandler(h *Handler, bufferPoolID uint32) *BufferPoolLogHandler {
	return &BufferPoolLogHandler{h: h, bufferPoolID: bufferPoolID}
}

func encodePageNumPayload(bufferPoolID uint32, pageNum int32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], bufferPoolID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pageNum))
	return buf
}

// DecodePageNumPayload is exported for replayers.
func DecodePageNumPayload(payload []byte) (bufferPoolID uint32, pageNum int32) {
	bufferPoolID = binary.LittleEndian.Uint32(payload[0:4])
	pageNum = int32(binary.LittleEndian.Uint32(payload[4:8]))
	return
}

// AllocatePage appends an allocate-page log entry, returning its LSN.
func (b *BufferPoolLogHandler) AllocatePage(pageNum int32) (LSN, error) {
	return b.h.Append(FamilyBufferPool, BPOpAllocatePage, encodePageNumPayload(b.bufferPoolID, pageNum))
}

// DeallocatePage appends a deallocate-page log entry, returning its LSN.
func (b *BufferPoolLogHandler) DeallocatePage(pageNum int32) (LSN, error) {
	return b.h.Append(FamilyBufferPool, BPOpDeallocatePage, encodePageNumPayload(b.bufferPoolID, pageNum))
}

// FlushPage appends a page-flush log entry carrying the full page image,
// which must happen before the page is written to its home file (WAL
// invariant, spec.md §3/§8 #5).
func (b *BufferPoolLogHandler) FlushPage(pageNum int32, pageBytes []byte) (LSN, error) {
	payload := make([]byte, 8+len(pageBytes))
	binary.LittleEndian.PutUint32(payload[0:4], b.bufferPoolID)
	binary.LittleEndian.PutUint32(payload[4:8], uint32(pageNum))
	copy(payload[8:], pageBytes)
	return b.h.Append(FamilyBufferPool, BPOpFlushPage, payload)
}

// DecodeFlushPayload splits a flush-page payload back into its parts.
func DecodeFlushPayload(payload []byte) (bufferPoolID uint32, pageNum int32, pageBytes []byte) {
	bufferPoolID = binary.LittleEndian.Uint32(payload[0:4])
	pageNum = int32(binary.LittleEndian.Uint32(payload[4:8]))
	pageBytes = payload[8:]
	return
}
