package pager

import "encoding/binary"

// fileHeaderFixedSize is the fixed portion of the file header payload
// (within page 0's Data region): BufferPoolID(4) + PageCount(4) +
// AllocatedPages(4). The remainder of the page is the allocation bitmap.
const fileHeaderFixedSize = 12

// MaxPageNum bounds the largest page number a single file can address,
// derived from how many bits the bitmap region of page 0 can hold
// (spec.md §8: "Allocate-page when bitmap is full and page_count has
// reached BPFileHeader::MAX_PAGE_NUM returns BUFFERPOOL_NOBUF").
var MaxPageNum = (DataSize - fileHeaderFixedSize) * 8

// FileHeader is the page-0 layout described by spec.md §3/§6:
// buffer_pool_id, page_count, allocated_pages, and an allocation bitmap.
type FileHeader struct {
	BufferPoolID  uint32
	PageCount     int32
	AllocatedPage int32
	Bitmap        *Bitmap
}

// NewFileHeader creates a fresh header for a newly created file: page 0
// itself counts as allocated.
func NewFileHeader(bufferPoolID uint32) *FileHeader {
	bm := NewBitmap(MaxPageNum)
	bm.Set(0)
	return &FileHeader{
		BufferPoolID:  bufferPoolID,
		PageCount:     1,
		AllocatedPage: 1,
		Bitmap:        bm,
	}
}

// Encode writes the header into a page's Data region.
func (h *FileHeader) Encode(data []byte) {
	binary.LittleEndian.PutUint32(data[0:4], h.BufferPoolID)
	binary.LittleEndian.PutUint32(data[4:8], uint32(h.PageCount))
	binary.LittleEndian.PutUint32(data[8:12], uint32(h.AllocatedPage))
	copy(data[fileHeaderFixedSize:], h.Bitmap.Bytes())
}

// DecodeFileHeader reads a FileHeader back from a page's Data region.
func DecodeFileHeader(data []byte) *FileHeader {
	h := &FileHeader{
		BufferPoolID:  binary.LittleEndian.Uint32(data[0:4]),
		PageCount:     int32(binary.LittleEndian.Uint32(data[4:8])),
		AllocatedPage: int32(binary.LittleEndian.Uint32(data[8:12])),
		Bitmap:        NewBitmap(MaxPageNum),
	}
	h.Bitmap.LoadBytes(data[fileHeaderFixedSize : fileHeaderFixedSize+(MaxPageNum+7)/8])
	return h
}

// CheckInvariant verifies allocated_pages == popcount(bitmap) (spec.md §3).
func (h *FileHeader) CheckInvariant() bool {
	return int(h.AllocatedPage) == h.Bitmap.PopCount()
}
