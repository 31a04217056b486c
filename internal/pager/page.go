// Package pager implements the paged buffer pool described in spec.md §4.1:
// fixed-size pages carrying an LSN and CRC32 checksum, frames that pin/unpin
// those pages in memory, and per-file DiskBufferPools sharing a global
// frame allocator.
//
// Grounded on tinySQL's internal/storage/pager/page.go (header layout,
// CRC32) and pager.go (PageFrame/PageBufferPool), redesigned around
// spec.md's file-header bitmap and double-write flush protocol instead of
// tinySQL's own WAL-only recovery model.
package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// PageSize is the fixed 8 KiB page size (spec.md §3).
	PageSize = 8192

	// pageHeaderSize is the fixed in-page header: LSN(8) + CRC32(4) + PageNum(4).
	pageHeaderSize = 16

	// DataSize is the usable payload per page.
	DataSize = PageSize - pageHeaderSize

	// InvalidPageNum marks the absence of a page number.
	InvalidPageNum PageNum = -1
)

// PageNum identifies a page uniquely within one file (spec.md §3: 32-bit
// signed). Page 0 is always the file header.
type PageNum int32

// LSN is a 64-bit signed, globally monotonically increasing log sequence
// number (spec.md §3).
type LSN int64

// Page is the fixed 8 KiB on-disk/in-memory unit.
type Page struct {
	PageNum  PageNum
	LSN      LSN
	Checksum uint32
	Data     [DataSize]byte
}

// crcTable matches tinySQL's own pager (crc32.Castagnoli); kept as the
// stdlib hash/crc32 package since no third-party CRC library appears
// anywhere in the example pack (see DESIGN.md).
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ComputeChecksum returns the CRC32 over the page's data region only
// (spec.md §4.1 flush protocol step 2).
func (p *Page) ComputeChecksum() uint32 {
	return crc32.Checksum(p.Data[:], crcTable)
}

// Marshal serializes the page into a fixed PageSize-byte buffer.
func (p *Page) Marshal() []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.LSN))
	binary.LittleEndian.PutUint32(buf[8:12], p.Checksum)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(p.PageNum))
	copy(buf[pageHeaderSize:], p.Data[:])
	return buf
}

// Unmarshal populates out from a PageSize-byte buffer. It does not check
// the stored CRC32; VerifyChecksum compares it against the data region
// (spec.md §8 invariant #4).
func Unmarshal(buf []byte, out *Page) error {
	if len(buf) != PageSize {
		return fmt.Errorf("pager: short page buffer: %d", len(buf))
	}
	out.LSN = LSN(binary.LittleEndian.Uint64(buf[0:8]))
	out.Checksum = binary.LittleEndian.Uint32(buf[8:12])
	out.PageNum = PageNum(int32(binary.LittleEndian.Uint32(buf[12:16])))
	copy(out.Data[:], buf[pageHeaderSize:])
	return nil
}

// VerifyChecksum reports whether the stored checksum matches the data.
func (p *Page) VerifyChecksum() bool {
	return p.Checksum == p.ComputeChecksum()
}
