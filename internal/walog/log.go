// Package walog implements the append-only write-ahead log and replayer
// registry described by spec.md §4.3. It is the sole writer of LSNs;
// buffer-pool and transaction subsystems register Replayers and call
// Append through their own op-specific helpers.
//
// Grounded on tinySQL's internal/storage/pager/wal.go (record framing,
// LSN sequencing, magic/version header) and recovery.go (ordered replay
// loop), redesigned around spec.md's two independent op families
// (buffer-pool ops, MVCC ops) instead of tinySQL's whole-page-image
// physical logging.
package walog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// LSN is a 64-bit signed, globally monotonically increasing log sequence
// number (spec.md §3).
type LSN int64

// OpFamily tags which subsystem produced a log entry (spec.md §3: "buffer
// pool ops ... and MVCC ops ... are two independent op families").
type OpFamily uint8

const (
	FamilyBufferPool OpFamily = 1
	FamilyMVCC       OpFamily = 2
)

// Entry is a single (LSN, payload) log record (spec.md §3).
type Entry struct {
	LSN     LSN
	Family  OpFamily
	OpType  byte
	Payload []byte
}

// Replayer is implemented by subsystems that want a callback during
// recovery replay, in LSN order (spec.md §4.3).
type Replayer interface {
	// Replay is invoked once per log entry in ascending LSN order. The
	// replayer inspects Family/OpType and decides whether to act.
	Replay(e Entry) error
}

// Handler is the single-writer append-only log (spec.md §4.3). All
// appends are serialized so LSNs are returned strictly in order.
type Handler struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	path      string
	nextLSN   LSN
	replayers []Replayer
}

const magic = "MOBWAL01"

// Open opens (or creates) the log file at path.
func Open(path string) (*Handler, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}
	h := &Handler{f: f, path: path, w: bufio.NewWriter(f)}
	if err := h.scanForNextLSN(); err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

// RegisterReplayer adds a replayer consulted during Recover.
func (h *Handler) RegisterReplayer(r Replayer) {
	h.replayers = append(h.replayers, r)
}

// entry wire format:
//
//	[0:8]   LSN            int64 LE
//	[8]     Family         1 byte
//	[9]     OpType         1 byte
//	[10:14] PayloadLen     uint32 LE
//	[14:14+len] Payload
//	[14+len:18+len] CRC32  over bytes [0:14+len]
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 14+len(e.Payload)+4)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.LSN))
	buf[8] = byte(e.Family)
	buf[9] = e.OpType
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(e.Payload)))
	copy(buf[14:], e.Payload)
	crc := crc32.ChecksumIEEE(buf[:14+len(e.Payload)])
	binary.LittleEndian.PutUint32(buf[14+len(e.Payload):], crc)
	return buf
}

func decodeEntry(r io.Reader) (Entry, error) {
	var head [14]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Entry{}, err
	}
	payloadLen := binary.LittleEndian.Uint32(head[10:14])
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Entry{}, err
		}
	}
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return Entry{}, err
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf[:])
	full := append(append([]byte{}, head[:]...), payload...)
	if crc32.ChecksumIEEE(full) != wantCRC {
		return Entry{}, fmt.Errorf("walog: corrupt entry (CRC mismatch)")
	}
	e := Entry{
		LSN:     LSN(binary.LittleEndian.Uint64(head[0:8])),
		Family:  OpFamily(head[8]),
		OpType:  head[9],
		Payload: payload,
	}
	return e, nil
}

func (h *Handler) scanForNextLSN() error {
	if _, err := h.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(h.f)
	var last LSN
	for {
		e, err := decodeEntry(r)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			// Torn tail: stop scanning, treat as end of valid log.
			break
		}
		last = e.LSN
	}
	h.nextLSN = last + 1
	if _, err := h.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	h.w = bufio.NewWriter(h.f)
	return nil
}

// Append assigns the next LSN to e, durably writes it (fsync), and returns
// the assigned LSN. Appends are serialized by h.mu so LSNs are returned in
// strictly increasing order (spec.md §5).
func (h *Handler) Append(family OpFamily, opType byte, payload []byte) (LSN, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lsn := h.nextLSN
	e := Entry{LSN: lsn, Family: family, OpType: opType, Payload: payload}
	buf := encodeEntry(e)
	if _, err := h.w.Write(buf); err != nil {
		return 0, fmt.Errorf("walog: append: %w", err)
	}
	if err := h.w.Flush(); err != nil {
		return 0, fmt.Errorf("walog: flush: %w", err)
	}
	if err := h.f.Sync(); err != nil {
		return 0, fmt.Errorf("walog: sync: %w", err)
	}
	h.nextLSN = lsn + 1
	return lsn, nil
}

// DurableTail returns the LSN of the last durably-appended entry, used by
// the WAL invariant checks (spec.md §8 #5).
func (h *Handler) DurableTail() LSN {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextLSN - 1
}

// Recover replays every entry in the log, in LSN order (always true since
// entries are appended in order), to every registered replayer.
func (h *Handler) Recover() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(h.f)
	for {
		e, err := decodeEntry(r)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			break // torn tail, stop replay here
		}
		for _, rep := range h.replayers {
			if rerr := rep.Replay(e); rerr != nil {
				return rerr
			}
		}
	}
	if _, err := h.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	h.w = bufio.NewWriter(h.f)
	return nil
}

// Close flushes and closes the underlying file.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.w.Flush(); err != nil {
		return err
	}
	return h.f.Close()
}
