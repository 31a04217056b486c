package walog

import (
	"path/filepath"
	"testing"
)

type recordingReplayer struct {
	entries []Entry
}

func (r *recordingReplayer) Replay(e Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestAppendAssignsIncreasingLSNs(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "wal.log"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	var lsns []LSN
	for i := 0; i < 5; i++ {
		lsn, err := h.Append(FamilyMVCC, 1, []byte{byte(i)})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		lsns = append(lsns, lsn)
	}
	for i := 1; i < len(lsns); i++ {
		if lsns[i] <= lsns[i-1] {
			t.Fatalf("LSNs not strictly increasing: %v", lsns)
		}
	}
	if h.DurableTail() != lsns[len(lsns)-1] {
		t.Fatalf("DurableTail() = %v, want %v", h.DurableTail(), lsns[len(lsns)-1])
	}
}

func TestRecoverReplaysEntriesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := h.Append(FamilyBufferPool, byte(i), []byte{byte(i * 2)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rep := &recordingReplayer{}
	h.RegisterReplayer(rep)
	if err := h.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(rep.entries) != 3 {
		t.Fatalf("replayed %d entries, want 3", len(rep.entries))
	}
	for i, e := range rep.entries {
		if e.OpType != byte(i) || len(e.Payload) != 1 || e.Payload[0] != byte(i*2) {
			t.Fatalf("entry %d = %+v, mismatched", i, e)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReopenContinuesLSNSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	h1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last LSN
	for i := 0; i < 4; i++ {
		last, err = h1.Append(FamilyMVCC, 1, []byte("x"))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer h2.Close()

	next, err := h2.Append(FamilyMVCC, 2, []byte("y"))
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if next <= last {
		t.Fatalf("LSN after reopen = %v, want > %v", next, last)
	}
}

func TestRecoverAfterReopenSeesAllPriorEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	h1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := h1.Append(FamilyMVCC, byte(i), nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer h2.Close()

	rep := &recordingReplayer{}
	h2.RegisterReplayer(rep)
	if err := h2.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(rep.entries) != 5 {
		t.Fatalf("replayed %d entries after reopen, want 5", len(rep.entries))
	}
}
