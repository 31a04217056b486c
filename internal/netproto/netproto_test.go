package netproto

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestFrameParseFrameRoundTrip(t *testing.T) {
	framed := Frame("SELECT * FROM t")
	if framed[len(framed)-1] != 0 {
		t.Fatalf("Frame must end with NUL, got %v", framed)
	}
	r := bufio.NewReader(bytes.NewReader(framed))
	sql, err := ParseFrame(r)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if sql != "SELECT * FROM t" {
		t.Fatalf("got %q", sql)
	}
}

func TestParseFrameTooLong(t *testing.T) {
	big := strings.Repeat("x", MaxRequestSize+1)
	r := bufio.NewReader(bytes.NewReader(Frame(big)))
	_, err := ParseFrame(r)
	if err == nil {
		t.Fatal("expected IOERR_TOO_LONG")
	}
}

func TestParseFrameEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, err := ParseFrame(r)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestResponseEncodeShape(t *testing.T) {
	resp := &Response{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "alice"}, {"2", "bob"}},
		Debug:   []string{"# plan: TABLE_GET(t)"},
		Status:  "SUCCESS",
	}
	out := resp.Encode()
	if out[len(out)-1] != 0 {
		t.Fatalf("Encode must end with NUL")
	}
	text := string(out[:len(out)-1])
	lines := strings.Split(text, "\n")
	if lines[0] != "id | name" {
		t.Fatalf("header line: %q", lines[0])
	}
	if lines[1] != "1 | alice" || lines[2] != "2 | bob" {
		t.Fatalf("data rows: %q %q", lines[1], lines[2])
	}
	if lines[3] != "# plan: TABLE_GET(t)" {
		t.Fatalf("debug line: %q", lines[3])
	}
	if lines[4] != "SUCCESS" {
		t.Fatalf("status line: %q", lines[4])
	}
}

func TestResponseEncodeNoColumns(t *testing.T) {
	resp := &Response{Status: "SUCCESS"}
	out := resp.Encode()
	if string(out) != "SUCCESS\x00" {
		t.Fatalf("got %q", out)
	}
}
