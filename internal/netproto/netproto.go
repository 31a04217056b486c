// Package netproto specifies the text-framed request/response protocol
// spec.md §6 describes for a SQL client-server connection, without
// implementing the listener itself (the listener is out of scope; only
// the wire shape is): a NUL-terminated request, and a response of an
// optional column-header line, zero or more data rows, a status line,
// and a trailing NUL.
//
// Grounded on tinySQL's cmd/server/main.go request/response shaping
// (execRequest/queryResponse JSON envelopes around one SQL string and a
// columns+rows result), redesigned from JSON-over-HTTP to spec.md §6's
// NUL-terminated plain-text framing.
package netproto

import (
	"bufio"
	"io"
	"strings"

	"github.com/xzxg001/miniob-sub000/internal/rc"
)

// MaxRequestSize is spec.md §6's request size cap; a request exceeding
// it yields IOERR_TOO_LONG and the caller is expected to close the
// connection.
const MaxRequestSize = 8 * 1024

// ColumnSeparator joins column names (header line) and cell values
// (data rows) in the response body.
const ColumnSeparator = " | "

// Frame encodes a client request: the SQL text followed by a single NUL
// byte.
func Frame(sql string) []byte {
	out := make([]byte, 0, len(sql)+1)
	out = append(out, sql...)
	out = append(out, 0)
	return out
}

// ParseFrame reads one NUL-terminated request from r, enforcing
// MaxRequestSize (spec.md §6: "Maximum request size 8 KiB; oversize
// yields IOERR_TOO_LONG and connection closes").
func ParseFrame(r *bufio.Reader) (string, error) {
	line, err := r.ReadString(0)
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		return "", rc.Errorf(rc.IOERR_READ, "netproto: read request: %v", err)
	}
	sql := strings.TrimSuffix(line, "\x00")
	if len(sql) > MaxRequestSize {
		return "", rc.IOERR_TOO_LONG
	}
	return sql, nil
}

// Response renders one statement's columns/rows/debug-lines/status into
// the wire form spec.md §6 describes: an optional header line, zero or
// more data rows, any interleaved "# "-prefixed debug lines, then the
// status line, terminated by a single NUL byte.
type Response struct {
	Columns []string
	Rows    [][]string
	Debug   []string
	Status  string
}

// Encode renders r into the NUL-terminated wire form.
func (r *Response) Encode() []byte {
	var b strings.Builder
	if len(r.Columns) > 0 {
		b.WriteString(strings.Join(r.Columns, ColumnSeparator))
		b.WriteByte('\n')
	}
	for _, row := range r.Rows {
		b.WriteString(strings.Join(row, ColumnSeparator))
		b.WriteByte('\n')
	}
	for _, line := range r.Debug {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(r.Status)
	out := []byte(b.String())
	out = append(out, 0)
	return out
}
