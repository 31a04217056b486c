// Package rc defines the single result-code type shared by every fallible
// operation in this module, following the "no global exception" policy
// described by the storage and query layers it serves.
//
// Every subsystem returns an RC (or an (T, RC) pair) instead of a
// language-level error type hierarchy. RC implements the error interface so
// it composes with fmt.Errorf's %w wrapping the way tinySQL's own
// storage/pager packages wrap plain sentinel errors.
package rc

import "fmt"

// RC is a result code. The zero value is SUCCESS.
type RC int

const (
	SUCCESS RC = iota

	// I/O
	IOERR_READ
	IOERR_WRITE
	IOERR_SEEK
	IOERR_CLOSE
	IOERR_ACCESS
	IOERR_TOO_LONG

	// Buffer pool
	BUFFERPOOL_NOBUF
	BUFFERPOOL_OPEN
	BUFFERPOOL_INVALID_PAGE_NUM

	// Schema
	SCHEMA_DB_NOT_EXIST
	SCHEMA_DB_EXIST
	SCHEMA_TABLE_NOT_EXIST
	SCHEMA_TABLE_EXIST
	SCHEMA_FIELD_MISSING
	SCHEMA_FIELD_NOT_EXIST
	SCHEMA_FIELD_TYPE_MISMATCH
	SCHEMA_INDEX_NAME_REPEAT

	// SQL
	SQL_SYNTAX
	INVALID_ARGUMENT
	UNIMPLEMENTED
	UNSUPPORTED
	VARIABLE_NOT_EXISTS
	VARIABLE_NOT_VALID

	// Record / transaction
	RECORD_EOF
	RECORD_INVISIBLE
	RECORD_NOT_EXIST
	LOCKED_CONCURRENCY_CONFLICT
	LOCKED_UNLOCK

	// Internal
	INTERNAL
	NOMEM
	NOTFOUND
	FILE_NOT_EXIST
)

var names = map[RC]string{
	SUCCESS:                     "SUCCESS",
	IOERR_READ:                  "IOERR_READ",
	IOERR_WRITE:                 "IOERR_WRITE",
	IOERR_SEEK:                  "IOERR_SEEK",
	IOERR_CLOSE:                 "IOERR_CLOSE",
	IOERR_ACCESS:                "IOERR_ACCESS",
	IOERR_TOO_LONG:              "IOERR_TOO_LONG",
	BUFFERPOOL_NOBUF:            "BUFFERPOOL_NOBUF",
	BUFFERPOOL_OPEN:             "BUFFERPOOL_OPEN",
	BUFFERPOOL_INVALID_PAGE_NUM: "BUFFERPOOL_INVALID_PAGE_NUM",
	SCHEMA_DB_NOT_EXIST:         "SCHEMA_DB_NOT_EXIST",
	SCHEMA_DB_EXIST:             "SCHEMA_DB_EXIST",
	SCHEMA_TABLE_NOT_EXIST:      "SCHEMA_TABLE_NOT_EXIST",
	SCHEMA_TABLE_EXIST:          "SCHEMA_TABLE_EXIST",
	SCHEMA_FIELD_MISSING:        "SCHEMA_FIELD_MISSING",
	SCHEMA_FIELD_NOT_EXIST:      "SCHEMA_FIELD_NOT_EXIST",
	SCHEMA_FIELD_TYPE_MISMATCH:  "SCHEMA_FIELD_TYPE_MISMATCH",
	SCHEMA_INDEX_NAME_REPEAT:    "SCHEMA_INDEX_NAME_REPEAT",
	SQL_SYNTAX:                  "SQL_SYNTAX",
	INVALID_ARGUMENT:            "INVALID_ARGUMENT",
	UNIMPLEMENTED:               "UNIMPLEMENTED",
	UNSUPPORTED:                 "UNSUPPORTED",
	VARIABLE_NOT_EXISTS:         "VARIABLE_NOT_EXISTS",
	VARIABLE_NOT_VALID:          "VARIABLE_NOT_VALID",
	RECORD_EOF:                  "RECORD_EOF",
	RECORD_INVISIBLE:            "RECORD_INVISIBLE",
	RECORD_NOT_EXIST:            "RECORD_NOT_EXIST",
	LOCKED_CONCURRENCY_CONFLICT: "LOCKED_CONCURRENCY_CONFLICT",
	LOCKED_UNLOCK:               "LOCKED_UNLOCK",
	INTERNAL:                    "INTERNAL",
	NOMEM:                       "NOMEM",
	NOTFOUND:                    "NOTFOUND",
	FILE_NOT_EXIST:              "FILE_NOT_EXIST",
}

func (c RC) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("RC(%d)", int(c))
}

// Error implements the error interface so an RC can be returned, wrapped
// with fmt.Errorf's %w, and compared with errors.Is.
func (c RC) Error() string {
	return c.String()
}

// Ok reports whether c is SUCCESS.
func (c RC) Ok() bool { return c == SUCCESS }

// StatusLine renders the protocol status line format from spec.md §6:
// "SUCCESS" or "<code> > <message>".
func StatusLine(c RC, message string) string {
	if c == SUCCESS {
		return "SUCCESS"
	}
	if message == "" {
		message = c.String()
	}
	return fmt.Sprintf("%s > %s", c.String(), message)
}

// Errorf wraps an RC with a formatted message, still comparable via
// errors.Is(err, rc.SomeCode) because RC's underlying %w chain preserves it.
func Errorf(c RC, format string, args ...any) error {
	return fmt.Errorf("%w: %s", c, fmt.Sprintf(format, args...))
}
