// Package session implements spec.md §6/§9's session layer: per-connection
// variables, debug logging, and the top-level statement executor that ties
// the binder/rewriter/physical planner/executor pipeline together behind
// one Session.Execute call.
//
// Grounded on original_source's set_variable_executor.cpp (truthy/falsy
// string sets for sql_debug, enum validation for execution_mode) and
// sql_debug.cpp/session_event.cpp (per-session debug sink instead of a
// thread-local), per SPEC_FULL.md §E.3's supplemented-features list.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xzxg001/miniob-sub000/internal/rc"
)

// ExecMode is the session-level TUPLE_ITERATOR / CHUNK_ITERATOR switch
// (spec.md §6 "execution_mode").
type ExecMode int

const (
	TupleIterator ExecMode = iota
	ChunkIterator
)

func (m ExecMode) String() string {
	if m == ChunkIterator {
		return "CHUNK_ITERATOR"
	}
	return "TUPLE_ITERATOR"
}

var truthy = map[string]bool{"true": true, "on": true, "yes": true, "t": true, "1": true}
var falsy = map[string]bool{"false": true, "off": true, "no": true, "f": true, "0": true}

// parseBoolVar implements spec.md §6's sql_debug truthy/falsy string
// sets; any other non-empty token is true unless it parses as the number
// zero.
func parseBoolVar(value string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if truthy[v] {
		return true, nil
	}
	if falsy[v] {
		return false, nil
	}
	if v != "" {
		// any other non-empty token: a number is true when non-zero
		// (negative numbers included); a non-numeric token is true.
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n != 0, nil
		}
		return true, nil
	}
	return false, rc.Errorf(rc.VARIABLE_NOT_VALID, "not a boolean: %q", value)
}

// Vars holds the two session variables spec.md §6 names.
type Vars struct {
	SQLDebug      bool
	ExecutionMode ExecMode
}

// NewVars returns the documented defaults: debugging off, row-at-a-time
// execution.
func NewVars() *Vars {
	return &Vars{SQLDebug: false, ExecutionMode: TupleIterator}
}

// Set implements spec.md §6's SET VARIABLE name = value, returning
// VARIABLE_NOT_EXISTS for an unknown name and VARIABLE_NOT_VALID for a
// value that doesn't parse for that variable's type.
func (v *Vars) Set(name, value string) error {
	switch strings.ToLower(name) {
	case "sql_debug":
		b, err := parseBoolVar(value)
		if err != nil {
			return err
		}
		v.SQLDebug = b
		return nil
	case "execution_mode":
		switch strings.ToUpper(strings.TrimSpace(value)) {
		case "TUPLE_ITERATOR":
			v.ExecutionMode = TupleIterator
		case "CHUNK_ITERATOR":
			v.ExecutionMode = ChunkIterator
		default:
			return rc.Errorf(rc.VARIABLE_NOT_VALID, "execution_mode must be TUPLE_ITERATOR or CHUNK_ITERATOR, got %q", value)
		}
		return nil
	default:
		return rc.Errorf(rc.VARIABLE_NOT_EXISTS, "no such session variable %q", name)
	}
}

// Get returns the current string value of a variable, for SHOW-style
// introspection or debug-line rendering.
func (v *Vars) Get(name string) (string, error) {
	switch strings.ToLower(name) {
	case "sql_debug":
		if v.SQLDebug {
			return "true", nil
		}
		return "false", nil
	case "execution_mode":
		return v.ExecutionMode.String(), nil
	default:
		return "", rc.Errorf(rc.VARIABLE_NOT_EXISTS, "no such session variable %q", name)
	}
}

// DebugLog is a per-Session sink for "# "-prefixed debug lines (spec.md
// §6), replacing the original's thread-local current-session pointer
// with an explicit reference threaded through call sites (spec.md §9
// "Global mutable state").
type DebugLog struct {
	enabled func() bool
	lines   []string
}

// NewDebugLog binds a DebugLog to a live predicate (typically
// Vars.SQLDebug) so toggling sql_debug mid-session takes effect
// immediately.
func NewDebugLog(enabled func() bool) *DebugLog {
	return &DebugLog{enabled: enabled}
}

// Logf records a debug line iff debugging is currently enabled.
func (d *DebugLog) Logf(format string, args ...any) {
	if d == nil || d.enabled == nil || !d.enabled() {
		return
	}
	d.lines = append(d.lines, "# "+fmt.Sprintf(format, args...))
}

// Lines drains and returns every debug line recorded since the last
// drain, in the "# "-prefixed form spec.md §6 interleaves into the
// protocol response.
func (d *DebugLog) Lines() []string {
	if d == nil {
		return nil
	}
	out := d.lines
	d.lines = nil
	return out
}
