package session

import (
	"errors"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/rc"
)

func TestVarsDefaults(t *testing.T) {
	v := NewVars()
	if v.SQLDebug {
		t.Fatal("sql_debug should default to false")
	}
	if v.ExecutionMode != TupleIterator {
		t.Fatal("execution_mode should default to TUPLE_ITERATOR")
	}
}

func TestVarsSetSQLDebugTruthyFalsy(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"true", true}, {"on", true}, {"yes", true}, {"t", true}, {"1", true},
		{"false", false}, {"off", false}, {"no", false}, {"f", false}, {"0", false},
		{"TRUE", true}, {"  On ", true},
		{"5", true},
	}
	for _, c := range cases {
		v := NewVars()
		if err := v.Set("sql_debug", c.in); err != nil {
			t.Fatalf("Set(%q): %v", c.in, err)
		}
		if v.SQLDebug != c.want {
			t.Errorf("Set(sql_debug, %q) = %v, want %v", c.in, v.SQLDebug, c.want)
		}
	}
}

func TestVarsSetSQLDebugInvalid(t *testing.T) {
	v := NewVars()
	err := v.Set("sql_debug", "")
	if !errors.Is(err, rc.VARIABLE_NOT_VALID) {
		t.Fatalf("expected VARIABLE_NOT_VALID, got %v", err)
	}
}

func TestVarsSetSQLDebugNegativeNumberIsTrue(t *testing.T) {
	v := NewVars()
	if err := v.Set("sql_debug", "-3"); err != nil {
		t.Fatalf("Set(sql_debug, -3): %v", err)
	}
	if !v.SQLDebug {
		t.Fatal("a negative non-zero number should enable sql_debug")
	}
}

func TestVarsSetExecutionMode(t *testing.T) {
	v := NewVars()
	if err := v.Set("execution_mode", "chunk_iterator"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v.ExecutionMode != ChunkIterator {
		t.Fatal("expected ChunkIterator")
	}
	if got, _ := v.Get("execution_mode"); got != "CHUNK_ITERATOR" {
		t.Fatalf("Get returned %q", got)
	}
}

func TestVarsSetExecutionModeInvalid(t *testing.T) {
	v := NewVars()
	err := v.Set("execution_mode", "PARALLEL")
	if !errors.Is(err, rc.VARIABLE_NOT_VALID) {
		t.Fatalf("expected VARIABLE_NOT_VALID, got %v", err)
	}
}

func TestVarsUnknownName(t *testing.T) {
	v := NewVars()
	if err := v.Set("bogus", "1"); !errors.Is(err, rc.VARIABLE_NOT_EXISTS) {
		t.Fatalf("expected VARIABLE_NOT_EXISTS, got %v", err)
	}
	if _, err := v.Get("bogus"); !errors.Is(err, rc.VARIABLE_NOT_EXISTS) {
		t.Fatalf("expected VARIABLE_NOT_EXISTS, got %v", err)
	}
}

func TestDebugLogRespectsToggle(t *testing.T) {
	enabled := false
	log := NewDebugLog(func() bool { return enabled })
	log.Logf("should not appear")
	if lines := log.Lines(); len(lines) != 0 {
		t.Fatalf("expected no lines while disabled, got %v", lines)
	}
	enabled = true
	log.Logf("hello %d", 1)
	lines := log.Lines()
	if len(lines) != 1 || lines[0] != "# hello 1" {
		t.Fatalf("got %v", lines)
	}
	// Lines drains; a second call returns nothing new.
	if lines := log.Lines(); len(lines) != 0 {
		t.Fatalf("expected drained log, got %v", lines)
	}
}

func TestDebugLogNilSafe(t *testing.T) {
	var log *DebugLog
	log.Logf("no panic please")
	if lines := log.Lines(); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}
