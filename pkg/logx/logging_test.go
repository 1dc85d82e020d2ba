package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSetLevelReLevelsExistingLoggers(t *testing.T) {
	defer SetLevel("trace")
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	SetLevel("error")
	log.Debug("suppressed debug")
	log.Info("suppressed info")
	log.Error("kept error")
	if out := buf.String(); strings.Contains(out, "suppressed") || !strings.Contains(out, "kept error") {
		t.Fatalf("error-level gate not applied:\n%s", out)
	}

	SetLevel("debug")
	log.Debug("visible again")
	if !strings.Contains(buf.String(), "visible again") {
		t.Fatal("lowering the gate did not re-enable debug output")
	}
}

func TestWriterLevelFloor(t *testing.T) {
	defer SetLevel("trace")
	SetLevel("trace")
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Info("below floor")
	log.Warn("at floor")
	if out := buf.String(); strings.Contains(out, "below floor") || !strings.Contains(out, "at floor") {
		t.Fatalf("per-logger floor not applied:\n%s", out)
	}
}

func TestFieldsAndWith(t *testing.T) {
	defer SetLevel("trace")
	SetLevel("trace")
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "digest"))

	log.Info("delivered", Int64("subscriber", 7), Err(errors.New("partial")))
	out := buf.String()
	for _, want := range []string{`"comp":"digest"`, `"subscriber":7`, `"err":"partial"`, `"delivered"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s:\n%s", want, out)
		}
	}
}

func TestNopAndZeroValueAreSafe(t *testing.T) {
	var zero Logger
	zero.Info("ignored")
	Nop().Error("ignored", Err(errors.New("x")))
	if !zero.IsZero() {
		t.Fatal("zero value must report IsZero")
	}
	if Nop().IsZero() {
		t.Fatal("Nop logger is configured, not zero")
	}
}
