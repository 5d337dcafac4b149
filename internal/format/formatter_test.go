package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tinytelemetry/logbridge/internal/model"
)

func TestFormat_CanonicalLine(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	f := New(&console)

	got := f.Format(model.LogRecord{
		Name:  "a",
		Level: model.SeverityError,
		Stamp: model.Stamp{Sec: 10},
		Msg:   "boom",
	})
	if want := "10.000000 ERROR [node name: a] boom\n"; got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
	if console.String() != "boom\n" {
		t.Fatalf("console = %q, want %q", console.String(), "boom\n")
	}
}

func TestFormat_FractionalSeconds(t *testing.T) {
	t.Parallel()

	got := Line(model.LogRecord{
		Name:  "lidar",
		Level: model.SeverityInfo,
		Stamp: model.Stamp{Sec: 1700000000, Nanosec: 123456789},
		Msg:   "scan complete",
	})
	if !strings.HasPrefix(got, "1700000000.123457 INFO ") {
		t.Fatalf("Line() = %q, want six fractional digits", got)
	}
}

func TestFormat_SeverityLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level model.Severity
		label string
	}{
		{model.SeverityFatal, " FATAL "},
		{model.SeverityError, " ERROR "},
		{model.SeverityWarn, " WARN "},
		{model.SeverityInfo, " INFO "},
		{model.SeverityDebug, " DEBUG "},
	}
	for _, tt := range tests {
		line := Line(model.LogRecord{Name: "n", Level: tt.level, Msg: "m"})
		if strings.Count(line, tt.label) != 1 {
			t.Errorf("Line(level=%d) = %q, want exactly one %q", tt.level, line, tt.label)
		}
	}
}

func TestFormat_OutOfRangeSeverity(t *testing.T) {
	t.Parallel()

	line := Line(model.LogRecord{Name: "n", Level: model.Severity(42), Stamp: model.Stamp{Sec: 1}, Msg: "m"})
	if want := "1.000000 42 [node name: n] m\n"; line != want {
		t.Fatalf("Line() = %q, want %q", line, want)
	}
	for _, label := range []string{"FATAL", "ERROR", "WARN", "INFO", "DEBUG"} {
		if strings.Contains(line, label) {
			t.Fatalf("Line() = %q contains label %q", line, label)
		}
	}
}

func TestFormat_Deterministic(t *testing.T) {
	t.Parallel()

	f := New(nil)
	rec := model.LogRecord{Name: "x", Level: model.SeverityWarn, Stamp: model.Stamp{Sec: 5, Nanosec: 5}, Msg: "same"}
	if a, b := f.Format(rec), f.Format(rec); a != b {
		t.Fatalf("Format not deterministic: %q vs %q", a, b)
	}
}

func TestFormat_MessageVerbatim(t *testing.T) {
	t.Parallel()

	msg := "multi\nline [node name: fake] 100%"
	line := Line(model.LogRecord{Name: "n", Level: model.SeverityInfo, Msg: msg})
	if !strings.HasSuffix(line, "] "+msg+"\n") {
		t.Fatalf("Line() = %q, message not verbatim", line)
	}
}
