package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	levels := []struct {
		log   func(string, ...interface{})
		label string
	}{
		{logger.Debug, "[DEBUG]"},
		{logger.Info, "[INFO]"},
		{logger.Warn, "[WARN]"},
		{logger.Error, "[ERROR]"},
	}
	for _, lvl := range levels {
		lvl.log("message at %s", lvl.label)
		if !strings.Contains(buf.String(), lvl.label) || !strings.Contains(buf.String(), "message at "+lvl.label) {
			t.Errorf("Logging at %s failed, got: %s", lvl.label, buf.String())
		}
		buf.Reset()
	}

	// Fields are rendered sorted by key
	logger.WithFields(map[string]interface{}{
		"zeta":  1,
		"alpha": "x",
	}).Info("Message with fields")
	output := buf.String()
	if !strings.Contains(output, "alpha=x zeta=1 Message with fields") {
		t.Errorf("Expected sorted fields before the message, got: %s", output)
	}
	buf.Reset()

	// Level filtering applies to derived loggers too
	derived := logger.WithField("component", "merge")
	logger.SetLevel(LevelError)
	derived.Info("should not appear")
	derived.Error("should appear")
	output = buf.String()
	if strings.Contains(output, "should not appear") || !strings.Contains(output, "component=merge should appear") {
		t.Errorf("Level filtering failed, got: %s", output)
	}

	if derived.GetLevel() != LevelError {
		t.Errorf("Expected derived logger to share level, got %v", derived.GetLevel())
	}
}

func TestFatalUsesExitFunc(t *testing.T) {
	var buf bytes.Buffer
	code := -1

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithExitFunc(func(c int) { code = c }),
	)
	logger.Fatal("cannot continue")

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] cannot continue") {
		t.Errorf("Expected fatal message, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"Error":   LevelError,
		"fatal":   LevelFatal,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.GetLevel() <= LevelFatal {
		t.Error("Expected discard logger to filter every level")
	}
}

func TestDefaultLogger(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelInfo),
	))

	Info("Global info message")
	if !strings.Contains(buf.String(), "[INFO] Global info message") {
		t.Errorf("Global info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	WithField("global", true).Info("Global with field")
	if !strings.Contains(buf.String(), "global=true Global with field") {
		t.Errorf("Global logging with field failed, got: %s", buf.String())
	}
	buf.Reset()

	Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug should be filtered at info level, got: %s", buf.String())
	}
}
