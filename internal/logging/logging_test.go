package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponentSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	root := New()
	root.SetOutput(&buf)
	logger := root.WithComponent("store")

	logger.Warn("drained")

	output := buf.String()
	if !strings.Contains(output, "[store]") {
		t.Errorf("expected component in log, got: %s", output)
	}
	if !strings.Contains(output, "session="+root.Session()) {
		t.Errorf("expected session id in log, got: %s", output)
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithSession("")
	logger.SetOutput(&buf)

	logger.Error("snapshot failed", map[string]interface{}{
		"tasks":   3,
		"counter": 7,
	})

	output := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(output, "snapshot failed counter=7 tasks=3") {
		t.Errorf("unexpected line: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" Info ":  LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOpenAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "todo.log")

	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	logger.Info("first")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Info("after close")

	logger, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	logger.Info("second")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "first") || !strings.Contains(content, "second") {
		t.Errorf("missing entries: %s", content)
	}
	if strings.Contains(content, "after close") {
		t.Error("entry written after Close")
	}
}
