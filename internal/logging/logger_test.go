package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAppendsToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cvreview.log")
	logger, err := New(path, "info")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("session.transition", "from", "idle", "to", "submitting")
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "session.transition") || !strings.Contains(text, "to=submitting") {
		t.Fatalf("unexpected log contents: %q", text)
	}
	if strings.Contains(text, "hidden") {
		t.Fatalf("debug line should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNilLoggerCloseIsSafe(t *testing.T) {
	var logger *Logger
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	if OrDefault(nil) != slog.Default() {
		t.Fatalf("expected default logger")
	}
}
