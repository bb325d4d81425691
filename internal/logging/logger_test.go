package logging

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, slog.LevelInfo)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("schedule loaded", Op("schedule.reload"), Err(errors.New("boom")))
	logger.Debug("dropped below level")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"msg":"schedule loaded"`, `"op":"schedule.reload"`, `"error":"boom"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("log missing %s: %s", want, text)
		}
	}
	if strings.Contains(text, "dropped below level") {
		t.Fatalf("debug line should be filtered: %s", text)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatalf("expected debug")
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("expected info fallback")
	}
}
