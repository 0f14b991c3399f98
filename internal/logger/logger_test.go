package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "drive-api", "info")
	log.Info("drive started", "user_id", "user-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["message"] != "drive started" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
	if entry["service"] != "drive-api" {
		t.Fatalf("unexpected service: %v", entry["service"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("expected timestamp key")
	}
	if entry["user_id"] != "user-1" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "drive-api", "info")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be filtered")
	}
}
