package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "info", "json")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Info("policies loaded", "count", 3)

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
		}
		if rec["msg"] != "policies loaded" {
			t.Errorf("msg = %v, want policies loaded", rec["msg"])
		}
		if rec["service"] != "farekeeper" {
			t.Errorf("service = %v, want farekeeper", rec["service"])
		}
	})

	t.Run("text format filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, "warn", "text")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Info("hidden")
		logger.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info record logged at warn level: %s", out)
		}
		if !strings.Contains(out, "shown") {
			t.Errorf("warn record missing: %s", out)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		if _, err := New(&bytes.Buffer{}, "loud", "json"); err == nil {
			t.Error("expected error for unsupported level")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
