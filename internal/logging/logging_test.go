package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "driver", "VER")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "shown" || rec["driver"] != "VER" {
		t.Fatalf("record: %v", rec)
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("lap loaded", "lap", 12)
	if !strings.Contains(buf.String(), "lap=12") {
		t.Fatalf("text output: %q", buf.String())
	}
}
