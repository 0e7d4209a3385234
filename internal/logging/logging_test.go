package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "")
	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", log.GetLevel())
	}
	log.Debug().Msg("hidden")
	log.Info().Str("table", "donors").Msg("loaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if rec["message"] != "loaded" || rec["table"] != "donors" || rec["service"] != "rfmdash" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	if got := NewWithWriter(&buf, "development", "").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("development level = %s, want debug", got)
	}
	if got := NewWithWriter(&buf, "production", "WARN").GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("explicit level = %s, want warn", got)
	}
	if got := NewWithWriter(&buf, "production", "loud").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("invalid level should keep default, got %s", got)
	}
}

func TestDevelopmentUsesConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "development", "")
	logger.Info().Msg("hello")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("development output should be human readable, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("missing message: %q", buf.String())
	}
}
