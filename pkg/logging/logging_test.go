package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	log.Debug().Msg("should not appear")
	log.Info().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug record leaked through info-level logger: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected info record in output, got: %s", out)
	}
}

func TestNewHonorsExplicitLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Level: "debug"})
	log.Debug().Msg("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("expected debug record when level=debug, got: %s", buf.String())
	}
}

func TestNewAttachesComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Component: "scheduler"})
	log.Info().Msg("tick")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["component"] != "scheduler" {
		t.Fatalf("expected component=scheduler field, got %+v", record)
	}
}

func TestAdapterEmitsAtRequestedLevel(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).Level(zerolog.DebugLevel)
	a := NewAdapter(base)

	a.Warn("careful now")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected level=warn, got %+v", record)
	}
	if record["message"] != "careful now" {
		t.Fatalf("expected message field, got %+v", record)
	}
}

func TestAdapterMergesFieldMap(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	a := NewAdapter(base)

	a.Info("ticket updated", map[string]any{"ticket_id": "T-1", "status": "in_progress"})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["ticket_id"] != "T-1" || record["status"] != "in_progress" {
		t.Fatalf("expected merged fields, got %+v", record)
	}
}
