package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Debug: true, Format: "json", Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := For("mirror")
	l.Debug().Str("url", "https://a.example").Msg("instance check failed")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["component"] != "mirror" {
		t.Errorf("component = %v, want mirror", line["component"])
	}
	if line["message"] != "instance check failed" {
		t.Errorf("message = %v, want instance check failed", line["message"])
	}
}

func TestInitQuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Out: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn level, got %q", buf.String())
	}

	log.Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Error("warn should be logged")
	}
}
