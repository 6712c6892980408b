package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line emitted despite warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNew_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"service":"askcity"`) {
		t.Fatalf("service field missing: %q", buf.String())
	}
}

func TestComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "info", Output: &buf}), "cache")

	log.Info().Msg("tick")

	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Fatalf("component field missing: %q", buf.String())
	}
}
