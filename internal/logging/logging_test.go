package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestJSONOutputCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    &buf,
		Component: "codec",
	})

	log.Info("snapshot built", "candidates", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "codec" {
		t.Errorf("component = %v, want codec", entry["component"])
	}
	if entry["msg"] != "snapshot built" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: LevelWarn, Output: &buf})

	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info line emitted at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn line missing")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Format: FormatJSON, Output: &buf, Component: "bridge"})

	log.WithComponent("syncer").Info("pushed")

	// The child component attribute wins for readers keying on it.
	if !strings.Contains(buf.String(), `"component":"syncer"`) {
		t.Errorf("child component missing: %q", buf.String())
	}
}
