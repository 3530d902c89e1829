package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/richinsley/comfyparams/extract"
)

const sampleConfig = `
log_level: debug
workers: 8
server:
  address: comfy.local
aliases:
  "KSampler (Efficient)": KSampler
  "Text Multiline": StringConstantMultiline
entry_types:
  samplers: [KSampler, "KSampler (Efficient)"]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := &Config{
		LogLevel: "debug",
		Workers:  8,
		MaxDepth: extract.DefaultMaxDepth,
		Server:   Server{Address: "comfy.local", Port: 8188, Protocol: "http"},
		Aliases: map[string]string{
			"KSampler (Efficient)": "KSampler",
			"Text Multiline":       "StringConstantMultiline",
		},
		EntryTypes: EntryTypes{Samplers: []string{"KSampler", "KSampler (Efficient)"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}

	level, err := cfg.Level()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v (%v)", level, err)
	}
	if got := cfg.Server.BaseURL(); got != "http://comfy.local:8188" {
		t.Errorf("Unexpected base URL %q", got)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []string{
		"workers: 0\n",
		"server:\n  port: 70000\n",
		"unknown_key: true\n",
		"log_level: loud\n",
		"aliases:\n  Foo: 3\n",
	}
	for _, data := range tests {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("Expected validation error for %q", data)
		} else if !strings.Contains(err.Error(), "config validation failed") {
			t.Errorf("Expected a validation error for %q, got %v", data, err)
		}
	}
}

func TestApplyAndEntries(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	reg := extract.DefaultRegistry()
	if err := cfg.Apply(reg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := reg.Lookup("KSampler (Efficient)"); !ok {
		t.Error("Expected alias to be registered")
	}

	entries := cfg.Entries()
	defaults := extract.DefaultEntryTypes()
	if diff := cmp.Diff(defaults.Loras, entries.Loras); diff != "" {
		t.Errorf("Expected default lora entries (-want +got):\n%s", diff)
	}

	ev := cfg.NewEvaluator(reg, slog.Default())
	res := ev.ParseJSON([]byte(`{
		"1": {"class_type": "KSampler (Efficient)", "inputs": {"steps": 12, "positive": ["2", 0]}},
		"2": {"class_type": "Text Multiline", "inputs": {"string": "a\nb", "strip_newlines": true}}
	}`))
	want := map[string]string{"steps": "12", "prompt": "a b"}
	if diff := cmp.Diff(want, res.GenParams); diff != "" {
		t.Errorf("GenParams mismatch (-want +got):\n%s", diff)
	}

	bad := Default()
	bad.Aliases["Broken"] = "NoSuchType"
	if err := bad.Apply(extract.NewRegistry()); err == nil {
		t.Error("Expected an error for an alias to an unknown type")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comfyparams.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Workers)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
