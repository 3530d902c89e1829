package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/richinsley/comfyparams/extract"
)

func sampleResult() *extract.Result {
	return &extract.Result{
		GenParams: map[string]string{
			extract.ParamSeed:  "42",
			extract.ParamSteps: "20",
		},
		Loras: "<lora:detail:0.5>",
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, "json", "", record("file", "a.json", sampleResult())); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"<lora:detail:0.5>"`) {
		t.Errorf("Expected lora tokens unescaped, got %s", buf.String())
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := map[string]interface{}{
		"file":       "a.json",
		"gen_params": map[string]interface{}{"seed": "42", "steps": "20"},
		"loras":      "<lora:detail:0.5>",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, "yaml", "", record("", "", sampleResult())); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	var got struct {
		GenParams map[string]string `yaml:"gen_params"`
		Loras     string            `yaml:"loras"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if got.GenParams["seed"] != "42" || got.Loras != "<lora:detail:0.5>" {
		t.Errorf("Unexpected YAML output:\n%s", buf.String())
	}
}

func TestRenderSelect(t *testing.T) {
	records := []interface{}{
		record("file", "a.json", sampleResult()),
		record("file", "b.json", &extract.Result{GenParams: map[string]string{"seed": "7"}}),
	}

	tests := []struct {
		name string
		sel  string
		want string
	}{
		{"single match", "$[1].gen_params.seed", "\"7\"\n"},
		{"many matches", "$[*].gen_params.seed", "[\n  \"42\",\n  \"7\"\n]\n"},
		{"no match", "$[*].gen_params.cfg", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := render(&buf, "json", tt.sel, records); err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, "json", "$[", sampleResult().Map()); err == nil {
		t.Error("Expected an invalid JSONPath expression to fail")
	}
	if err := render(&buf, "xml", "", sampleResult().Map()); err == nil {
		t.Error("Expected an unsupported format to fail")
	}
}
