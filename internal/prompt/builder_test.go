package prompt

import (
	"strings"
	"testing"
)

func TestDefaultGuidelines(t *testing.T) {
	cfg, err := DefaultGuidelines()
	if err != nil {
		t.Fatalf("DefaultGuidelines failed: %v", err)
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		t.Error("embedded config has empty system_prompt")
	}
	if strings.TrimSpace(cfg.AnalysisPrompt) == "" {
		t.Error("embedded config has empty analysis_prompt")
	}
	if len(cfg.StagingGuidelines) == 0 {
		t.Error("embedded config has no staging guidelines")
	}
}

func TestParseGuidelines_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Malformed YAML", "system_prompt: [unclosed"},
		{"Missing system prompt", "analysis_prompt: analyze this"},
		{"Missing analysis prompt", "system_prompt: you are a radiologist"},
		{"Whitespace-only prompts", "system_prompt: \"  \"\nanalysis_prompt: \"  \""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGuidelines([]byte(tt.yaml)); err == nil {
				t.Error("ParseGuidelines accepted an invalid config")
			}
		})
	}
}

func TestBuilder_QueryIsDeterministic(t *testing.T) {
	cfg, err := DefaultGuidelines()
	if err != nil {
		t.Fatalf("DefaultGuidelines failed: %v", err)
	}

	a := NewBuilder(cfg).Query()
	b := NewBuilder(cfg).Query()

	if a.SystemPrompt != b.SystemPrompt {
		t.Error("system prompt differs between identical builds")
	}
	if a.AnalysisPrompt != b.AnalysisPrompt {
		t.Error("analysis prompt differs between identical builds")
	}
}

func TestBuilder_QueryShape(t *testing.T) {
	cfg, err := DefaultGuidelines()
	if err != nil {
		t.Fatalf("DefaultGuidelines failed: %v", err)
	}
	q := NewBuilder(cfg).Query()

	if q.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", q.Temperature)
	}
	if q.MaxTokens != 300 {
		t.Errorf("MaxTokens = %d, want 300", q.MaxTokens)
	}
	if q.Schema.Name != SchemaName {
		t.Errorf("Schema.Name = %q, want %q", q.Schema.Name, SchemaName)
	}
	if len(q.Schema.TCodes) != 8 || len(q.Schema.NCodes) != 4 || len(q.Schema.MCodes) != 4 {
		t.Errorf("schema enum sizes = (%d, %d, %d), want (8, 4, 4)",
			len(q.Schema.TCodes), len(q.Schema.NCodes), len(q.Schema.MCodes))
	}

	for _, code := range []string{"T1a", "T4"} {
		if !strings.Contains(q.SystemPrompt, code) {
			t.Errorf("system prompt missing guideline for %s", code)
		}
	}
}

func TestBuilder_Reload(t *testing.T) {
	cfg, err := DefaultGuidelines()
	if err != nil {
		t.Fatalf("DefaultGuidelines failed: %v", err)
	}
	b := NewBuilder(cfg)

	updated, err := ParseGuidelines([]byte("system_prompt: updated radiologist instructions\nanalysis_prompt: updated analysis request"))
	if err != nil {
		t.Fatalf("ParseGuidelines failed: %v", err)
	}
	b.Reload(updated)

	q := b.Query()
	if !strings.Contains(q.SystemPrompt, "updated radiologist instructions") {
		t.Errorf("system prompt not reloaded: %q", q.SystemPrompt)
	}
	if q.AnalysisPrompt != "updated analysis request" {
		t.Errorf("analysis prompt not reloaded: %q", q.AnalysisPrompt)
	}
}
