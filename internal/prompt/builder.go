// Package prompt constructs the fixed, schema-constrained query sent to the
// vision model. Construction is deterministic: the same guideline
// configuration always yields byte-identical prompts and schema.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"go-ct-staging/internal/staging"
)

//go:embed guidelines.yaml
var defaultGuidelines []byte

// SchemaName is the function/tool name the model is forced to call.
const SchemaName = "analyze_nsclc_staging"

// ModelQuery is the immutable instruction package for one model invocation:
// the natural-language prompts plus the structured-output schema.
type ModelQuery struct {
	SystemPrompt   string
	AnalysisPrompt string
	Temperature    float32
	MaxTokens      int
	Schema         OutputSchema
}

// OutputSchema enumerates the allowed structured-output values. Engines
// render it into their provider-specific schema format.
type OutputSchema struct {
	Name        string
	Description string
	TCodes      []string
	NCodes      []string
	MCodes      []string
}

// GuidelineConfig is the YAML staging-guideline configuration.
type GuidelineConfig struct {
	SystemPrompt         string                       `yaml:"system_prompt"`
	AnalysisPrompt       string                       `yaml:"analysis_prompt"`
	StagingGuidelines    map[string]map[string]string `yaml:"staging_guidelines"`
	AnalysisInstructions []string                     `yaml:"analysis_instructions"`
	QualityIndicators    []string                     `yaml:"quality_indicators"`
	OutputFormat         []string                     `yaml:"output_format"`
}

// ParseGuidelines decodes and checks a guideline config. A malformed config
// is a startup-time fatal condition, never a per-request failure.
func ParseGuidelines(data []byte) (GuidelineConfig, error) {
	var cfg GuidelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return GuidelineConfig{}, fmt.Errorf("parse guideline config: %w", err)
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return GuidelineConfig{}, fmt.Errorf("guideline config: system_prompt is empty")
	}
	if strings.TrimSpace(cfg.AnalysisPrompt) == "" {
		return GuidelineConfig{}, fmt.Errorf("guideline config: analysis_prompt is empty")
	}
	return cfg, nil
}

// DefaultGuidelines returns the embedded guideline configuration.
func DefaultGuidelines() (GuidelineConfig, error) {
	return ParseGuidelines(defaultGuidelines)
}

// Builder produces ModelQuery values from a guideline configuration.
type Builder struct {
	mu    sync.RWMutex
	query ModelQuery
}

// NewBuilder builds the query once from the given configuration.
func NewBuilder(cfg GuidelineConfig) *Builder {
	return &Builder{query: buildQuery(cfg)}
}

// Query returns the fixed model query. The value is shared and must not be
// mutated by callers.
func (b *Builder) Query() ModelQuery {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.query
}

// Reload swaps in a new guideline configuration at runtime.
func (b *Builder) Reload(cfg GuidelineConfig) {
	q := buildQuery(cfg)
	b.mu.Lock()
	b.query = q
	b.mu.Unlock()
}

func buildQuery(cfg GuidelineConfig) ModelQuery {
	return ModelQuery{
		SystemPrompt:   buildSystemPrompt(cfg),
		AnalysisPrompt: strings.TrimSpace(cfg.AnalysisPrompt),
		Temperature:    0.2,
		MaxTokens:      300,
		Schema: OutputSchema{
			Name:        SchemaName,
			Description: "Analyze a chest CT image for NSCLC staging according to AJCC 8th edition",
			TCodes:      staging.TCodes(),
			NCodes:      staging.NCodes(),
			MCodes:      staging.MCodes(),
		},
	}
}

// buildSystemPrompt folds the guideline sections into one system instruction.
// Map sections are emitted in sorted key order so the prompt is stable across
// runs.
func buildSystemPrompt(cfg GuidelineConfig) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(cfg.SystemPrompt))

	if len(cfg.StagingGuidelines) > 0 {
		b.WriteString("\n\n## TNM Staging Guidelines:\n")
		for _, section := range sortedKeys(cfg.StagingGuidelines) {
			fmt.Fprintf(&b, "\n### %s:\n", strings.ToUpper(strings.ReplaceAll(section, "_", " ")))
			stages := cfg.StagingGuidelines[section]
			for _, stage := range sortedKeys(stages) {
				fmt.Fprintf(&b, "- %s: %s\n", stage, stages[stage])
			}
		}
	}

	writeListSection(&b, "Analysis Instructions", cfg.AnalysisInstructions, true)
	writeListSection(&b, "Quality Indicators", cfg.QualityIndicators, false)
	writeListSection(&b, "Output Format", cfg.OutputFormat, false)

	return b.String()
}

func writeListSection(b *strings.Builder, title string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n## %s:\n", title)
	for i, item := range items {
		if numbered {
			fmt.Fprintf(b, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(b, "- %s\n", item)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
