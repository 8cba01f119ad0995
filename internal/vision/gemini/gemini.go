// Package gemini calls the Gemini API with a response schema so the staging
// answer comes back as constrained JSON.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
	"go-ct-staging/internal/vision"
)

type Engine struct {
	apiKey string
	model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Invoke(ctx context.Context, img vision.Payload, q prompt.ModelQuery) (staging.RawOutput, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return staging.RawOutput{}, classify(err, "create client")
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.model)
	temperature := q.Temperature
	maxTokens := int32(q.MaxTokens)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  &maxTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(q.Schema),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(q.SystemPrompt)},
	}

	parts := []genai.Part{
		genai.Text(q.AnalysisPrompt),
		&genai.Blob{MIMEType: img.MediaType, Data: img.Data},
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return staging.RawOutput{}, classify(err, "generate content")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason == genai.BlockReasonSafety {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureContentPolicy,
			"model declined to analyze the image", nil)
	}

	txt, blocked := firstText(resp)
	if blocked {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureContentPolicy,
			"model declined to analyze the image", nil)
	}
	if txt == "" {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "empty response", nil)
	}

	var out staging.RawOutput
	if err := json.Unmarshal([]byte(stripCodeFences(txt)), &out); err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "decode response", err)
	}
	return out, nil
}

func firstText(resp *genai.GenerateContentResponse) (text string, blocked bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	for _, c := range resp.Candidates {
		if c.FinishReason == genai.FinishReasonSafety {
			return "", true
		}
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return strings.TrimSpace(string(t)), false
			}
		}
	}
	return "", false
}

func classify(err error, op string) *vision.Failure {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401 || gerr.Code == 403:
			return vision.NewFailure(vision.FailureAuth, op, err)
		case gerr.Code == 429:
			return vision.NewFailure(vision.FailureQuota, op, err)
		case gerr.Code >= 500:
			return vision.NewFailure(vision.FailureTransport, op, err)
		case gerr.Code >= 400:
			return vision.NewFailure(vision.FailureMalformed, op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return vision.NewFailure(vision.FailureTimeout, op, err)
	}
	return vision.NewFailure(vision.FailureTransport, op, err)
}

func responseSchema(s prompt.OutputSchema) *genai.Schema {
	confidence := &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"t_stage": {
				Type:        genai.TypeString,
				Enum:        s.TCodes,
				Description: "T stage based on primary tumor characteristics",
			},
			"n_stage": {
				Type:        genai.TypeString,
				Enum:        s.NCodes,
				Description: "N stage based on regional lymph node involvement",
			},
			"m_stage": {
				Type:        genai.TypeString,
				Enum:        s.MCodes,
				Description: "M stage based on distant metastases",
			},
			"confidence_scores": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"t_confidence":       confidence,
					"n_confidence":       confidence,
					"m_confidence":       confidence,
					"overall_confidence": confidence,
				},
				Required: []string{"t_confidence", "n_confidence", "m_confidence", "overall_confidence"},
			},
			"error": {
				Type:        genai.TypeString,
				Description: "Error message if the image is non-diagnostic or analysis fails",
			},
		},
		Required: []string{"confidence_scores"},
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
