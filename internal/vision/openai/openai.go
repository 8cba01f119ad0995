// Package openai calls the OpenAI chat-completions API with a forced tool
// call so the staging answer comes back as schema-constrained JSON.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
	"go-ct-staging/internal/vision"
)

const endpoint = "https://api.openai.com/v1/chat/completions"

type Engine struct {
	apiKey string
	model  string
	httpc  *http.Client
}

func New(apiKey, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// First bytes can take a long time on vision requests; the per-attempt
		// deadline lives in the caller's context, not here.
		ResponseHeaderTimeout: 4 * time.Minute,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
	}
	return &Engine{
		apiKey: apiKey,
		model:  model,
		httpc:  &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g. for tests).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	Tools       []tool        `json:"tools"`
	ToolChoice  toolChoice    `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (e *Engine) Invoke(ctx context.Context, img vision.Payload, q prompt.ModelQuery) (staging.RawOutput, error) {
	dataURL := "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	choice := toolChoice{Type: "function"}
	choice.Function.Name = q.Schema.Name

	body := chatRequest{
		Model:       e.model,
		Temperature: q.Temperature,
		MaxTokens:   q.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: q.SystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: q.AnalysisPrompt},
			}},
		},
		Tools: []tool{{
			Type: "function",
			Function: function{
				Name:        q.Schema.Name,
				Description: q.Schema.Description,
				Parameters:  schemaJSON(q.Schema),
			},
		}},
		ToolChoice: choice,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return staging.RawOutput{}, vision.NewFailure(vision.FailureTimeout, "model call deadline exceeded", ctx.Err())
		}
		return staging.RawOutput{}, vision.NewFailure(vision.FailureTransport, "model call failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureTransport, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return staging.RawOutput{}, statusFailure(resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "decode response", err)
	}
	if len(out.Choices) == 0 {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "empty response", nil)
	}

	choice0 := out.Choices[0]
	if choice0.FinishReason == "content_filter" {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureContentPolicy,
			"model declined to analyze the image", nil)
	}
	if len(choice0.Message.ToolCalls) == 0 {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "no tool call in response", nil)
	}

	var result staging.RawOutput
	if err := json.Unmarshal([]byte(choice0.Message.ToolCalls[0].Function.Arguments), &result); err != nil {
		return staging.RawOutput{}, vision.NewFailure(vision.FailureMalformed, "decode tool arguments", err)
	}
	return result, nil
}

func statusFailure(code int, body []byte) *vision.Failure {
	msg := fmt.Sprintf("status %d: %s", code, truncate(body, 512))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return vision.NewFailure(vision.FailureAuth, msg, nil)
	case code == http.StatusTooManyRequests:
		return vision.NewFailure(vision.FailureQuota, msg, nil)
	case code >= 500:
		return vision.NewFailure(vision.FailureTransport, msg, nil)
	default:
		return vision.NewFailure(vision.FailureMalformed, msg, nil)
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// schemaJSON renders the output schema in JSON-schema form for the tool
// definition. The shape matches the staging contract: enumerated codes, four
// [0,1] confidences and an optional error string.
func schemaJSON(s prompt.OutputSchema) json.RawMessage {
	confidence := map[string]any{
		"type":    "number",
		"minimum": 0,
		"maximum": 1,
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"t_stage": map[string]any{
				"type":        "string",
				"enum":        s.TCodes,
				"description": "T stage based on primary tumor characteristics",
			},
			"n_stage": map[string]any{
				"type":        "string",
				"enum":        s.NCodes,
				"description": "N stage based on regional lymph node involvement",
			},
			"m_stage": map[string]any{
				"type":        "string",
				"enum":        s.MCodes,
				"description": "M stage based on distant metastases",
			},
			"confidence_scores": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"t_confidence":       confidence,
					"n_confidence":       confidence,
					"m_confidence":       confidence,
					"overall_confidence": confidence,
				},
				"required": []string{"t_confidence", "n_confidence", "m_confidence", "overall_confidence"},
			},
			"error": map[string]any{
				"type":        "string",
				"description": "Error message if the image is non-diagnostic or analysis fails",
			},
		},
		"required": []string{"confidence_scores"},
	}
	raw, _ := json.Marshal(schema)
	return raw
}
