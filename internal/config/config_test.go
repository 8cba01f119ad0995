package config

import (
	"testing"
	"time"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AUTH_PASSWORD", "scanner-room-4")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.VisionProvider != ProviderOpenAI {
		t.Errorf("VisionProvider = %q, want %q", cfg.VisionProvider, ProviderOpenAI)
	}
	if cfg.AnalysisTimeout != 3*time.Minute {
		t.Errorf("AnalysisTimeout = %s, want 3m", cfg.AnalysisTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.MaxUploadSize != 50*1024*1024 {
		t.Errorf("MaxUploadSize = %d, want 50MB", cfg.MaxUploadSize)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress() = %q", cfg.ServerAddress())
	}
	if cfg.AzureConfigured() {
		t.Error("AzureConfigured() = true without Azure settings")
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Bad port", map[string]string{"PORT": "not-a-port"}},
		{"Port out of range", map[string]string{"PORT": "70000"}},
		{"Unknown provider", map[string]string{"VISION_PROVIDER": "claude"}},
		{"OpenAI without key", map[string]string{"OPENAI_API_KEY": ""}},
		{"Gemini without key", map[string]string{"VISION_PROVIDER": "gemini"}},
		{"Missing JWT secret", map[string]string{"JWT_SECRET": ""}},
		{"Missing auth password", map[string]string{"AUTH_PASSWORD": ""}},
		{"Zero upload size", map[string]string{"MAX_UPLOAD_SIZE": "0"}},
		{"Zero retries", map[string]string{"MAX_RETRIES": "0"}},
		{"Zero concurrency", map[string]string{"MAX_CONCURRENT_ANALYSES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFromEnv(); err == nil {
				t.Error("LoadFromEnv accepted an invalid configuration")
			}
		})
	}
}

func TestLoadFromEnv_GeminiProvider(t *testing.T) {
	setValidEnv(t)
	t.Setenv("VISION_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.VisionProvider != ProviderGemini {
		t.Errorf("VisionProvider = %q, want %q", cfg.VisionProvider, ProviderGemini)
	}
}
