package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted for VISION_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Host string
	Port string

	// Vision model
	VisionProvider string
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string

	// Invocation policy. Model calls run for minutes, so AnalysisTimeout is
	// the per-attempt ceiling and RequestTimeout only bounds header reads.
	AnalysisTimeout       time.Duration
	MaxRetries            int
	RetryBaseDelay        time.Duration
	MaxConcurrentAnalyses int

	// HTTP surface
	RequestTimeout time.Duration
	MaxUploadSize  int64

	// Auth
	JWTSecret    string
	JWTTTL       time.Duration
	AuthUsername string
	AuthPassword string

	// Prompt/guideline configuration
	PromptConfigPath   string
	AzureAccountName   string
	AzureAccountKey    string
	AzurePromptBlobURL string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureConfigured reports whether guideline config should be fetched from
// Azure blob storage instead of the local filesystem.
func (c *Config) AzureConfigured() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != "" && c.AzurePromptBlobURL != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host: getEnvOrDefault("HOST", "0.0.0.0"),
		Port: getEnvOrDefault("PORT", "8080"),

		VisionProvider: strings.ToLower(getEnvOrDefault("VISION_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),

		AnalysisTimeout:       parseDurationOrDefault("ANALYSIS_TIMEOUT", 3*time.Minute),
		MaxRetries:            parseIntOrDefault("MAX_RETRIES", 3),
		RetryBaseDelay:        parseDurationOrDefault("RETRY_BASE_DELAY", 2*time.Second),
		MaxConcurrentAnalyses: parseIntOrDefault("MAX_CONCURRENT_ANALYSES", 4),

		RequestTimeout: parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxUploadSize:  parseInt64OrDefault("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTTTL:       parseDurationOrDefault("JWT_TTL", 12*time.Hour),
		AuthUsername: getEnvOrDefault("AUTH_USERNAME", "admin"),
		AuthPassword: os.Getenv("AUTH_PASSWORD"),

		PromptConfigPath:   os.Getenv("PROMPT_CONFIG_PATH"),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
		AzurePromptBlobURL: os.Getenv("AZURE_PROMPT_BLOB_URL"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}

	switch cfg.VisionProvider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when VISION_PROVIDER=%s", ProviderOpenAI)
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when VISION_PROVIDER=%s", ProviderGemini)
		}
	default:
		return nil, fmt.Errorf("invalid VISION_PROVIDER: %q (use %q or %q)",
			cfg.VisionProvider, ProviderOpenAI, ProviderGemini)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AuthPassword == "" {
		return nil, fmt.Errorf("AUTH_PASSWORD is required")
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", cfg.MaxUploadSize)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.MaxConcurrentAnalyses < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_ANALYSES must be >= 1 (got %d)", cfg.MaxConcurrentAnalyses)
	}
	if cfg.RequestTimeout <= 0 || cfg.AnalysisTimeout <= 0 || cfg.RetryBaseDelay <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s, backoff=%s)",
			cfg.RequestTimeout, cfg.AnalysisTimeout, cfg.RetryBaseDelay)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
