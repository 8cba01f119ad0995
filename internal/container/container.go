// Package container wires the application dependencies together.
package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go-ct-staging/internal/auth"
	"go-ct-staging/internal/config"
	"go-ct-staging/internal/logger"
	"go-ct-staging/internal/observer"
	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/service"
	"go-ct-staging/internal/storage"
	"go-ct-staging/internal/transport"
	"go-ct-staging/internal/vision"
	"go-ct-staging/internal/vision/gemini"
	"go-ct-staging/internal/vision/openai"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Handler http.Handler

	StagingService *service.StagingService
	AuthService    *auth.Service
	Builder        *prompt.Builder
	Metrics        *observer.MetricsObserver
}

// New creates and wires all application dependencies from the configuration.
func New(cfg *config.Config) (*Container, error) {
	guidelines, err := loadGuidelines(cfg)
	if err != nil {
		return nil, err
	}
	builder := prompt.NewBuilder(guidelines)

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	invoker := vision.NewInvoker(engine, cfg.AnalysisTimeout, cfg.MaxRetries, cfg.RetryBaseDelay, cfg.MaxConcurrentAnalyses)

	publisher := observer.NewPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	tempStore := storage.NewTempStore("")

	stagingService := service.NewStagingService(tempStore, invoker, builder, publisher)
	authService := auth.NewService(cfg.JWTSecret, cfg.AuthUsername, cfg.AuthPassword, cfg.JWTTTL)

	return &Container{
		Config:         cfg,
		Handler:        transport.NewHandler(stagingService, authService, cfg),
		StagingService: stagingService,
		AuthService:    authService,
		Builder:        builder,
		Metrics:        metrics,
	}, nil
}

func newEngine(cfg *config.Config) (vision.Engine, error) {
	switch cfg.VisionProvider {
	case config.ProviderOpenAI:
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.ProviderGemini:
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unsupported vision provider: %q", cfg.VisionProvider)
	}
}

// loadGuidelines resolves the guideline config source in priority order:
// Azure blob, local file, embedded default.
func loadGuidelines(cfg *config.Config) (prompt.GuidelineConfig, error) {
	if cfg.AzureConfigured() {
		source, err := storage.NewAzureGuidelineSource(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzurePromptBlobURL)
		if err != nil {
			return prompt.GuidelineConfig{}, fmt.Errorf("azure guideline source: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		data, err := source.Fetch(ctx)
		if err != nil {
			return prompt.GuidelineConfig{}, fmt.Errorf("fetch guideline config: %w", err)
		}
		logger.Info("Loaded guideline config from Azure blob storage")
		return prompt.ParseGuidelines(data)
	}

	if cfg.PromptConfigPath != "" {
		data, err := os.ReadFile(cfg.PromptConfigPath)
		if err != nil {
			return prompt.GuidelineConfig{}, fmt.Errorf("read guideline config %s: %w", cfg.PromptConfigPath, err)
		}
		logger.WithField("path", cfg.PromptConfigPath).Info("Loaded guideline config from file")
		return prompt.ParseGuidelines(data)
	}

	logger.Info("Using embedded guideline config")
	return prompt.DefaultGuidelines()
}
