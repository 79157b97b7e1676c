// Package llm holds the text generation provider clients.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/voicecaller/internal/generation"
)

// Config controls client construction.
type Config struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string
}

// New builds the text generator for cfg.Provider. In auto mode OpenAI is
// preferred, Gemini is used as its fallback or alone, and the mock client
// is used when no key is configured. The returned name identifies the
// chosen provider.
func New(ctx context.Context, cfg Config) (generation.TextGenerator, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), "openai", nil
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", err
		}
		return c, "gemini", nil
	case "mock":
		return NewMockClient(), "mock", nil
	case "auto":
		return newAuto(ctx, cfg)
	default:
		return nil, "", fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newAuto(ctx context.Context, cfg Config) (generation.TextGenerator, string, error) {
	var gemini generation.TextGenerator
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", err
		}
		gemini = c
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		openai := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if gemini != nil {
			return NewFallbackClient(openai, gemini), "openai+gemini", nil
		}
		return openai, "openai", nil
	}
	if gemini != nil {
		return gemini, "gemini", nil
	}
	return NewMockClient(), "mock", nil
}
