package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/antoniostano/voicecaller/internal/generation"
)

// FallbackClient tries a primary provider and falls back to a secondary
// one on error. Both share the caller's deadline.
type FallbackClient struct {
	primary  generation.TextGenerator
	fallback generation.TextGenerator
}

func NewFallbackClient(primary, fallback generation.TextGenerator) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

func (c *FallbackClient) Generate(ctx context.Context, req generation.Request) (string, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.fallback != nil {
			return c.fallback.Generate(ctx, req)
		}
		return "", fmt.Errorf("fallback client misconfigured")
	}
	text, err := c.primary.Generate(ctx, req)
	if err == nil {
		return text, nil
	}
	// The budget is spent; a second provider cannot answer in time.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if c.fallback == nil {
		return "", err
	}
	text, fallbackErr := c.fallback.Generate(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary provider error: %w; fallback provider error: %v", err, fallbackErr)
	}
	return text, nil
}
