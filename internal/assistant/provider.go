// Package assistant answers chat questions by pairing deterministic analysis
// with an LLM-written explanation.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"b2b-analyst/internal/config"
	"b2b-analyst/internal/models"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

// Request is one generate call. History holds earlier turns oldest first;
// Prompt is the new user message.
type Request struct {
	System  string
	History []models.Turn
	Prompt  string
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
