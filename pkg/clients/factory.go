package clients

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-research/pkg/completion"
	"github.com/mikeboe/deep-research/pkg/completion/gemini"
	"github.com/mikeboe/deep-research/pkg/completion/langchain"
	"github.com/mikeboe/deep-research/pkg/completion/openai"
	"github.com/mikeboe/deep-research/pkg/config"
)

// NewCompletionService returns the completion back-end selected by cfg.
func NewCompletionService(ctx context.Context, cfg *config.Config) (completion.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendOpenAI:
		return openai.New(OpenAI(cfg.OpenAIApiKey, cfg.OpenAIBaseURL)), nil
	case config.BackendGemini:
		client, err := Gemini(ctx, cfg.GoogleApiKey)
		if err != nil {
			return nil, err
		}
		return gemini.New(client), nil
	case config.BackendLangchain:
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return langchain.New(llm), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
