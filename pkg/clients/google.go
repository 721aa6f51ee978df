package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/genai"
)

// GoogleAi builds a langchaingo Gemini model.
func GoogleAi(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init langchain googleai: %w", err)
	}
	return llm, nil
}

// Gemini builds a Gemini API client.
func Gemini(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}
	return client, nil
}
