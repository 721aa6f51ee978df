package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/completion/openai"
	"github.com/mikeboe/deep-research/pkg/config"
)

func TestNewCompletionServiceMissingKey(t *testing.T) {
	_, err := NewCompletionService(context.Background(), &config.Config{Backend: config.BackendOpenAI})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingAPIKey))
}

func TestNewCompletionServiceOpenAI(t *testing.T) {
	svc, err := NewCompletionService(context.Background(), &config.Config{
		Backend:      config.BackendOpenAI,
		OpenAIApiKey: "sk-test",
	})
	require.NoError(t, err)
	assert.IsType(t, &openai.Backend{}, svc)
}

func TestNewCompletionServiceUnknownBackend(t *testing.T) {
	_, err := NewCompletionService(context.Background(), &config.Config{Backend: "ollama", OpenAIApiKey: "x"})
	require.Error(t, err)
}
