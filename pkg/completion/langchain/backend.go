// Package langchain adapts any langchaingo model to completion.Service.
//
// langchaingo models have no web search tool. Search requests are answered from
// the model's own knowledge and a warning is logged for each one.
package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/completion"
)

type Backend struct {
	LLM     llms.Model
	Logger  *slog.Logger
	history *completion.History
}

func New(llm llms.Model) *Backend {
	return &Backend{
		LLM:     llm,
		Logger:  slog.Default(),
		history: completion.NewHistory(),
	}
}

func (b *Backend) Create(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	turns, err := b.history.Resolve(req.PreviousResponseID, req.Turns())
	if err != nil {
		return nil, err
	}

	if req.WebSearch {
		b.Logger.Warn("Web search not available for langchain backend, answering from model knowledge", "model", req.Model)
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Format != nil {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := b.LLM.GenerateContent(ctx, toMessages(req.Instructions, turns), opts...)
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: llm returned no choices", completion.ErrUnexpectedShape)
	}

	text := resp.Choices[0].Content
	msg := completion.OutputItem{
		ID:   "msg_" + uuid.NewString(),
		Type: completion.ItemMessage,
		Role: completion.RoleAssistant,
	}
	if text != "" {
		msg.Content = []completion.ContentBlock{{Type: completion.BlockOutputText, Text: text}}
	}

	return &completion.Response{
		ID:     b.history.Record(turns, text, req.Continuable),
		Output: []completion.OutputItem{msg},
	}, nil
}

func toMessages(instructions string, turns []completion.Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if instructions != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, instructions))
	}
	for _, m := range turns {
		switch m.Role {
		case completion.RoleDeveloper:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case completion.RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, m.Content))
		default:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return messages
}
