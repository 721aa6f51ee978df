// Package gemini implements completion.Service on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/completion"
)

// generator is the subset of *genai.Models the back-end uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Backend struct {
	models  generator
	history *completion.History
}

func New(client *genai.Client) *Backend {
	return &Backend{models: client.Models, history: completion.NewHistory()}
}

func (b *Backend) Create(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	turns, err := b.history.Resolve(req.PreviousResponseID, req.Turns())
	if err != nil {
		return nil, err
	}

	contents, system := toContents(req.Instructions, turns)

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.WebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Format != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Format.Schema
	}

	resp, err := b.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", completion.ErrUnexpectedShape)
	}

	text := resp.Text()
	id := b.history.Record(turns, text, req.Continuable)

	out := &completion.Response{ID: id}
	citations := groundingCitations(resp.Candidates[0])
	if req.WebSearch || len(citations) > 0 {
		out.Output = append(out.Output, completion.OutputItem{
			ID:   "ws_" + uuid.NewString(),
			Type: completion.ItemWebSearchCall,
		})
	}

	msg := completion.OutputItem{
		ID:   "msg_" + uuid.NewString(),
		Type: completion.ItemMessage,
		Role: completion.RoleAssistant,
	}
	if text != "" {
		msg.Content = []completion.ContentBlock{{
			Type:      completion.BlockOutputText,
			Text:      text,
			Citations: citations,
		}}
	}
	out.Output = append(out.Output, msg)

	return out, nil
}

// toContents maps turns onto Gemini contents. Developer turns join the system
// instruction; the conversation must end on a user turn.
func toContents(instructions string, turns []completion.Message) ([]*genai.Content, string) {
	var system []string
	if instructions != "" {
		system = append(system, strings.TrimSpace(instructions))
	}

	var contents []*genai.Content
	for _, m := range turns {
		switch m.Role {
		case completion.RoleDeveloper:
			system = append(system, m.Content)
		case completion.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(contents) == 0 || contents[len(contents)-1].Role != string(genai.RoleUser) {
		contents = append(contents, genai.NewContentFromText("Proceed.", genai.RoleUser))
	}

	return contents, strings.Join(system, "\n\n")
}

func groundingCitations(c *genai.Candidate) []completion.Citation {
	if c.GroundingMetadata == nil {
		return nil
	}
	var citations []completion.Citation
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		citations = append(citations, completion.Citation{URL: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return citations
}
