package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/completion"
)

type fakeModels struct {
	calls   []fakeCall
	replies []*genai.GenerateContentResponse
	err     error
}

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func textReply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func TestCreateWebSearchGrounding(t *testing.T) {
	reply := textReply("Grounded answer")
	reply.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
			{Web: nil},
		},
	}
	models := &fakeModels{replies: []*genai.GenerateContentResponse{reply}}
	backend := &Backend{models: models, history: completion.NewHistory()}

	resp, err := backend.Create(context.Background(), &completion.Request{
		Model:        "gemini-3-pro-preview",
		Instructions: "persona",
		Input:        "Search: x",
		WebSearch:    true,
	})
	require.NoError(t, err)

	require.Len(t, models.calls, 1)
	call := models.calls[0]
	assert.Equal(t, "gemini-3-pro-preview", call.model)
	require.Len(t, call.config.Tools, 1)
	assert.NotNil(t, call.config.Tools[0].GoogleSearch)
	assert.Equal(t, "persona", call.config.SystemInstruction.Parts[0].Text)

	require.Len(t, resp.Output, 2)
	assert.Equal(t, completion.ItemWebSearchCall, resp.Output[0].Type)
	msg, err := resp.Message()
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer", msg.Text())
	assert.Equal(t, []completion.Citation{{URL: "https://a.example", Title: "A"}}, msg.Citations())
}

func TestCreateChainsThroughHistory(t *testing.T) {
	models := &fakeModels{replies: []*genai.GenerateContentResponse{textReply("1. Why?"), textReply(`{"goal":"G","queries":[]}`)}}
	backend := &Backend{models: models, history: completion.NewHistory()}

	first, err := backend.Create(context.Background(), &completion.Request{Model: "m", Input: "ask questions", Continuable: true})
	require.NoError(t, err)

	_, err = backend.Create(context.Background(), &completion.Request{
		Model:              "m",
		Input:              "plan please",
		PreviousResponseID: first.ID,
	})
	require.NoError(t, err)

	contents := models.calls[1].contents
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "1. Why?", contents[1].Parts[0].Text)
	assert.Equal(t, "plan please", contents[2].Parts[0].Text)
}

func TestCreateUnknownPrevious(t *testing.T) {
	backend := &Backend{models: &fakeModels{}, history: completion.NewHistory()}
	_, err := backend.Create(context.Background(), &completion.Request{Model: "m", Input: "x", PreviousResponseID: "resp_nope"})
	assert.True(t, errors.Is(err, completion.ErrUnknownResponse))
}

func TestCreateStructuredOutput(t *testing.T) {
	models := &fakeModels{replies: []*genai.GenerateContentResponse{textReply(`{"verdict":"no"}`)}}
	backend := &Backend{models: models, history: completion.NewHistory()}

	schema := map[string]any{"type": "object"}
	_, err := backend.Create(context.Background(), &completion.Request{
		Model:  "m",
		Input:  "enough?",
		Format: &completion.Format{Name: "verdict", Schema: schema},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", models.calls[0].config.ResponseMIMEType)
	assert.Equal(t, schema, models.calls[0].config.ResponseJsonSchema)
}

func TestCreateNoCandidates(t *testing.T) {
	models := &fakeModels{replies: []*genai.GenerateContentResponse{{}}}
	backend := &Backend{models: models, history: completion.NewHistory()}

	_, err := backend.Create(context.Background(), &completion.Request{Model: "m", Input: "x"})
	assert.True(t, errors.Is(err, completion.ErrUnexpectedShape))
}

func TestToContents(t *testing.T) {
	contents, system := toContents("persona", []completion.Message{
		{Role: completion.RoleDeveloper, Content: "Write a report"},
		{Role: completion.RoleAssistant, Content: "[]"},
	})

	assert.Equal(t, "persona\n\nWrite a report", system)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleModel), contents[0].Role)
	assert.Equal(t, string(genai.RoleUser), contents[1].Role)
}
