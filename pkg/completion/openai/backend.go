// Package openai implements completion.Service on the OpenAI Responses API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/mikeboe/deep-research/pkg/completion"
)

const webSearchTool = "web_search"

type Backend struct {
	client openai.Client
}

func New(client openai.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Create(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	resp, err := b.client.Responses.New(ctx, buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai responses call failed: %w", err)
	}
	return fromResponse(resp), nil
}

func buildParams(req *completion.Request) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
	}

	if len(req.Messages) > 0 {
		items := make(responses.ResponseInputParam, 0, len(req.Messages))
		for _, m := range req.Messages {
			items = append(items, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRole(m.Role),
					Content: responses.EasyInputMessageContentUnionParam{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
		params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}
	} else {
		params.Input = responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)}
	}

	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}
	if req.WebSearch {
		params.Tools = []responses.ToolUnionParam{
			{OfWebSearch: &responses.WebSearchToolParam{Type: webSearchTool}},
		}
	}
	if req.Format != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   req.Format.Name,
					Schema: req.Format.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	return params
}

func fromResponse(resp *responses.Response) *completion.Response {
	out := &completion.Response{ID: resp.ID}

	for _, item := range resp.Output {
		converted := completion.OutputItem{ID: item.ID, Type: item.Type}
		if item.Type == completion.ItemMessage {
			converted.Role = completion.RoleAssistant
		}

		for _, content := range item.Content {
			block := completion.ContentBlock{Type: content.Type, Text: content.Text}
			for _, ann := range content.Annotations {
				if ann.Type == "url_citation" && ann.URL != "" {
					block.Citations = append(block.Citations, completion.Citation{URL: ann.URL, Title: ann.Title})
				}
			}
			converted.Content = append(converted.Content, block)
		}

		out.Output = append(out.Output, converted)
	}

	return out
}
