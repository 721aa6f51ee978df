// Package completion defines the contract between the research loop and the
// external completion service (text generation plus optional web search).
package completion

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedShape is returned when a response does not carry the output
	// items a caller needs.
	ErrUnexpectedShape = errors.New("unexpected response shape")
	// ErrUnknownResponse is returned when a continuation token does not refer to
	// a previous response.
	ErrUnknownResponse = errors.New("unknown response id")
)

// Message roles understood by every back-end.
const (
	RoleDeveloper = "developer"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Output item and content block types.
const (
	ItemMessage       = "message"
	ItemWebSearchCall = "web_search_call"
	BlockOutputText   = "output_text"
)

// Service is a completion service.
type Service interface {
	Create(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Format asks the service for structured JSON output matching Schema.
type Format struct {
	Name   string
	Schema map[string]any
}

// Request is a single text-generation call. Exactly one of Input or Messages is
// used; Messages wins when both are set.
type Request struct {
	Model              string
	Instructions       string
	Input              string
	Messages           []Message
	PreviousResponseID string
	WebSearch          bool
	Format             *Format
	// Continuable marks a reply that later requests chain to through
	// PreviousResponseID. Back-ends that keep history locally only keep these.
	Continuable bool
}

// Turns returns the request input as a message list.
func (r *Request) Turns() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: r.Input}}
}

type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type ContentBlock struct {
	Type      string
	Text      string
	Citations []Citation
}

type OutputItem struct {
	ID      string
	Type    string
	Role    string
	Content []ContentBlock
}

// Response is what the service returned. ID is the continuation token a later
// request can pass as PreviousResponseID.
type Response struct {
	ID     string
	Output []OutputItem
}

// Message returns the first message item that carries text.
func (r *Response) Message() (*OutputItem, error) {
	for i := range r.Output {
		item := &r.Output[i]
		if item.Type != ItemMessage {
			continue
		}
		if _, ok := item.firstText(); ok {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: response %s has no message with text (%d output items)", ErrUnexpectedShape, r.ID, len(r.Output))
}

// Text returns the first text block of the first message item.
func (r *Response) Text() (string, error) {
	item, err := r.Message()
	if err != nil {
		return "", err
	}
	block, _ := item.firstText()
	return block.Text, nil
}

// Text returns the item's first text block.
func (o *OutputItem) Text() string {
	block, _ := o.firstText()
	return block.Text
}

// Citations collects the item's citations, first occurrence of each URL wins.
func (o *OutputItem) Citations() []Citation {
	seen := make(map[string]bool)
	var citations []Citation
	for _, block := range o.Content {
		for _, c := range block.Citations {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			citations = append(citations, c)
		}
	}
	return citations
}

func (o *OutputItem) firstText() (ContentBlock, bool) {
	for _, block := range o.Content {
		if block.Type == BlockOutputText {
			return block, true
		}
	}
	return ContentBlock{}, false
}
