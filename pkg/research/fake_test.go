package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/completion"
)

// scriptedService answers each kind of research call from canned replies.
type scriptedService struct {
	questions string
	plan      string
	verdicts  []string
	replans   []string
	report    string

	searchErr   error
	failSearch  string
	shapeless   bool
	replanCount int

	requests []*completion.Request
	searches []string
}

func (f *scriptedService) Create(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	f.requests = append(f.requests, req)

	switch {
	case req.WebSearch:
		q := strings.TrimPrefix(req.Input, "Search: ")
		f.searches = append(f.searches, q)
		if f.searchErr != nil && (f.failSearch == "" || f.failSearch == q) {
			return nil, f.searchErr
		}
		if f.shapeless {
			return &completion.Response{ID: "resp_s", Output: []completion.OutputItem{{ID: "ws_1", Type: completion.ItemWebSearchCall}}}, nil
		}
		return &completion.Response{
			ID: "resp_search_" + q,
			Output: []completion.OutputItem{
				{ID: "ws_" + q, Type: completion.ItemWebSearchCall},
				{ID: "msg_" + q, Type: completion.ItemMessage, Content: []completion.ContentBlock{{
					Type:      completion.BlockOutputText,
					Text:      "findings for " + q,
					Citations: []completion.Citation{{URL: "https://example.com/" + q}},
				}}},
			},
		}, nil
	case req.Format != nil:
		verdict := "No"
		if len(f.verdicts) > 0 {
			verdict, f.verdicts = f.verdicts[0], f.verdicts[1:]
		}
		return textResponse("resp_eval", verdict), nil
	case strings.Contains(req.Input, "clarifying questions"):
		return textResponse("resp_questions", f.questions), nil
	case strings.Contains(req.Input, "goal sentence"):
		return textResponse("resp_plan", f.plan), nil
	case len(req.Messages) == 2 && req.Messages[1].Role == completion.RoleUser:
		f.replanCount++
		if len(f.replans) > 0 {
			reply := f.replans[0]
			f.replans = f.replans[1:]
			return textResponse("resp_replan", reply), nil
		}
		return textResponse("resp_replan", fmt.Sprintf(`["extra %d"]`, f.replanCount)), nil
	default:
		return textResponse("resp_report", f.report), nil
	}
}

func (f *scriptedService) count(pred func(*completion.Request) bool) int {
	n := 0
	for _, r := range f.requests {
		if pred(r) {
			n++
		}
	}
	return n
}

func isSynthesis(r *completion.Request) bool {
	return len(r.Messages) == 2 && r.Messages[0].Role == completion.RoleDeveloper
}

func textResponse(id, text string) *completion.Response {
	return &completion.Response{
		ID: id,
		Output: []completion.OutputItem{{
			ID:      "msg_" + id,
			Type:    completion.ItemMessage,
			Content: []completion.ContentBlock{{Type: completion.BlockOutputText, Text: text}},
		}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const fiveQuestions = "1. What is the purpose?\n\n2. Who is the audience?\n3. What depth?\n   \n4. Which regions?\n5. What timeframe?\n"

const basicPlan = `{"goal":"G","queries":["a","b","c","d","e"]}`
