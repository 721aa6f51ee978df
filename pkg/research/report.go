package research

import (
	"regexp"
	"strings"
)

const (
	// SearchPreviewLen bounds the preview of a single search result.
	SearchPreviewLen = 300
	// SummaryPreviewLen bounds each result in an exhausted-session summary.
	SummaryPreviewLen = 500
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

type Preview struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

// Summary is what gets reported when the iteration cap stops a session
// before the goal is met.
type Summary struct {
	Searches   int       `json:"searches"`
	Iterations int       `json:"iterations"`
	Results    []Preview `json:"results"`
}

func Summarize(s *Session) Summary {
	summary := Summary{
		Searches:   len(s.Collected),
		Iterations: s.Iteration,
		Results:    make([]Preview, 0, len(s.Collected)),
	}
	for _, r := range s.Collected {
		summary.Results = append(summary.Results, Preview{
			Query: r.Query,
			Text:  Truncate(r.Text, SummaryPreviewLen),
		})
	}
	return summary
}

// Truncate cuts text to n runes, marking the cut with "...".
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// ReportFilename derives the download name of a report from its topic.
func ReportFilename(topic string) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(topic), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	if name == "" {
		name = "untitled"
	}
	return "research_report_" + name + ".md"
}
