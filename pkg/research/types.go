package research

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/completion"
)

// MaxIterations is the hard cap on search iterations per session.
const MaxIterations = 5

var (
	ErrEmptyTopic        = errors.New("research topic is empty")
	ErrIncompleteAnswers = errors.New("all clarifying questions must be answered")
	ErrMalformedPlan     = errors.New("could not parse research plan as JSON")
	ErrMalformedQueries  = errors.New("could not parse additional queries")
	ErrInvalidStage      = errors.New("operation not allowed in current stage")
)

// Config holds runtime configuration
type Config struct {
	Model         string
	FastModel     string
	MaxIterations int
}

// Stage is a session's position in the research flow.
type Stage string

const (
	StageAwaitingAnswers Stage = "awaiting_answers"
	StagePlanned         Stage = "planned"
	StageResearching     Stage = "researching"
	StageComplete        Stage = "complete"
	StageExhausted       Stage = "exhausted"
	StageFailed          Stage = "failed"
)

// Terminal reports whether no further research can happen in this stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageExhausted || s == StageFailed
}

type Questions struct {
	Items      []string `json:"items"`
	ResponseID string   `json:"response_id"`
}

type Plan struct {
	Goal    string   `json:"goal"`
	Queries []string `json:"queries"`
}

// Result is one executed web search.
type Result struct {
	Query      string                `json:"query"`
	ResponseID string                `json:"resp_id"`
	Text       string                `json:"research_output"`
	Sources    []completion.Citation `json:"sources,omitempty"`
}

// Collection is the ordered list of results, unique by query text.
type Collection []Result

// Has reports whether query was already searched.
func (c Collection) Has(query string) bool {
	for _, r := range c {
		if r.Query == query {
			return true
		}
	}
	return false
}

// Add appends r unless its query is already present.
func (c *Collection) Add(r Result) bool {
	if c.Has(r.Query) {
		return false
	}
	*c = append(*c, r)
	return true
}

// Session is the full state of one research run.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	Topic          string     `json:"topic"`
	Stage          Stage      `json:"stage"`
	Questions      Questions  `json:"questions"`
	Answers        []string   `json:"answers,omitempty"`
	Plan           Plan       `json:"plan"`
	PlanResponseID string     `json:"plan_response_id,omitempty"`
	CurrentQueries []string   `json:"current_queries,omitempty"`
	Collected      Collection `json:"collected"`
	Iteration      int        `json:"iteration"`
	Report         string     `json:"report,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PendingQueries returns the current queries that have not been searched yet,
// without duplicates.
func (s *Session) PendingQueries() []string {
	seen := make(map[string]bool)
	var pending []string
	for _, q := range s.CurrentQueries {
		if seen[q] || s.Collected.Has(q) {
			continue
		}
		seen[q] = true
		pending = append(pending, q)
	}
	return pending
}

// Outcome describes what one call to Continue did.
type Outcome struct {
	Iteration  int      `json:"iteration"`
	Searched   []Result `json:"searched"`
	Satisfied  bool     `json:"satisfied"`
	Report     string   `json:"report,omitempty"`
	NewQueries []string `json:"new_queries,omitempty"`
	ReplanErr  error    `json:"-"`
	ReplanMsg  string   `json:"replan_error,omitempty"`
	Exhausted  bool     `json:"exhausted"`
	Summary    *Summary `json:"summary,omitempty"`
}
