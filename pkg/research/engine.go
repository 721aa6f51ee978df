package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/completion"
)

// Engine drives a Session through the research flow:
// questions → answers → plan → search iterations → report.
type Engine struct {
	Researcher    *Researcher
	MaxIterations int
	Logger        *slog.Logger
	OnStateUpdate func(state Session)
	OnSearch      func(query string, index, total int)
	now           func() time.Time
}

func NewEngine(svc completion.Service, cfg Config) *Engine {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 || maxIterations > MaxIterations {
		maxIterations = MaxIterations
	}

	return &Engine{
		Researcher:    NewResearcher(svc, cfg),
		MaxIterations: maxIterations,
		Logger:        slog.Default(),
		now:           time.Now,
	}
}

// SetLogger replaces the logger of the engine and its researcher.
func (e *Engine) SetLogger(logger *slog.Logger) {
	e.Logger = logger
	e.Researcher.Logger = logger
}

// Start creates a session for topic and generates its clarifying questions.
func (e *Engine) Start(ctx context.Context, topic string) (*Session, error) {
	questions, err := e.Researcher.GenerateQuestions(ctx, topic)
	if err != nil {
		return nil, err
	}

	now := e.now()
	s := &Session{
		ID:        uuid.New(),
		Topic:     strings.TrimSpace(topic),
		Stage:     StageAwaitingAnswers,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.Logger.Info("Started research session", "session_id", s.ID, "topic", s.Topic)
	e.update(s)
	return s, nil
}

// SubmitAnswers records the answers and generates the research plan. A plan
// reply that is not valid JSON fails the session.
func (e *Engine) SubmitAnswers(ctx context.Context, s *Session, answers []string) error {
	if s.Stage != StageAwaitingAnswers {
		return fmt.Errorf("%w: cannot submit answers in stage %s", ErrInvalidStage, s.Stage)
	}
	if err := checkAnswers(s.Questions.Items, answers); err != nil {
		return err
	}

	plan, planID, err := e.Researcher.GeneratePlan(ctx, s.Topic, s.Questions, answers)
	if err != nil {
		s.Stage = StageFailed
		s.LastError = err.Error()
		e.Logger.Error("Planning failed", "session_id", s.ID, "error", err)
		e.update(s)
		return err
	}

	s.Answers = append([]string(nil), answers...)
	s.Plan = plan
	s.PlanResponseID = planID
	s.CurrentQueries = append([]string(nil), plan.Queries...)
	s.Stage = StagePlanned
	s.LastError = ""
	e.update(s)
	return nil
}

// Continue runs one research iteration: every pending query is searched in
// order, then the collection is evaluated against the goal. A satisfied goal
// produces the report. Otherwise new queries are requested; if that reply
// cannot be parsed the current queries are kept and the error is reported in
// the outcome.
func (e *Engine) Continue(ctx context.Context, s *Session) (*Outcome, error) {
	switch s.Stage {
	case StagePlanned, StageResearching:
	case StageExhausted:
		return e.exhausted(s), nil
	default:
		return nil, fmt.Errorf("%w: cannot continue research in stage %s", ErrInvalidStage, s.Stage)
	}

	if s.Iteration >= e.MaxIterations {
		e.Logger.Warn("Reached maximum iteration limit", "session_id", s.ID, "iterations", s.Iteration)
		s.Stage = StageExhausted
		e.update(s)
		return e.exhausted(s), nil
	}

	e.Logger.Info("Starting iteration", "session_id", s.ID, "iteration", s.Iteration+1, "max", e.MaxIterations)

	out := &Outcome{}
	pending := s.PendingQueries()
	for i, q := range pending {
		if e.OnSearch != nil {
			e.OnSearch(q, i, len(pending))
		}

		result, err := e.Researcher.Search(ctx, q)
		if err != nil {
			s.LastError = err.Error()
			e.Logger.Error("Search failed", "session_id", s.ID, "query", q, "error", err)
			e.update(s)
			return nil, err
		}

		if s.Collected.Add(result) {
			out.Searched = append(out.Searched, result)
		}
	}

	s.Iteration++
	out.Iteration = s.Iteration
	e.update(s)

	satisfied, err := e.Researcher.Evaluate(ctx, s.Plan.Goal, s.Collected)
	if err != nil {
		s.LastError = err.Error()
		e.update(s)
		return nil, err
	}

	if satisfied {
		report, err := e.Researcher.Synthesize(ctx, s.Plan.Goal, s.Collected)
		if err != nil {
			s.LastError = err.Error()
			e.update(s)
			return nil, err
		}

		s.Report = report
		s.Stage = StageComplete
		s.LastError = ""
		out.Satisfied = true
		out.Report = report
		e.Logger.Info("Research complete!", "session_id", s.ID, "iterations", s.Iteration, "searches", len(s.Collected))
		e.update(s)
		return out, nil
	}

	if s.Iteration >= e.MaxIterations {
		e.Logger.Warn("Reached maximum iteration limit", "session_id", s.ID, "iterations", s.Iteration)
		s.Stage = StageExhausted
		e.update(s)
		exhausted := e.exhausted(s)
		exhausted.Iteration = out.Iteration
		exhausted.Searched = out.Searched
		return exhausted, nil
	}

	s.Stage = StageResearching
	queries, err := e.Researcher.Replan(ctx, s.Plan.Goal, s.Collected, s.PlanResponseID)
	if err != nil {
		s.LastError = err.Error()
		out.ReplanErr = err
		out.ReplanMsg = err.Error()
		e.Logger.Warn("Could not generate new queries", "session_id", s.ID, "error", err)
		e.update(s)
		return out, nil
	}

	s.CurrentQueries = queries
	s.LastError = ""
	out.NewQueries = queries
	e.update(s)
	return out, nil
}

// Run continues the session until it completes or reaches the iteration cap.
func (e *Engine) Run(ctx context.Context, s *Session) (*Outcome, error) {
	for {
		out, err := e.Continue(ctx, s)
		if err != nil {
			return nil, err
		}
		if s.Stage.Terminal() {
			return out, nil
		}
	}
}

func (e *Engine) exhausted(s *Session) *Outcome {
	summary := Summarize(s)
	return &Outcome{
		Iteration: s.Iteration,
		Exhausted: true,
		Summary:   &summary,
	}
}

func (e *Engine) update(s *Session) {
	s.UpdatedAt = e.now()
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(*s)
	}
}
