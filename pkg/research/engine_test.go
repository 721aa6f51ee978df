package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/completion"
)

var testAnswers = []string{"learn", "engineers", "deep", "EU", "2020-2024"}

func newTestEngine(svc completion.Service, maxIterations int) *Engine {
	e := NewEngine(svc, Config{Model: "main", FastModel: "fast", MaxIterations: maxIterations})
	e.SetLogger(quietLogger())
	return e
}

func plannedSession(t *testing.T, e *Engine) *Session {
	t.Helper()
	s, err := e.Start(context.Background(), "solar power")
	require.NoError(t, err)
	require.NoError(t, e.SubmitAnswers(context.Background(), s, testAnswers))
	return s
}

func TestStartAndSubmitAnswers(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: basicPlan}
	e := newTestEngine(svc, 0)

	s, err := e.Start(context.Background(), "  solar power ")
	require.NoError(t, err)
	assert.Equal(t, "solar power", s.Topic)
	assert.Equal(t, StageAwaitingAnswers, s.Stage)
	assert.Len(t, s.Questions.Items, 5)

	err = e.SubmitAnswers(context.Background(), s, []string{"only one"})
	assert.True(t, errors.Is(err, ErrIncompleteAnswers))
	assert.Equal(t, StageAwaitingAnswers, s.Stage)

	require.NoError(t, e.SubmitAnswers(context.Background(), s, testAnswers))
	assert.Equal(t, StagePlanned, s.Stage)
	assert.Equal(t, "G", s.Plan.Goal)
	assert.Equal(t, "resp_plan", s.PlanResponseID)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.CurrentQueries)

	err = e.SubmitAnswers(context.Background(), s, testAnswers)
	assert.True(t, errors.Is(err, ErrInvalidStage))
}

func TestSubmitAnswersMalformedPlanFailsSession(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: "Goal: learn things"}
	e := newTestEngine(svc, 0)

	s, err := e.Start(context.Background(), "solar power")
	require.NoError(t, err)

	err = e.SubmitAnswers(context.Background(), s, testAnswers)
	assert.True(t, errors.Is(err, ErrMalformedPlan))
	assert.Equal(t, StageFailed, s.Stage)
	assert.NotEmpty(t, s.LastError)

	_, err = e.Continue(context.Background(), s)
	assert.True(t, errors.Is(err, ErrInvalidStage))
}

func TestSubmitAnswersPlanWithoutKeysFailsSession(t *testing.T) {
	for _, plan := range []string{`{"plan":"x"}`, `{}`, `null`} {
		t.Run(plan, func(t *testing.T) {
			svc := &scriptedService{questions: fiveQuestions, plan: plan}
			e := newTestEngine(svc, 0)

			s, err := e.Start(context.Background(), "solar power")
			require.NoError(t, err)

			err = e.SubmitAnswers(context.Background(), s, testAnswers)
			assert.True(t, errors.Is(err, ErrMalformedPlan))
			assert.Equal(t, StageFailed, s.Stage)
			assert.Empty(t, s.CurrentQueries)
			assert.Empty(t, svc.searches)
		})
	}
}

func TestContinueBeforeAnswers(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions}
	e := newTestEngine(svc, 0)

	s, err := e.Start(context.Background(), "solar power")
	require.NoError(t, err)

	_, err = e.Continue(context.Background(), s)
	assert.True(t, errors.Is(err, ErrInvalidStage))
}

func TestRunReplansThenCompletes(t *testing.T) {
	svc := &scriptedService{
		questions: fiveQuestions,
		plan:      basicPlan,
		verdicts:  []string{"No, insufficient.", "Yes."},
		replans:   []string{`["a", "f", "f"]`},
		report:    "# Final report",
	}
	e := newTestEngine(svc, 0)

	var updates int
	e.OnStateUpdate = func(Session) { updates++ }

	s := plannedSession(t, e)

	first, err := e.Continue(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Iteration)
	assert.Len(t, first.Searched, 5)
	assert.False(t, first.Satisfied)
	assert.Equal(t, []string{"a", "f", "f"}, first.NewQueries)
	assert.Equal(t, StageResearching, s.Stage)

	second, err := e.Continue(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Iteration)
	require.Len(t, second.Searched, 1)
	assert.Equal(t, "f", second.Searched[0].Query)
	assert.True(t, second.Satisfied)
	assert.Equal(t, "# Final report", second.Report)

	assert.Equal(t, StageComplete, s.Stage)
	assert.Equal(t, "# Final report", s.Report)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, svc.searches)
	assert.Len(t, s.Collected, 6)
	assert.Positive(t, updates)

	_, err = e.Continue(context.Background(), s)
	assert.True(t, errors.Is(err, ErrInvalidStage))
}

func TestEvaluationSeesAllCollectedResults(t *testing.T) {
	svc := &scriptedService{
		questions: fiveQuestions,
		plan:      `{"goal":"G","queries":["a"]}`,
		verdicts:  []string{"No", "Yes"},
		replans:   []string{`["b"]`},
	}
	e := newTestEngine(svc, 0)
	s := plannedSession(t, e)

	_, err := e.Run(context.Background(), s)
	require.NoError(t, err)

	var evals []*completion.Request
	for _, r := range svc.requests {
		if r.Format != nil {
			evals = append(evals, r)
		}
	}
	require.Len(t, evals, 2)
	assert.Contains(t, evals[1].Messages[1].Content, `"query":"a"`)
	assert.Contains(t, evals[1].Messages[1].Content, `"query":"b"`)
}

func TestIdenticalQueriesSearchedOnce(t *testing.T) {
	svc := &scriptedService{
		questions: fiveQuestions,
		plan:      `{"goal":"G","queries":["same","same","other"]}`,
		verdicts:  []string{"No"},
		replans:   []string{`["same","other"]`},
	}
	e := newTestEngine(svc, 0)
	s := plannedSession(t, e)

	_, err := e.Continue(context.Background(), s)
	require.NoError(t, err)
	second, err := e.Continue(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"same", "other"}, svc.searches)
	assert.Len(t, s.Collected, 2)
	assert.Empty(t, second.Searched)
	assert.Equal(t, 2, s.Iteration)
}

func TestRunStopsAtIterationCap(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: basicPlan}
	e := newTestEngine(svc, 0)
	s := plannedSession(t, e)

	out, err := e.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, StageExhausted, s.Stage)
	assert.Equal(t, MaxIterations, s.Iteration)
	assert.True(t, out.Exhausted)
	require.NotNil(t, out.Summary)
	assert.Equal(t, MaxIterations, out.Summary.Iterations)
	assert.Equal(t, len(s.Collected), out.Summary.Searches)
	assert.Equal(t, 5+MaxIterations-1, len(s.Collected))
	assert.Zero(t, svc.count(isSynthesis))
	assert.Empty(t, s.Report)

	calls := len(svc.requests)
	again, err := e.Continue(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, again.Exhausted)
	assert.Equal(t, MaxIterations, s.Iteration)
	assert.Len(t, svc.requests, calls)
}

func TestMaxIterationsConfigCannotExceedCap(t *testing.T) {
	assert.Equal(t, MaxIterations, newTestEngine(&scriptedService{}, 12).MaxIterations)
	assert.Equal(t, 2, newTestEngine(&scriptedService{}, 2).MaxIterations)
}

func TestRunHonorsLowerIterationLimit(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: basicPlan}
	e := newTestEngine(svc, 2)
	s := plannedSession(t, e)

	out, err := e.Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Exhausted)
	assert.Equal(t, 2, s.Iteration)
}

func TestReplanNotArrayKeepsQueries(t *testing.T) {
	svc := &scriptedService{
		questions: fiveQuestions,
		plan:      basicPlan,
		verdicts:  []string{"No"},
		replans:   []string{`{"queries":["x","y"]}`},
	}
	e := newTestEngine(svc, 0)
	s := plannedSession(t, e)

	out, err := e.Continue(context.Background(), s)
	require.NoError(t, err)

	require.Error(t, out.ReplanErr)
	assert.True(t, errors.Is(out.ReplanErr, ErrMalformedQueries))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.CurrentQueries)
	assert.Equal(t, StageResearching, s.Stage)
	assert.NotEmpty(t, s.LastError)

	// Retrying searches nothing new and asks for queries again.
	out, err = e.Continue(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, out.Searched)
	assert.Equal(t, 2, s.Iteration)
	assert.Equal(t, []string{"extra 2"}, s.CurrentQueries)
	assert.Empty(t, s.LastError)
}

func TestSearchFaultKeepsPartialResults(t *testing.T) {
	svc := &scriptedService{
		questions:  fiveQuestions,
		plan:       basicPlan,
		searchErr:  errors.New("connection reset"),
		failSearch: "c",
	}
	e := newTestEngine(svc, 0)
	s := plannedSession(t, e)

	_, err := e.Continue(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, 0, s.Iteration)
	assert.Equal(t, StagePlanned, s.Stage)
	assert.Len(t, s.Collected, 2)
	assert.Equal(t, []string{"c", "d", "e"}, s.PendingQueries())
}

func TestOnSearchProgress(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: basicPlan, verdicts: []string{"Yes"}}
	e := newTestEngine(svc, 0)

	var seen []string
	e.OnSearch = func(query string, index, total int) {
		assert.Equal(t, 5, total)
		seen = append(seen, query)
	}

	s := plannedSession(t, e)
	_, err := e.Continue(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestUpdateTimestamps(t *testing.T) {
	svc := &scriptedService{questions: fiveQuestions, plan: basicPlan}
	e := newTestEngine(svc, 0)

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	s := plannedSession(t, e)
	assert.True(t, s.UpdatedAt.After(s.CreatedAt))
}
