package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/completion"
)

// Researcher runs the individual research steps against a completion service.
// Each step is one call; none of them retry.
type Researcher struct {
	Service   completion.Service
	Model     string
	FastModel string
	Logger    *slog.Logger
}

func NewResearcher(svc completion.Service, cfg Config) *Researcher {
	fast := cfg.FastModel
	if fast == "" {
		fast = cfg.Model
	}
	return &Researcher{
		Service:   svc,
		Model:     cfg.Model,
		FastModel: fast,
		Logger:    slog.Default(),
	}
}

// GenerateQuestions asks for clarifying questions about topic.
func (r *Researcher) GenerateQuestions(ctx context.Context, topic string) (Questions, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Questions{}, ErrEmptyTopic
	}

	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:        r.FastModel,
		Instructions: persona,
		Input:        questionsPrompt(topic),
		Continuable:  true,
	})
	if err != nil {
		return Questions{}, fmt.Errorf("question generation failed: %w", err)
	}

	text, err := resp.Text()
	if err != nil {
		return Questions{}, fmt.Errorf("question generation failed: %w", err)
	}

	questions := Questions{Items: splitLines(text), ResponseID: resp.ID}
	r.Logger.Info("Generated clarifying questions", "count", len(questions.Items))
	return questions, nil
}

// GeneratePlan turns the answered questions into a goal and initial queries.
// The call continues the question-generation conversation.
func (r *Researcher) GeneratePlan(ctx context.Context, topic string, questions Questions, answers []string) (Plan, string, error) {
	if err := checkAnswers(questions.Items, answers); err != nil {
		return Plan{}, "", err
	}

	questionsJSON, _ := json.Marshal(questions.Items)
	answersJSON, _ := json.Marshal(answers)

	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:              r.Model,
		Instructions:       persona,
		Input:              planPrompt(topic, string(questionsJSON), string(answersJSON)),
		PreviousResponseID: questions.ResponseID,
		Continuable:        true,
	})
	if err != nil {
		return Plan{}, "", fmt.Errorf("plan generation failed: %w", err)
	}

	text, err := resp.Text()
	if err != nil {
		return Plan{}, "", fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := ParsePlan(text)
	if err != nil {
		return Plan{}, "", err
	}

	r.Logger.Info("Generated research plan", "goal", plan.Goal, "queries", plan.Queries)
	return plan, resp.ID, nil
}

// Search runs one web search.
func (r *Researcher) Search(ctx context.Context, query string) (Result, error) {
	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:        r.Model,
		Instructions: persona,
		Input:        searchPrompt(query),
		WebSearch:    true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search %q failed: %w", query, err)
	}

	msg, err := resp.Message()
	if err != nil {
		return Result{}, fmt.Errorf("search %q failed: %w", query, err)
	}

	return Result{
		Query:      query,
		ResponseID: msg.ID,
		Text:       msg.Text(),
		Sources:    msg.Citations(),
	}, nil
}

// Evaluate asks whether the collected results satisfy goal.
func (r *Researcher) Evaluate(ctx context.Context, goal string, collected Collection) (bool, error) {
	data, err := json.Marshal(collected)
	if err != nil {
		return false, fmt.Errorf("failed to marshal collected results: %w", err)
	}

	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:        r.Model,
		Instructions: persona,
		Messages: []completion.Message{
			{Role: completion.RoleDeveloper, Content: "Research goal: " + goal},
			{Role: completion.RoleAssistant, Content: string(data)},
			{Role: completion.RoleUser, Content: evaluateQuestion},
		},
		Format: &completion.Format{Name: "goal_verdict", Schema: verdictSchema},
	})
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	text, err := resp.Text()
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	satisfied := ParseVerdict(text)
	r.Logger.Info("Evaluated research", "satisfied", satisfied, "results", len(collected))
	return satisfied, nil
}

// Replan asks for replacement queries, continuing the planning conversation.
func (r *Researcher) Replan(ctx context.Context, goal string, collected Collection, previousID string) ([]string, error) {
	data, err := json.Marshal(collected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collected results: %w", err)
	}

	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:        r.Model,
		Instructions: persona,
		Messages: []completion.Message{
			{Role: completion.RoleAssistant, Content: "Current data: " + string(data)},
			{Role: completion.RoleUser, Content: replanPrompt(goal)},
		},
		PreviousResponseID: previousID,
	})
	if err != nil {
		return nil, fmt.Errorf("re-planning failed: %w", err)
	}

	text, err := resp.Text()
	if err != nil {
		return nil, fmt.Errorf("re-planning failed: %w", err)
	}

	queries, err := ParseQueries(text)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("Generated new search queries", "queries", queries)
	return queries, nil
}

// Synthesize writes the final cited report.
func (r *Researcher) Synthesize(ctx context.Context, goal string, collected Collection) (string, error) {
	data, err := json.Marshal(collected)
	if err != nil {
		return "", fmt.Errorf("failed to marshal collected results: %w", err)
	}

	resp, err := r.Service.Create(ctx, &completion.Request{
		Model:        r.Model,
		Instructions: persona,
		Messages: []completion.Message{
			{Role: completion.RoleDeveloper, Content: synthesisPrompt(goal)},
			{Role: completion.RoleAssistant, Content: string(data)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}

	report, err := resp.Text()
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}

	r.Logger.Info("Final report generated", "length", len(report))
	return report, nil
}

// ParsePlan decodes a {"goal": ..., "queries": [...]} reply. Both keys must be
// present and non-null.
func ParsePlan(text string) (Plan, error) {
	var raw struct {
		Goal    *string   `json:"goal"`
		Queries *[]string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &raw); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if raw.Goal == nil {
		return Plan{}, fmt.Errorf("%w: missing goal", ErrMalformedPlan)
	}
	if raw.Queries == nil {
		return Plan{}, fmt.Errorf("%w: missing queries", ErrMalformedPlan)
	}
	return Plan{Goal: *raw.Goal, Queries: *raw.Queries}, nil
}

// ParseQueries decodes a JSON array of query strings.
func ParseQueries(text string) ([]string, error) {
	var raw any
	if err := json.Unmarshal([]byte(stripFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w as JSON: %v", ErrMalformedQueries, err)
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON array, got %T", ErrMalformedQueries, raw)
	}

	queries := make([]string, 0, len(list))
	for i, item := range list {
		q, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, not a string", ErrMalformedQueries, i, item)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// ParseVerdict reads a goal verdict. A {"verdict": ...} reply is used when
// present; otherwise any "yes" in the text counts as satisfied.
func ParseVerdict(reply string) bool {
	var v struct {
		Verdict string `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(stripFence(reply)), &v); err == nil && v.Verdict != "" {
		return strings.EqualFold(strings.TrimSpace(v.Verdict), "yes")
	}
	return strings.Contains(strings.ToLower(reply), "yes")
}

func checkAnswers(questions, answers []string) error {
	if len(answers) != len(questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", ErrIncompleteAnswers, len(answers), len(questions))
	}
	for i, a := range answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: answer %d is empty", ErrIncompleteAnswers, i+1)
		}
	}
	return nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
