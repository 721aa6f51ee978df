package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/mikeboe/deep-research/pkg/research"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginTop(1)
	queryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// prompter reads line answers from the user.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in *bufio.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out}
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// confirm treats an empty answer as yes.
func (p *prompter) confirm(prompt string) (bool, error) {
	answer, err := p.ask(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// askRequired repeats prompt until the answer is not blank.
func (p *prompter) askRequired(prompt string) (string, error) {
	for {
		answer, err := p.ask(prompt)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, warnStyle.Render("Please answer all clarifying questions to continue."))
	}
}

// collectAnswers reads one answer per question, from file when set and from
// the prompter otherwise.
func collectAnswers(p *prompter, questions []string, file string) ([]string, error) {
	if file != "" {
		answers, err := readAnswers(file)
		if err != nil {
			return nil, err
		}
		if len(answers) != len(questions) {
			return nil, fmt.Errorf("%w: %s has %d answers for %d questions", research.ErrIncompleteAnswers, file, len(answers), len(questions))
		}
		fmt.Fprintln(p.out, headingStyle.Render("Clarifying questions"))
		for i, q := range questions {
			fmt.Fprintln(p.out, q)
			fmt.Fprintln(p.out, dimStyle.Render("> "+answers[i]))
		}
		return answers, nil
	}

	fmt.Fprintln(p.out, headingStyle.Render("Please answer these questions"))
	answers := make([]string, 0, len(questions))
	for _, q := range questions {
		fmt.Fprintln(p.out, q)
		a, err := p.askRequired("> ")
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, nil
}

// readAnswers reads one answer per non-blank line.
func readAnswers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	var answers []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			answers = append(answers, line)
		}
	}
	return answers, nil
}

func printPlan(plan research.Plan) {
	fmt.Println(headingStyle.Render("Goal"))
	fmt.Println(plan.Goal)
	printQueries("Search queries", plan.Queries)
}

func printQueries(title string, queries []string) {
	fmt.Println(headingStyle.Render(title))
	for i, q := range queries {
		fmt.Println(queryStyle.Render(fmt.Sprintf("  %d. %s", i+1, q)))
	}
}

func printResult(r research.Result) {
	fmt.Println(queryStyle.Render("• " + r.Query))
	fmt.Println(research.Truncate(r.Text, research.SearchPreviewLen))
	for _, src := range r.Sources {
		fmt.Println(dimStyle.Render("  " + src.URL))
	}
}

func printSummary(s research.Summary) {
	fmt.Println(headingStyle.Render(fmt.Sprintf("Summary: %d searches in %d iterations", s.Searches, s.Iterations)))
	for _, p := range s.Results {
		fmt.Println(queryStyle.Render("• " + p.Query))
		fmt.Println(p.Text)
	}
}

// renderMarkdown falls back to the raw text when the terminal renderer fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
