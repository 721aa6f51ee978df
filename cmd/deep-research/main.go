package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
)

var (
	topic       string
	answersFile string
	outDir      string
	assumeYes   bool
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research assistant",
		Long: `deep-research asks clarifying questions about a topic, plans web searches,
runs them until the research goal is met and writes a cited markdown report.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			if !cmd.Flags().Changed("out") {
				outDir = cfg.ReportDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return run(ctx, cfg)
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic (prompted when omitted)")
	rootCmd.Flags().StringVarP(&answersFile, "answers", "a", "", "File with one answer per line for the clarifying questions")
	rootCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory the report is written to")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Run every research iteration without asking")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	svc, err := clients.NewCompletionService(ctx, cfg)
	if err != nil {
		return err
	}

	engine := research.NewEngine(svc, research.Config{
		Model:         cfg.Model,
		FastModel:     cfg.FastModel,
		MaxIterations: cfg.MaxIterations,
	})
	engine.OnSearch = func(query string, index, total int) {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  [%d/%d] Searching: %s", index+1, total, query)))
	}

	p := newPrompter(bufio.NewReader(os.Stdin), os.Stdout)

	if topic == "" {
		topic, err = p.ask("What would you like to research? ")
		if err != nil {
			return err
		}
	}

	fmt.Println(dimStyle.Render("Generating clarifying questions..."))
	session, err := engine.Start(ctx, topic)
	if err != nil {
		return err
	}

	answers, err := collectAnswers(p, session.Questions.Items, answersFile)
	if err != nil {
		return err
	}

	fmt.Println(dimStyle.Render("Planning research..."))
	if err := engine.SubmitAnswers(ctx, session, answers); err != nil {
		return err
	}
	printPlan(session.Plan)

	for {
		if !assumeYes {
			question := "Start research? [Y/n] "
			if session.Iteration > 0 {
				question = "Continue research? [Y/n] "
			}
			ok, err := p.confirm(question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println(warnStyle.Render("Research stopped."))
				printSummary(research.Summarize(session))
				return nil
			}
		}

		out, err := engine.Continue(ctx, session)
		if err != nil {
			return err
		}

		fmt.Println(headingStyle.Render(fmt.Sprintf("Iteration %d/%d", session.Iteration, engine.MaxIterations)))
		for _, r := range out.Searched {
			printResult(r)
		}

		switch {
		case out.Satisfied:
			return finish(session, out.Report)
		case out.Exhausted:
			fmt.Println(warnStyle.Render(fmt.Sprintf("Reached the limit of %d iterations without meeting the goal.", engine.MaxIterations)))
			printSummary(*out.Summary)
			return nil
		case out.ReplanErr != nil:
			fmt.Println(warnStyle.Render("Could not generate new queries: " + out.ReplanMsg))
			fmt.Println(dimStyle.Render("Keeping the current queries."))
		default:
			printQueries("Goal not met yet. New queries:", out.NewQueries)
		}
	}
}

func finish(session *research.Session, report string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(outDir, research.ReportFilename(session.Topic))
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Println(headingStyle.Render("Research complete"))
	fmt.Println(renderMarkdown(report))
	fmt.Println(successStyle.Render(fmt.Sprintf("Report saved to %s (%d searches, %d iterations)", path, len(session.Collected), session.Iteration)))
	return nil
}
