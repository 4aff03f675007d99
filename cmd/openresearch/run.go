package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/render"
)

// errAborted is returned when the user declines the search plan.
var errAborted = errors.New("research aborted: search plan not confirmed")

func newRunCommand() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research one topic in the terminal",
		Long: `Research one topic in the terminal and write the Markdown report to stdout.

Clarifying questions are answered from --answer flags, in order, or read from
stdin one line per question. The search plan is confirmed with --yes or
interactively. Progress goes to stderr.`,
		Example: `  openresearch run --topic "solid-state batteries" --depth deep --yes
  openresearch run --topic "rust vs go" --answer "backend services" --answer "2024" --yes > report.md`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.topic) == "" {
				return errors.New("--topic is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.engine.Shutdown(shutdownCtx)
			}()

			opts.in = cmd.InOrStdin()
			opts.out = cmd.OutOrStdout()
			opts.log = cmd.ErrOrStderr()
			return drive(ctx, a.engine, opts)
		},
	}

	cmd.Flags().StringVar(&opts.topic, "topic", "", "research topic (required)")
	cmd.Flags().StringVar(&opts.depth, "depth", "standard", "brief, standard or deep")
	cmd.Flags().StringArrayVar(&opts.answers, "answer", nil, "answer to a clarifying question (repeatable, in order)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "run the proposed searches without asking")
	return cmd
}

type runOptions struct {
	topic   string
	depth   string
	answers []string
	yes     bool

	in  io.Reader
	out io.Writer
	log io.Writer
}

// driver is the part of the engine the terminal flow needs.
type driver interface {
	Start(ctx context.Context, topic, depth string) (string, error)
	Get(ctx context.Context, id string) (*api.Task, error)
	Confirm(ctx context.Context, id string, queries []api.SearchQuery) bool
	Clarify(ctx context.Context, id string, answers []string) bool
	Subscribe(ctx context.Context, id string) (<-chan *api.Task, func(), error)
}

// drive starts a task and follows it to a terminal status, answering the
// gates from opts. The report is written to opts.out.
func drive(ctx context.Context, eng driver, opts runOptions) error {
	if err := api.ValidateStartRequest(&api.StartRequest{Topic: opts.topic, Depth: opts.depth}); err != nil {
		return errors.New(err.Message)
	}

	id, err := eng.Start(ctx, opts.topic, opts.depth)
	if err != nil {
		return err
	}
	updates, cancel, err := eng.Subscribe(ctx, id)
	if err != nil {
		return err
	}
	defer cancel()

	stdin := bufio.NewScanner(opts.in)
	lastMessage := ""
	// Snapshots published before a gate was answered may still arrive.
	clarified, confirmed := false, false
	handle := func(t *api.Task) (bool, error) {
		if t.Message != lastMessage {
			fmt.Fprintf(opts.log, "[%s] %s\n", t.Status, t.Message)
			lastMessage = t.Message
		}
		switch {
		case t.Status == api.TaskStatusDone:
			if t.ReportMarkdown != nil {
				fmt.Fprintln(opts.out, *t.ReportMarkdown)
				if n := len(render.Links(*t.ReportMarkdown)); n > 0 {
					fmt.Fprintf(opts.log, "report cites %d sources\n", n)
				}
			}
			return true, nil
		case t.Status == api.TaskStatusError:
			return true, errors.New(t.Message)
		case t.AwaitingClarification && !clarified:
			clarified = true
			answers := collectAnswers(t.ClarifyingQuestions, opts, stdin)
			if !eng.Clarify(ctx, id, answers) {
				return false, errors.New("task is no longer awaiting clarification")
			}
		case t.AwaitingConfirmation && t.Plan != nil && !confirmed:
			confirmed = true
			ok, err := confirmPlan(t.Plan, opts, stdin)
			if err != nil {
				return true, err
			}
			if !ok {
				return true, errAborted
			}
			if !eng.Confirm(ctx, id, t.Plan.Queries) {
				return false, errors.New("task is no longer awaiting confirmation")
			}
		}
		return false, nil
	}

	snap, err := eng.Get(ctx, id)
	if err != nil {
		return err
	}
	if done, err := handle(snap); done || err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-updates:
			if !ok {
				return errors.New("task updates ended unexpectedly")
			}
			if done, err := handle(t); done || err != nil {
				return err
			}
		}
	}
}

func collectAnswers(q *api.ClarifyingQuestions, opts runOptions, stdin *bufio.Scanner) []string {
	if q == nil {
		return []string{}
	}
	answers := make([]string, 0, len(q.Questions))
	for i, question := range q.Questions {
		fmt.Fprintf(opts.log, "\nQ%d: %s\n", i+1, question.Question)
		if question.Context != nil && *question.Context != "" {
			fmt.Fprintf(opts.log, "    (%s)\n", *question.Context)
		}
		for j, o := range question.Options {
			fmt.Fprintf(opts.log, "    %d) %s\n", j+1, o)
		}

		var answer string
		switch {
		case i < len(opts.answers):
			answer = opts.answers[i]
			fmt.Fprintf(opts.log, "> %s\n", answer)
		case len(opts.answers) == 0:
			fmt.Fprint(opts.log, "> ")
			if stdin.Scan() {
				answer = strings.TrimSpace(stdin.Text())
			}
		}
		answers = append(answers, answer)
	}
	return answers
}

func confirmPlan(plan *api.SearchPlan, opts runOptions, stdin *bufio.Scanner) (bool, error) {
	fmt.Fprintf(opts.log, "\nSearch plan for %q:\n", plan.Topic)
	for i, q := range plan.Queries {
		fmt.Fprintf(opts.log, "  %d. %s\n", i+1, q.Query)
		if q.Rationale != nil && *q.Rationale != "" {
			fmt.Fprintf(opts.log, "     %s\n", *q.Rationale)
		}
	}
	if opts.yes {
		return true, nil
	}

	fmt.Fprintf(opts.log, "Run these %d searches? [Y/n] ", len(plan.Queries))
	if !stdin.Scan() {
		return false, errors.New("no confirmation on stdin: pass --yes to run without asking")
	}
	switch strings.ToLower(strings.TrimSpace(stdin.Text())) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
