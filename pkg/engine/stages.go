package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/observability"
	"github.com/rhuss/openresearch/pkg/parse"
)

var errTerminal = errors.New("task already finished")

// setStatus moves t to status after checking the transition. t is left
// untouched when the transition is not allowed.
func setStatus(t *api.Task, status api.TaskStatus, message string) error {
	if apiErr := api.ValidateTaskTransition(t.Status, status); apiErr != nil {
		return apiErr
	}
	t.Status = status
	t.Message = message
	return nil
}

// update applies fn to the stored task and publishes the resulting snapshot.
func (e *Engine) update(ctx context.Context, id string, fn func(t *api.Task) error) (*api.Task, error) {
	var from api.TaskStatus
	snap, err := e.store.Update(ctx, id, func(t *api.Task) error {
		from = t.Status
		return fn(t)
	})
	if err != nil {
		return nil, err
	}
	if snap.Status != from {
		observability.TaskTransitions.WithLabelValues(string(snap.Status)).Inc()
		debug.Log("engine", "task transition", "task_id", id, "from", from, "to", snap.Status)
	}
	e.events.publish(snap)
	return snap, nil
}

// fail moves the task to error. Tasks already in a terminal status are
// left alone.
func (e *Engine) fail(id, prefix string, cause error) {
	message := prefix + cause.Error()
	_, err := e.update(context.Background(), id, func(t *api.Task) error {
		if t.Status.IsTerminal() {
			return errTerminal
		}
		if err := setStatus(t, api.TaskStatusError, message); err != nil {
			return err
		}
		t.AwaitingClarification = false
		t.AwaitingConfirmation = false
		return nil
	})
	if err != nil {
		debug.Log("engine", "fail skipped", "task_id", id, "error", err)
		return
	}
	slog.Error("research task failed", "task_id", id, "error", cause)
}

// runClarify asks for clarifying questions. With at least one question the
// task parks behind the clarification gate; otherwise planning follows on
// the same goroutine.
func (e *Engine) runClarify(ctx context.Context, id, topic string, depth api.Depth) error {
	if _, err := e.update(ctx, id, func(t *api.Task) error {
		return setStatus(t, api.TaskStatusClarifying, "Asking clarifying questions")
	}); err != nil {
		return e.abort(id, "Failed: ", err)
	}

	reasoner := e.providers.Current().Reasoner
	prompt := clarifyingPrompt(topic, depth)
	resp, err := reasoner.Think(ctx, prompt)
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}
	debug.Exchange("engine", id, "clarify", prompt, resp)

	questions, perr := parse.Questions(resp, topic)
	if perr != nil {
		debug.Log("engine", "clarifying questions unparseable, skipping clarification", "task_id", id, "error", perr)
	}

	// questions belongs to the store once written.
	n := len(questions.Questions)
	snap, err := e.update(ctx, id, func(t *api.Task) error {
		next, message := api.TaskStatusPlanning, "Creating search plan"
		if n > 0 {
			next, message = api.TaskStatusAwaitingClarification, "Waiting for your input on clarifying questions"
		}
		if err := setStatus(t, next, message); err != nil {
			return err
		}
		t.ClarifyingPrompt = api.StringPtr(prompt)
		t.ClarifyingResponse = api.StringPtr(resp)
		t.ClarifyingQuestions = questions
		t.AwaitingClarification = next == api.TaskStatusAwaitingClarification
		return nil
	})
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}
	if snap.AwaitingClarification {
		slog.Info("awaiting clarification", "task_id", id, "questions", n)
		return nil
	}
	return e.runPlan(ctx, id, topic, e.cfg.DepthPolicy.planDepth(depth, false), nil, "Failed: ")
}

// runPlan builds the search plan and parks the task behind the
// confirmation gate. The task must already be in planning.
func (e *Engine) runPlan(ctx context.Context, id, topic string, depth api.Depth, answers []string, failPrefix string) error {
	reasoner := e.providers.Current().Reasoner
	prompt := planPrompt(topic, depth, answers)
	resp, err := reasoner.Think(ctx, prompt)
	if err != nil {
		return e.abort(id, failPrefix, err)
	}
	debug.Exchange("engine", id, "plan", prompt, resp)

	plan, perr := parse.Plan(resp, topic)
	if perr != nil {
		debug.Log("engine", "plan unparseable, using fallback queries", "task_id", id, "error", perr)
	}

	// plan belongs to the store once written; Confirm replaces its queries.
	n := len(plan.Queries)
	if _, err := e.update(ctx, id, func(t *api.Task) error {
		if err := setStatus(t, api.TaskStatusAwaitingConfirmation, "Waiting for search query confirmation"); err != nil {
			return err
		}
		t.PlanPrompt = api.StringPtr(prompt)
		t.PlanResponse = api.StringPtr(resp)
		t.Plan = plan
		t.AwaitingConfirmation = true
		return nil
	}); err != nil {
		return e.abort(id, failPrefix, err)
	}
	slog.Info("awaiting confirmation", "task_id", id, "queries", n)
	return nil
}

// runSearch executes the confirmed queries one at a time, in plan order,
// recording a step after each, then writes the report.
func (e *Engine) runSearch(ctx context.Context, id string) error {
	snap, err := e.store.Get(ctx, id)
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}
	var queries []api.SearchQuery
	if snap.Plan != nil {
		queries = snap.Plan.Queries
	}

	searcher := e.providers.Current().Searcher
	for i, q := range queries {
		message := fmt.Sprintf("Searching (%d/%d): %s", i+1, len(queries), q.Query)
		if _, err := e.update(ctx, id, func(t *api.Task) error {
			return setStatus(t, api.TaskStatusSearching, message)
		}); err != nil {
			return e.abort(id, "Failed: ", err)
		}

		hits, err := searcher.Search(ctx, q.Query, e.cfg.Search)
		if err != nil {
			return e.abort(id, "Failed: ", err)
		}
		if hits == nil {
			hits = []api.SearchHit{}
		}
		debug.Log("engine", "search step", "task_id", id, "query", q.Query, "hits", len(hits))

		step := api.SearchStep{Query: q.Query, Hits: hits}
		if _, err := e.update(ctx, id, func(t *api.Task) error {
			if t.Status != api.TaskStatusSearching {
				return fmt.Errorf("task left searching: %s", t.Status)
			}
			t.Steps = append(t.Steps, step)
			return nil
		}); err != nil {
			return e.abort(id, "Failed: ", err)
		}
	}
	return e.runReport(ctx, id)
}

// runReport synthesizes the report from the recorded steps, completes the
// task and hands it to the archive.
func (e *Engine) runReport(ctx context.Context, id string) error {
	snap, err := e.update(ctx, id, func(t *api.Task) error {
		return setStatus(t, api.TaskStatusReporting, "Compiling report")
	})
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}

	topic := snap.Topic
	if snap.Plan != nil && snap.Plan.Topic != "" {
		topic = snap.Plan.Topic
	}
	prompt := reportPrompt(topic, snap.Steps, e.cfg.DepthPolicy.reportDepth(snap.Depth))

	reasoner := e.providers.Current().Reasoner
	resp, err := reasoner.Complete(ctx, prompt)
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}
	debug.Exchange("engine", id, "report", prompt, resp)

	done, err := e.update(ctx, id, func(t *api.Task) error {
		if err := setStatus(t, api.TaskStatusDone, "Completed"); err != nil {
			return err
		}
		t.ReportPrompt = api.StringPtr(prompt)
		t.ReportResponse = api.StringPtr(resp)
		t.ReportMarkdown = api.StringPtr(resp)
		return nil
	})
	if err != nil {
		return e.abort(id, "Failed: ", err)
	}
	slog.Info("research task completed", "task_id", id, "steps", len(done.Steps), "report_len", len(resp))

	e.archive(ctx, done)
	return nil
}

// archive stores a completed task. Failures are logged; the task stays done.
func (e *Engine) archive(ctx context.Context, t *api.Task) {
	if e.cfg.Archive == nil {
		return
	}
	err := e.cfg.Archive.SaveReport(context.WithoutCancel(ctx), t)
	if err != nil {
		observability.ArchiveWritesTotal.WithLabelValues("error").Inc()
		slog.Warn("archiving report failed", "task_id", t.ID, "error", err)
		return
	}
	observability.ArchiveWritesTotal.WithLabelValues("success").Inc()
	debug.Log("engine", "report archived", "task_id", t.ID)
}

// abort fails the task and returns cause for the stage handle.
func (e *Engine) abort(id, prefix string, cause error) error {
	e.fail(id, prefix, cause)
	return cause
}
