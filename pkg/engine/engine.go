package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/observability"
	"github.com/rhuss/openresearch/pkg/provider"
	"github.com/rhuss/openresearch/pkg/storage"
)

// Store is the task store the engine reads and writes. Get returns
// snapshots; Update runs fn under the store lock.
type Store interface {
	Create(ctx context.Context, t *api.Task) error
	Get(ctx context.Context, id string) (*api.Task, error)
	Update(ctx context.Context, id string, fn func(t *api.Task) error) (*api.Task, error)
}

// Providers yields the active provider Set. *provider.Registry implements it.
type Providers interface {
	Current() *provider.Set
}

// Archiver stores completed tasks.
type Archiver interface {
	SaveReport(ctx context.Context, t *api.Task) error
}

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("engine is shutting down")

// errNotInGate is returned from Update callbacks when a task is not parked
// behind the gate a call expects. It never leaves the package.
var errNotInGate = errors.New("task is not awaiting this input")

// Engine runs research tasks.
type Engine struct {
	store     Store
	providers Providers
	cfg       Config
	events    *broker

	baseCtx context.Context
	stopAll context.CancelFunc

	mu      sync.Mutex
	handles map[string]*Handle
	closing bool
	wg      sync.WaitGroup
}

// New creates an Engine. store and providers must not be nil.
func New(store Store, providers Providers, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store must not be nil")
	}
	if providers == nil || providers.Current() == nil {
		return nil, fmt.Errorf("engine: providers must not be nil")
	}
	if cfg.DepthPolicy == "" {
		cfg.DepthPolicy = DepthPropagate
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     store,
		providers: providers,
		cfg:       cfg,
		events:    newBroker(),
		baseCtx:   ctx,
		stopAll:   cancel,
		handles:   make(map[string]*Handle),
	}, nil
}

// Start creates a task and launches its clarify stage. It returns as soon
// as the task is stored. The context's owner, if any, owns the task.
func (e *Engine) Start(ctx context.Context, topic, depth string) (string, error) {
	e.mu.Lock()
	closing := e.closing
	e.mu.Unlock()
	if closing {
		return "", ErrShuttingDown
	}

	d := api.NormalizeDepth(depth)
	task := &api.Task{
		ID:        api.NewTaskID(),
		Topic:     topic,
		Depth:     d,
		Owner:     storage.GetOwner(ctx),
		StartedAt: e.cfg.now(),
		Status:    api.TaskStatusStarting,
		Message:   "Generating search plan",
		Steps:     []api.SearchStep{},
	}
	if err := e.store.Create(ctx, task); err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	observability.TasksStarted.WithLabelValues(string(d)).Inc()
	observability.TaskTransitions.WithLabelValues(string(api.TaskStatusStarting)).Inc()
	slog.Info("research task started", "task_id", task.ID, "topic", topic, "depth", d)

	e.launch(task.ID, "clarify", func(ctx context.Context) error {
		return e.runClarify(ctx, task.ID, topic, d)
	})
	return task.ID, nil
}

// Get returns a snapshot of the task, or storage.ErrNotFound.
func (e *Engine) Get(ctx context.Context, id string) (*api.Task, error) {
	return e.store.Get(ctx, id)
}

// Confirm replaces the plan's queries and launches the search stage. It
// reports false, without touching the task, when the task is unknown or not
// awaiting confirmation.
func (e *Engine) Confirm(ctx context.Context, id string, queries []api.SearchQuery) bool {
	if e.isClosing() {
		return false
	}
	approved := append([]api.SearchQuery{}, queries...)
	_, err := e.update(ctx, id, func(t *api.Task) error {
		if !t.AwaitingConfirmation || t.Status != api.TaskStatusAwaitingConfirmation || t.Plan == nil {
			return errNotInGate
		}
		if err := setStatus(t, api.TaskStatusSearching, "Executing web searches"); err != nil {
			return err
		}
		t.Plan.Queries = approved
		t.AwaitingConfirmation = false
		return nil
	})
	if err != nil {
		debug.Log("engine", "confirm rejected", "task_id", id, "error", err)
		return false
	}

	e.launch(id, "search", func(ctx context.Context) error {
		return e.runSearch(ctx, id)
	})
	return true
}

// Clarify records the answers and launches planning. It reports false,
// without touching the task, when the task is unknown or not awaiting
// clarification.
func (e *Engine) Clarify(ctx context.Context, id string, answers []string) bool {
	if e.isClosing() {
		return false
	}
	snap, err := e.update(ctx, id, func(t *api.Task) error {
		if !t.AwaitingClarification || t.Status != api.TaskStatusAwaitingClarification {
			return errNotInGate
		}
		if err := setStatus(t, api.TaskStatusPlanning, "Creating enhanced search plan with your input"); err != nil {
			return err
		}
		t.AwaitingClarification = false
		return nil
	})
	if err != nil {
		debug.Log("engine", "clarify rejected", "task_id", id, "error", err)
		return false
	}

	topic := snap.Topic
	if snap.ClarifyingQuestions != nil && snap.ClarifyingQuestions.Topic != "" {
		topic = snap.ClarifyingQuestions.Topic
	}
	depth := e.cfg.DepthPolicy.planDepth(snap.Depth, true)
	given := append([]string{}, answers...)

	e.launch(id, "plan", func(ctx context.Context) error {
		return e.runPlan(ctx, id, topic, depth, given, "Failed during planning: ")
	})
	return true
}

// Subscribe streams snapshots of the task after every change. The channel
// is closed when the task reaches a terminal status or cancel is called.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan *api.Task, func(), error) {
	if _, err := e.store.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := e.events.subscribe(id)
	// A task may have finished between the lookup and the subscription.
	if snap, err := e.store.Get(ctx, id); err == nil && snap.Status.IsTerminal() {
		e.events.publish(snap)
	}
	return ch, cancel, nil
}

// Handle returns the handle of the task's most recently launched stage.
func (e *Engine) Handle(id string) (*Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

// Wait blocks until the task's current stage goroutine returns. A parked
// or finished task returns immediately.
func (e *Engine) Wait(ctx context.Context, id string) error {
	h, ok := e.Handle(id)
	if !ok {
		if _, err := e.store.Get(ctx, id); err != nil {
			return err
		}
		return nil
	}
	return h.Wait(ctx)
}

// Shutdown stops accepting new work and waits for running stages. When ctx
// expires first the remaining stages are cancelled, which fails their tasks.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.stopAll()
		return nil
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached, cancelling running stages")
		e.stopAll()
		<-done
		return ctx.Err()
	}
}

func (e *Engine) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

// launch runs fn on a new goroutine tracked by a Handle. A panic in fn
// fails the task instead of the process.
func (e *Engine) launch(taskID, stage string, fn func(ctx context.Context) error) *Handle {
	ctx, cancel := context.WithCancel(e.baseCtx)
	h := newHandle(stage, cancel)

	e.mu.Lock()
	e.handles[taskID] = h
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s stage: %v", stage, r)
				slog.Error("stage panicked", "task_id", taskID, "stage", stage, "panic", r)
				e.fail(taskID, "Failed: ", err)
			}
			observability.ObserveStage(stage, start)
			h.finish(err)
		}()
		err = fn(ctx)
	}()
	return h
}
