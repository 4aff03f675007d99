// Package postgres archives completed research reports in PostgreSQL using
// pgx/v5. The archive is write-only from the engine's point of view: task
// state is never restored from it.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/storage"
)

// Archive stores one row per completed task.
type Archive struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Report is an archived research result.
type Report struct {
	TaskID         string
	Owner          string
	Topic          string
	Depth          api.Depth
	Plan           api.SearchPlan
	Steps          []api.SearchStep
	ReportMarkdown string
	StartedAt      time.Time
	CompletedAt    time.Time
}

// New connects to PostgreSQL. If MigrateOnStart is true, schema migrations
// are applied before returning.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a := &Archive{pool: pool, now: time.Now}
	if cfg.MigrateOnStart {
		if err := a.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return a, nil
}

// SaveReport archives a task that reached done. Saving the same task twice
// returns storage.ErrConflict.
func (a *Archive) SaveReport(ctx context.Context, t *api.Task) error {
	if t.Status != api.TaskStatusDone || t.ReportMarkdown == nil || t.Plan == nil {
		return fmt.Errorf("task %s is not complete (status %s)", t.ID, t.Status)
	}

	planJSON, err := json.Marshal(t.Plan)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	steps := t.Steps
	if steps == nil {
		steps = []api.SearchStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshaling steps: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO research_reports (
			task_id, owner, topic, depth, plan, steps,
			report_markdown, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		t.ID, t.Owner, t.Topic, string(t.Depth), planJSON, stepsJSON,
		*t.ReportMarkdown, t.StartedAt, a.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport reads an archived report, scoped by the context's owner.
func (a *Archive) GetReport(ctx context.Context, taskID string) (*Report, error) {
	query := `
		SELECT task_id, owner, topic, depth, plan, steps,
		       report_markdown, started_at, completed_at
		FROM research_reports
		WHERE task_id = $1
	`
	args := []any{taskID}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner = $2"
		args = append(args, owner)
	}

	var r Report
	var depth string
	var planJSON, stepsJSON []byte
	err := a.pool.QueryRow(ctx, query, args...).Scan(
		&r.TaskID, &r.Owner, &r.Topic, &depth, &planJSON, &stepsJSON,
		&r.ReportMarkdown, &r.StartedAt, &r.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}

	r.Depth = api.Depth(depth)
	if err := json.Unmarshal(planJSON, &r.Plan); err != nil {
		return nil, fmt.Errorf("unmarshaling plan: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &r.Steps); err != nil {
		return nil, fmt.Errorf("unmarshaling steps: %w", err)
	}
	return &r, nil
}

// HealthCheck verifies the database connection.
func (a *Archive) HealthCheck(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
