// Package sqlite journals the initialization stages of each game mode in the SQLite
// database of the mode, an interrupted start leaves its unfinished stages behind.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
)

const stepColumns = `id, owner, operation, sequence, name, status, error, created_at, finished_at`

// JournalConfig is the configuration of the SQLite stage journal.
type JournalConfig struct {
	DB *sql.DB
	// Now returns the current time, defaults to time.Now.
	Now    func() time.Time
	Logger log.Logger
}

func (c *JournalConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.sqlite.Journal"})
	return nil
}

// Journal is a task.Journal stored in SQLite. The owner is the game mode ID and the steps
// are the stages of the operation.
type Journal struct {
	db     *sql.DB
	now    func() time.Time
	logger log.Logger
}

var _ task.Journal = &Journal{}

// NewJournal returns a new SQLite stage journal.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Journal{
		db:     cfg.DB,
		now:    cfg.Now,
		logger: cfg.Logger,
	}, nil
}

// AddSteps appends the stages to the operation of a game mode, after the ones already journaled.
func (j *Journal) AddSteps(ctx context.Context, modeID, operation string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM journal_steps WHERE owner = ? AND operation = ?`,
		modeID, operation).Scan(&last)
	if err != nil {
		return fmt.Errorf("could not get the last stage: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal_steps (id, owner, operation, sequence, name, status, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, 0)`)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	createdAt := j.now().UTC().Unix()
	for i, name := range names {
		_, err := stmt.ExecContext(ctx, ulid.Make().String(), modeID, operation, last+i+1, name, task.StepStatusPending, createdAt)
		if err != nil {
			return fmt.Errorf("could not journal stage %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	j.logger.Debugf("%d stages journaled for %s %s", len(names), modeID, operation)
	return nil
}

// NextStep returns the first pending stage of the operation, nil when none is left.
func (j *Journal) NextStep(ctx context.Context, modeID, operation string) (*task.Step, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+stepColumns+`
		FROM journal_steps
		WHERE owner = ? AND operation = ? AND status = ?
		ORDER BY sequence ASC
		LIMIT 1`,
		modeID, operation, task.StepStatusPending)

	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get the next stage: %w", err)
	}
	return step, nil
}

// Steps returns every stage of the operation in order.
func (j *Journal) Steps(ctx context.Context, modeID, operation string) ([]task.Step, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM journal_steps
		WHERE owner = ? AND operation = ?
		ORDER BY sequence ASC`,
		modeID, operation)
	if err != nil {
		return nil, fmt.Errorf("could not list stages: %w", err)
	}
	defer rows.Close()

	var steps []task.Step
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("could not read stage: %w", err)
		}
		steps = append(steps, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not list stages: %w", err)
	}
	return steps, nil
}

// CompleteStep marks a stage as done.
func (j *Journal) CompleteStep(ctx context.Context, stepID string) error {
	if err := j.finish(ctx, stepID, task.StepStatusDone, ""); err != nil {
		return err
	}
	j.logger.Debugf("Stage %s done", stepID)
	return nil
}

// FailStep marks a stage as failed keeping the error message.
func (j *Journal) FailStep(ctx context.Context, stepID string, stepErr error) error {
	msg := ""
	if stepErr != nil {
		msg = stepErr.Error()
	}
	if err := j.finish(ctx, stepID, task.StepStatusFailed, msg); err != nil {
		return err
	}
	j.logger.Debugf("Stage %s failed: %s", stepID, msg)
	return nil
}

// finish ends a pending stage, a finished stage keeps its first outcome.
func (j *Journal) finish(ctx context.Context, stepID string, status task.StepStatus, msg string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE journal_steps SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status = ?`,
		status, msg, j.now().UTC().Unix(), stepID, task.StepStatusPending)
	if err != nil {
		return fmt.Errorf("could not update stage: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get updated stages: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pending stage %s: %w", stepID, model.ErrNotFound)
	}
	return nil
}

// Progress returns how many stages of the operation ended.
func (j *Journal) Progress(ctx context.Context, modeID, operation string) (*task.JournalProgress, error) {
	var p task.JournalProgress
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM journal_steps
		WHERE owner = ? AND operation = ?`,
		task.StepStatusDone, task.StepStatusFailed, modeID, operation).Scan(&p.Total, &p.Done, &p.Failed)
	if err != nil {
		return nil, fmt.Errorf("could not get progress: %w", err)
	}
	return &p, nil
}

// HasPendingOperation returns the oldest operation of the game mode with pending stages.
func (j *Journal) HasPendingOperation(ctx context.Context, modeID string) (string, bool, error) {
	var operation string
	err := j.db.QueryRowContext(ctx, `
		SELECT operation
		FROM journal_steps
		WHERE owner = ? AND status = ?
		ORDER BY created_at ASC, sequence ASC
		LIMIT 1`,
		modeID, task.StepStatusPending).Scan(&operation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("could not get pending operation: %w", err)
	}
	return operation, true, nil
}

// ClearOperation forgets every stage of the operation.
func (j *Journal) ClearOperation(ctx context.Context, modeID, operation string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM journal_steps WHERE owner = ? AND operation = ?`, modeID, operation)
	if err != nil {
		return fmt.Errorf("could not delete stages: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil {
		j.logger.Debugf("%d stages of %s %s cleared", n, modeID, operation)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStep(row scanner) (*task.Step, error) {
	var (
		s                     task.Step
		createdAt, finishedAt int64
	)
	err := row.Scan(&s.ID, &s.Owner, &s.Operation, &s.Sequence, &s.Name, &s.Status, &s.Error, &createdAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	if finishedAt > 0 {
		s.FinishedAt = time.Unix(finishedAt, 0).UTC()
	}
	return &s, nil
}
