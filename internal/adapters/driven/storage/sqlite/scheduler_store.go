package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const (
	selectTask = `SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM scheduled_tasks WHERE id = ?`

	upsertTask = `INSERT INTO scheduled_tasks
		(id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled`

	insertResult = `INSERT INTO task_results
		(task_id, started_at, ended_at, success, error, accounts_refreshed)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectLastResult = `SELECT task_id, started_at, ended_at, success, error, accounts_refreshed
		FROM task_results WHERE task_id = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`

	pruneResults = `DELETE FROM task_results WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
			FROM task_results
		) WHERE rn > ?
	)`
)

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	var (
		task                                   domain.ScheduledTask
		seconds                                int64
		lastRun, nextRun, lastErr, lastSuccess sql.NullString
		enabled                                int
	)
	err := s.store.db.QueryRowContext(ctx, selectTask, taskID).Scan(
		&task.ID, &task.Name, &seconds, &lastRun, &nextRun, &lastErr, &lastSuccess, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}

	task.Interval = time.Duration(seconds) * time.Second
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastErr.String
	task.Enabled = enabled == 1
	return &task, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, upsertTask,
		task.ID, task.Name, int64(task.Interval/time.Second),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		nullString(task.LastError), formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, r *domain.TaskResult) error {
	if r == nil || r.TaskID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, insertResult,
		r.TaskID, formatTime(r.StartedAt), formatTime(r.EndedAt),
		boolToInt(r.Success), nullString(r.Error), r.AccountsRefreshed)
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", r.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) LastResult(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	var (
		r              domain.TaskResult
		started, ended sql.NullString
		errMsg         sql.NullString
		success        int
	)
	err := s.store.db.QueryRowContext(ctx, selectLastResult, taskID).Scan(
		&r.TaskID, &started, &ended, &success, &errMsg, &r.AccountsRefreshed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last result for %s: %w", taskID, err)
	}
	r.StartedAt = parseNullableTime(started)
	r.EndedAt = parseNullableTime(ended)
	r.Success = success == 1
	r.Error = errMsg.String
	return &r, nil
}

func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	if _, err := s.store.db.ExecContext(ctx, pruneResults, keep); err != nil {
		return fmt.Errorf("pruning task results: %w", err)
	}
	return nil
}
