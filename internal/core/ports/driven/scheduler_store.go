package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// SchedulerStore persists the refresh task so its interval survives restarts.
type SchedulerStore interface {
	// GetTask returns nil and no error if the task was never saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// LastResult returns the most recent result for a task, or nil if it never ran.
	LastResult(ctx context.Context, taskID string) (*domain.TaskResult, error)

	// PruneHistory keeps the newest keep results per task.
	PruneHistory(ctx context.Context, keep int) error
}
