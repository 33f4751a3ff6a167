package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// EventPublisher announces lifecycle events to other services.
// Publishing is best effort; callers log failures and carry on.
type EventPublisher interface {
	// ImportFinished is published once per run, completed or aborted.
	ImportFinished(ctx context.Context, report *domain.ImportReport) error

	// AccountDisconnected is published after a successful disconnect.
	AccountDisconnected(ctx context.Context, userID string, provider domain.ProviderType, itemsDeleted int) error
}
