package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ImportService runs content imports.
type ImportService interface {
	// StartImport runs one import synchronously and returns its report.
	// An aborted run returns both the report and a *domain.ImportError.
	StartImport(ctx context.Context, req domain.ImportRequest) (*domain.ImportReport, error)

	// ActiveRuns returns a snapshot of in-flight runs.
	ActiveRuns() []domain.ActiveRun
}
