package driven

import (
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// Metrics records operational counters.
type Metrics interface {
	// ObserveRun records a finished import run.
	ObserveRun(report *domain.ImportReport)

	// ObserveItemRetry records one retry of a list or fetch call.
	ObserveItemRetry(provider domain.ProviderType, kind domain.ErrorKind)

	// ObserveRefresh records a token refresh attempt and its outcome.
	ObserveRefresh(provider domain.ProviderType, outcome string, duration time.Duration)
}
