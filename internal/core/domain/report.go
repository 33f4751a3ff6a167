package domain

import "time"

// RunState is the terminal state of an import run.
type RunState string

const (
	RunCompleted RunState = "completed"
	RunAborted   RunState = "aborted"
)

// Phase is the step an in-flight import run is executing.
type Phase string

const (
	PhaseAuthorizing Phase = "authorizing"
	PhaseListing     Phase = "listing"
	PhaseFetching    Phase = "fetching"
	PhaseUpserting   Phase = "upserting"
)

// AbortReason explains why a run stopped before completing.
type AbortReason string

const (
	// AbortNotConnected means no account exists for the provider.
	AbortNotConnected AbortReason = "not_connected"
	// AbortNeedsReconsent means tokens are unrecoverable and the user must reconnect.
	AbortNeedsReconsent AbortReason = "needs_reconsent"
	// AbortInsufficientScope means the user must reconnect granting broader permission.
	AbortInsufficientScope AbortReason = "insufficient_scope"
	// AbortAuthLost means the provider rejected the token mid-run.
	AbortAuthLost AbortReason = "auth_lost"
	// AbortStorage means the account could not be read or written.
	AbortStorage AbortReason = "storage"
	// AbortProvider means listing failed after retries.
	AbortProvider AbortReason = "provider"
	// AbortInvalidSelector means the selector was rejected before any provider call.
	AbortInvalidSelector AbortReason = "invalid_selector"
	// AbortCancelled means the caller cancelled the run.
	AbortCancelled AbortReason = "cancelled"
)

// Budget bounds an import run. Zero fields mean "use the configured default".
type Budget struct {
	// MaxItems stops listing once this many items have been attempted.
	MaxItems int `json:"max_items,omitempty"`
	// Timeout stops listing once this much wall-clock time has elapsed.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ImportRequest is the input to one import run.
type ImportRequest struct {
	UserID   string
	Provider ProviderType
	Selector ImportSelector
	Budget   Budget
}

// ItemFailure records one item that could not be imported.
type ItemFailure struct {
	ProviderItemID string    `json:"provider_item_id"`
	Kind           ErrorKind `json:"error_kind"`
	Message        string    `json:"message,omitempty"`
}

// ImportReport is the outcome of one import run.
// A report is returned for every run, including aborted ones.
type ImportReport struct {
	RunID    string         `json:"run_id"`
	UserID   string         `json:"user_id"`
	Provider ProviderType   `json:"provider"`
	Selector ImportSelector `json:"selector"`

	State       RunState    `json:"state"`
	AbortReason AbortReason `json:"abort_reason,omitempty"`
	// Partial is true when the budget stopped the run before the provider ran out of pages.
	Partial bool `json:"partial"`

	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Inserted and Updated split Succeeded by whether the row already existed.
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`

	Failures []ItemFailure `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Completed reports whether the run reached the Completed state.
func (r *ImportReport) Completed() bool {
	return r.State == RunCompleted
}

// Duration returns how long the run took.
func (r *ImportReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordFailure appends a failure and bumps the failed count.
func (r *ImportReport) RecordFailure(id string, kind ErrorKind, err error) {
	f := ItemFailure{ProviderItemID: id, Kind: kind}
	if err != nil {
		f.Message = err.Error()
	}
	r.Failures = append(r.Failures, f)
	r.Failed++
}

// RecordSuccess bumps the succeeded count and the inserted/updated split.
func (r *ImportReport) RecordSuccess(stored StoredItem) {
	r.Succeeded++
	if stored.Created {
		r.Inserted++
	} else {
		r.Updated++
	}
}

// ActiveRun is a snapshot of an in-flight import for pollable status.
type ActiveRun struct {
	RunID     string       `json:"run_id"`
	UserID    string       `json:"user_id"`
	Provider  ProviderType `json:"provider"`
	Selector  string       `json:"selector"`
	Phase     Phase        `json:"phase"`
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	StartedAt time.Time    `json:"started_at"`
}
