package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedProvider indicates an unknown provider or an item kind
	// the provider cannot import.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidSelector indicates an import selector that cannot be run.
	ErrInvalidSelector = errors.New("invalid import selector")

	// Connection Errors.

	// ErrNotConnected indicates the user has never connected the provider.
	// Remediation is a first-time connect.
	ErrNotConnected = errors.New("provider not connected")

	// ErrReauthRequired indicates the tokens cannot be recovered: no refresh
	// token, or the provider rejected it. Remediation is to reconnect.
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrInsufficientScope indicates the account lacks a required capability.
	// Remediation is to reconnect granting broader permission.
	ErrInsufficientScope = errors.New("insufficient scope")

	// ErrAuthLost indicates the provider rejected the token during a run.
	ErrAuthLost = errors.New("authorization lost during import")

	// ErrTokenRefreshFailed indicates the refresh call failed for a reason
	// other than rejection (network, 5xx). It may succeed later.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrStaleToken indicates a write would replace a fresher token.
	ErrStaleToken = errors.New("stale token write rejected")

	// Storage Errors.

	// ErrStorage indicates the account or item store failed.
	ErrStorage = errors.New("storage error")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ErrorKind classifies a failure so callers branch on kind, never on
// provider status codes.
type ErrorKind string

const (
	KindAuthExpired       ErrorKind = "auth_expired"
	KindInsufficientScope ErrorKind = "insufficient_scope"
	KindRateLimited       ErrorKind = "rate_limited"
	KindNotFound          ErrorKind = "not_found"
	KindTransient         ErrorKind = "transient"
	KindUnknown           ErrorKind = "unknown"
	// KindStorage marks an item that could not be upserted.
	KindStorage ErrorKind = "storage"
	// KindInvalidItem marks an item that could not be normalised.
	KindInvalidItem ErrorKind = "invalid_item"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// IsAuth reports whether the kind means the token can no longer be used.
func (k ErrorKind) IsAuth() bool {
	return k == KindAuthExpired || k == KindInsufficientScope
}

// ProviderError is the classified error every provider adapter returns.
type ProviderError struct {
	Kind     ErrorKind
	Provider ProviderType
	// Op names the failed operation, e.g. "list", "fetch", "refresh".
	Op string
	// RetryAfter is the provider's retry hint, zero when absent.
	RetryAfter time.Duration
	Err        error
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the matching sentinel for a kind.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrInsufficientScope:
		return e.Kind == KindInsufficientScope
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider ProviderType, op string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err. Errors that were never
// classified by an adapter are KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	switch {
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}

// RetryAfterOf returns the provider's retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.RetryAfter
	}
	return 0
}

// ImportError is returned alongside an aborted ImportReport.
// errors.Is matches the sentinel that explains the remediation.
type ImportError struct {
	Reason AbortReason
	// ProviderItemID is set when the abort was triggered by a specific item.
	ProviderItemID string
	Err            error
}

// Error implements error.
func (e *ImportError) Error() string {
	msg := "import aborted: " + string(e.Reason)
	if e.ProviderItemID != "" {
		msg += " at item " + e.ProviderItemID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ImportError) Unwrap() error {
	return e.Err
}
