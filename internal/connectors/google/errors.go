package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// rateLimitReasons are 403 reasons Google uses for throttling rather than
// missing permission.
var rateLimitReasons = map[string]bool{
	"ratelimitexceeded":     true,
	"userratelimitexceeded": true,
	"rate_limit_exceeded":   true,
	"quotaexceeded":         true,
}

// Classify converts a Google API error into a *domain.ProviderError.
// Context errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	kind := domain.KindUnknown
	var retryAfter time.Duration

	var gerr *googleapi.Error
	switch {
	case errors.As(err, &gerr):
		kind = kindFor(gerr)
		retryAfter = connectors.RetryAfter(gerr.Header, time.Now())
	case connectors.IsNetworkError(err):
		kind = domain.KindTransient
	}

	perr := domain.NewProviderError(domain.ProviderGoogle, op, kind, err)
	perr.RetryAfter = retryAfter
	return perr
}

// IsRateLimitReason reports whether a 403 carries a throttling reason.
func IsRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[strings.ToLower(item.Reason)] {
			return true
		}
	}
	return strings.Contains(strings.ToLower(gerr.Message), "rate limit")
}

func kindFor(gerr *googleapi.Error) domain.ErrorKind {
	if gerr.Code == http.StatusForbidden && IsRateLimitReason(gerr) {
		return domain.KindRateLimited
	}
	return connectors.KindForStatus(gerr.Code)
}
