package connectors

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// Rate limit headers seen across providers.
const (
	HeaderRetryAfter     = "Retry-After"
	HeaderRateLimitReset = "X-Rate-Limit-Reset"
)

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(code int) domain.ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return domain.KindAuthExpired
	case code == http.StatusForbidden:
		return domain.KindInsufficientScope
	case code == http.StatusNotFound, code == http.StatusGone:
		return domain.KindNotFound
	case code == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return domain.KindTransient
	default:
		return domain.KindUnknown
	}
}

// RetryAfter reads the provider's retry hint from response headers.
// Retry-After may be seconds or an HTTP date; X-Rate-Limit-Reset is a
// Unix timestamp. Returns zero when no usable hint is present.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	if v := h.Get(HeaderRetryAfter); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil && at.After(now) {
			return at.Sub(now)
		}
	}
	if v := h.Get(HeaderRateLimitReset); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			if at := time.Unix(unix, 0); at.After(now) {
				return at.Sub(now)
			}
		}
	}
	return 0
}

// IsNetworkError reports whether err is a transport failure worth retrying.
// Context cancellation is not.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
