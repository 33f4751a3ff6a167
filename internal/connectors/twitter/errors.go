package twitter

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// APIError is a problem object from the Twitter API.
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status,omitempty"`
}

func (e APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("twitter: %s: %s", e.Title, e.Detail)
	}
	return "twitter: " + e.Title
}

// isNotFound reports whether a problem object describes a missing resource.
// Twitter answers 200 with an errors array for deleted or protected tweets.
func (e APIError) isNotFound() bool {
	return strings.HasSuffix(e.Type, "/resource-not-found") || strings.Contains(strings.ToLower(e.Title), "not found")
}

// statusError classifies a non-2xx response.
func statusError(op string, resp *http.Response, body []byte) error {
	perr := domain.NewProviderError(domain.ProviderTwitter, op, connectors.KindForStatus(resp.StatusCode),
		fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	perr.RetryAfter = connectors.RetryAfter(resp.Header, time.Now())
	return perr
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
