package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// errorResponse is the body of every non-2xx reply without a report.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	requestID := middleware.GetReqID(r.Context())

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request_id=%s %s %s: %v", requestID, r.Method, r.URL.Path, err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code, RequestID: requestID})
}

// classify maps a core error onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusNotFound, "not_connected"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidSelector):
		return http.StatusUnprocessableEntity, "invalid_selector"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return http.StatusBadRequest, "unsupported_provider"
	case errors.Is(err, domain.ErrInsufficientScope):
		return http.StatusConflict, "insufficient_scope"
	case errors.Is(err, domain.ErrReauthRequired), errors.Is(err, domain.ErrAuthLost):
		return http.StatusConflict, "reauth_required"
	case errors.Is(err, domain.ErrTokenRefreshFailed):
		return http.StatusBadGateway, "token_refresh_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// importStatus maps an aborted run onto an HTTP status. The report is the body.
func importStatus(reason domain.AbortReason) int {
	switch reason {
	case domain.AbortNotConnected:
		return http.StatusNotFound
	case domain.AbortNeedsReconsent, domain.AbortAuthLost, domain.AbortInsufficientScope:
		return http.StatusConflict
	case domain.AbortInvalidSelector:
		return http.StatusUnprocessableEntity
	case domain.AbortProvider:
		return http.StatusBadGateway
	case domain.AbortCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
