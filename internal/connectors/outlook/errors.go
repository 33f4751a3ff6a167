package outlook

import (
	"context"
	"errors"
	"net/http"
	"time"

	abs "github.com/microsoft/kiota-abstractions-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// apiError is satisfied by kiota's ApiError and Graph's ODataError.
type apiError interface {
	GetStatusCode() int
	GetResponseHeaders() *abs.ResponseHeaders
}

// Classify converts a Graph SDK error into a *domain.ProviderError.
// Context errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := domain.KindUnknown
	var retryAfter time.Duration

	var aerr apiError
	switch {
	case errors.As(err, &aerr):
		kind = connectors.KindForStatus(aerr.GetStatusCode())
		retryAfter = connectors.RetryAfter(responseHeader(aerr.GetResponseHeaders()), time.Now())
	case connectors.IsNetworkError(err):
		kind = domain.KindTransient
	}

	perr := domain.NewProviderError(domain.ProviderMicrosoft, op, kind, describe(err))
	perr.RetryAfter = retryAfter
	return perr
}

// describe keeps the Graph error code and message, which ODataError.Error drops.
func describe(err error) error {
	var oerr *odataerrors.ODataError
	if !errors.As(err, &oerr) {
		return err
	}
	main := oerr.GetErrorEscaped()
	if main == nil || main.GetMessage() == nil {
		return err
	}
	code := ""
	if main.GetCode() != nil {
		code = *main.GetCode() + ": "
	}
	return &graphError{msg: code + *main.GetMessage(), err: err}
}

type graphError struct {
	msg string
	err error
}

func (e *graphError) Error() string { return e.msg }
func (e *graphError) Unwrap() error { return e.err }

func responseHeader(h *abs.ResponseHeaders) http.Header {
	if h == nil {
		return nil
	}
	out := http.Header{}
	for _, key := range []string{connectors.HeaderRetryAfter, connectors.HeaderRateLimitReset} {
		for _, v := range h.Get(key) {
			out.Add(key, v)
		}
	}
	return out
}
