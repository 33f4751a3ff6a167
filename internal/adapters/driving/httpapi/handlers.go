package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

type ctxKey int

const providerKey ctxKey = iota

type handlers struct {
	imports     driving.ImportService
	connections driving.ConnectionService
}

// withProvider rejects unknown providers before any handler runs.
func (h *handlers) withProvider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := domain.ProviderType(chi.URLParam(r, "provider"))
		if !provider.IsValid() {
			writeError(w, r, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider))
			return
		}
		if chi.URLParam(r, "userID") == "" {
			writeError(w, r, fmt.Errorf("%w: empty user id", domain.ErrInvalidInput))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), providerKey, provider)))
	})
}

func target(r *http.Request) (string, domain.ProviderType) {
	provider, _ := r.Context().Value(providerKey).(domain.ProviderType)
	return chi.URLParam(r, "userID"), provider
}

// importRequest is the body of POST .../imports.
type importRequest struct {
	Selector domain.ImportSelector `json:"selector"`
	Budget   struct {
		MaxItems int    `json:"max_items"`
		Timeout  string `json:"timeout"`
	} `json:"budget"`
}

func (h *handlers) startImport(w http.ResponseWriter, r *http.Request) {
	userID, provider := target(r)

	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return
	}
	req := domain.ImportRequest{
		UserID:   userID,
		Provider: provider,
		Selector: body.Selector,
		Budget:   domain.Budget{MaxItems: body.Budget.MaxItems},
	}
	if body.Budget.Timeout != "" {
		d, err := time.ParseDuration(body.Budget.Timeout)
		if err != nil || d < 0 {
			writeError(w, r, fmt.Errorf("%w: budget.timeout %q", domain.ErrInvalidInput, body.Budget.Timeout))
			return
		}
		req.Budget.Timeout = d
	}

	report, err := h.imports.StartImport(r.Context(), req)
	if report == nil {
		if err == nil {
			err = errors.New("import returned no report")
		}
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	var ierr *domain.ImportError
	if errors.As(err, &ierr) {
		status = importStatus(ierr.Reason)
	} else if err != nil {
		status, _ = classify(err)
	}
	writeJSON(w, status, report)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	userID, provider := target(r)
	st, err := h.connections.Status(r.Context(), userID, provider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) disconnect(w http.ResponseWriter, r *http.Request) {
	userID, provider := target(r)
	if err := h.connections.Disconnect(r.Context(), userID, provider); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) activeImports(w http.ResponseWriter, _ *http.Request) {
	runs := h.imports.ActiveRuns()
	if runs == nil {
		runs = []domain.ActiveRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// consentResponse carries what the caller must hold until the redirect
// comes back: the state to compare and the PKCE verifier.
type consentResponse struct {
	AuthURL      string `json:"auth_url"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
}

func (h *handlers) beginConsent(w http.ResponseWriter, r *http.Request) {
	_, provider := target(r)
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		writeError(w, r, fmt.Errorf("%w: redirect_uri is required", domain.ErrInvalidInput))
		return
	}

	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	authURL, err := h.connections.BeginConsent(provider, state, redirectURI, verifier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, consentResponse{AuthURL: authURL, State: state, CodeVerifier: verifier})
}

// completeConsentRequest is the body of POST .../consent.
type completeConsentRequest struct {
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
}

func (h *handlers) completeConsent(w http.ResponseWriter, r *http.Request) {
	userID, provider := target(r)

	var body completeConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return
	}
	if body.Code == "" || body.RedirectURI == "" {
		writeError(w, r, fmt.Errorf("%w: code and redirect_uri are required", domain.ErrInvalidInput))
		return
	}

	account, err := h.connections.CompleteConsent(r.Context(), userID, provider,
		body.Code, body.RedirectURI, body.CodeVerifier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.connections.Status(r.Context(), account.UserID, account.Provider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}
