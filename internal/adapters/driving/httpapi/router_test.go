package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

type fakeImports struct {
	got    domain.ImportRequest
	report *domain.ImportReport
	err    error
	active []domain.ActiveRun
}

func (f *fakeImports) StartImport(_ context.Context, req domain.ImportRequest) (*domain.ImportReport, error) {
	f.got = req
	return f.report, f.err
}

func (f *fakeImports) ActiveRuns() []domain.ActiveRun { return f.active }

type fakeConnections struct {
	status        *domain.ConnectionStatus
	disconnectErr error
	consentURL    string
	gotVerifier   string
	gotCode       string
}

func (f *fakeConnections) Status(_ context.Context, userID string, p domain.ProviderType) (*domain.ConnectionStatus, error) {
	if f.status == nil {
		return &domain.ConnectionStatus{UserID: userID, Provider: p}, nil
	}
	return f.status, nil
}

func (f *fakeConnections) Connect(_ context.Context, userID string, p domain.ProviderType,
	_ *domain.TokenGrant) (*domain.ConnectedAccount, error) {
	return &domain.ConnectedAccount{UserID: userID, Provider: p}, nil
}

func (f *fakeConnections) Disconnect(context.Context, string, domain.ProviderType) error {
	return f.disconnectErr
}

func (f *fakeConnections) BeginConsent(_ domain.ProviderType, state, _, verifier string) (string, error) {
	f.gotVerifier = verifier
	return f.consentURL + "?state=" + state, nil
}

func (f *fakeConnections) CompleteConsent(_ context.Context, userID string, p domain.ProviderType,
	code, _, verifier string) (*domain.ConnectedAccount, error) {
	f.gotCode, f.gotVerifier = code, verifier
	return &domain.ConnectedAccount{UserID: userID, Provider: p}, nil
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartImport_Completed(t *testing.T) {
	imports := &fakeImports{report: &domain.ImportReport{RunID: "r1", State: domain.RunCompleted, Succeeded: 5}}
	h := NewRouter(Config{Imports: imports, Connections: &fakeConnections{}})

	rec := serve(t, h, http.MethodPost, "/v1/users/u1/providers/google/imports",
		`{"selector":{"kind":"email","label_names":["Newsletters"],"page_size":3},"budget":{"max_items":10,"timeout":"30s"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", imports.got.UserID)
	assert.Equal(t, domain.ProviderGoogle, imports.got.Provider)
	assert.Equal(t, []string{"Newsletters"}, imports.got.Selector.LabelNames)
	assert.Equal(t, 3, imports.got.Selector.PageSize)
	assert.Equal(t, 10, imports.got.Budget.MaxItems)
	assert.Equal(t, 30*time.Second, imports.got.Budget.Timeout)

	var report domain.ImportReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 5, report.Succeeded)
}

func TestStartImport_AbortedStatuses(t *testing.T) {
	tests := []struct {
		reason domain.AbortReason
		want   int
	}{
		{domain.AbortNotConnected, http.StatusNotFound},
		{domain.AbortNeedsReconsent, http.StatusConflict},
		{domain.AbortInsufficientScope, http.StatusConflict},
		{domain.AbortAuthLost, http.StatusConflict},
		{domain.AbortInvalidSelector, http.StatusUnprocessableEntity},
		{domain.AbortStorage, http.StatusInternalServerError},
		{domain.AbortProvider, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			imports := &fakeImports{
				report: &domain.ImportReport{State: domain.RunAborted, AbortReason: tt.reason},
				err:    &domain.ImportError{Reason: tt.reason},
			}
			h := NewRouter(Config{Imports: imports, Connections: &fakeConnections{}})

			rec := serve(t, h, http.MethodPost, "/v1/users/u1/providers/twitter/imports", `{"selector":{"kind":"tweet"}}`)
			assert.Equal(t, tt.want, rec.Code)

			var report domain.ImportReport
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Equal(t, tt.reason, report.AbortReason)
		})
	}
}

func TestStartImport_BadRequests(t *testing.T) {
	h := NewRouter(Config{Imports: &fakeImports{}, Connections: &fakeConnections{}})

	rec := serve(t, h, http.MethodPost, "/v1/users/u1/providers/myspace/imports", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/v1/users/u1/providers/google/imports", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/v1/users/u1/providers/google/imports", `{"budget":{"timeout":"soon"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_input", body.Code)
}

func TestStatus(t *testing.T) {
	conns := &fakeConnections{status: &domain.ConnectionStatus{
		UserID: "u1", Provider: domain.ProviderGoogle, Connected: true, ScopeSufficient: true, ItemCount: 5,
	}}
	h := NewRouter(Config{Imports: &fakeImports{}, Connections: conns})

	rec := serve(t, h, http.MethodGet, "/v1/users/u1/providers/google/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st domain.ConnectionStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.True(t, st.Connected)
	assert.Equal(t, 5, st.ItemCount)
}

func TestDisconnect(t *testing.T) {
	conns := &fakeConnections{}
	h := NewRouter(Config{Imports: &fakeImports{}, Connections: conns})

	rec := serve(t, h, http.MethodDelete, "/v1/users/u1/providers/microsoft", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	conns.disconnectErr = domain.ErrNotConnected
	rec = serve(t, h, http.MethodDelete, "/v1/users/u1/providers/microsoft", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsentRoundTrip(t *testing.T) {
	conns := &fakeConnections{consentURL: "https://accounts.example.com/auth"}
	h := NewRouter(Config{Imports: &fakeImports{}, Connections: conns})

	rec := serve(t, h, http.MethodGet,
		"/v1/users/u1/providers/google/consent?redirect_uri="+url.QueryEscape("https://app.example.com/cb"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var consent consentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&consent))
	assert.NotEmpty(t, consent.State)
	assert.Equal(t, conns.gotVerifier, consent.CodeVerifier)
	assert.Contains(t, consent.AuthURL, consent.State)

	rec = serve(t, h, http.MethodPost, "/v1/users/u1/providers/google/consent",
		`{"code":"abc","redirect_uri":"https://app.example.com/cb","code_verifier":"v"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "abc", conns.gotCode)
	assert.Equal(t, "v", conns.gotVerifier)

	rec = serve(t, h, http.MethodGet, "/v1/users/u1/providers/google/consent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveImportsAndHealth(t *testing.T) {
	h := NewRouter(Config{
		Imports:     &fakeImports{},
		Connections: &fakeConnections{},
		Ready:       func(context.Context) error { return domain.ErrStorage },
	})

	rec := serve(t, h, http.MethodGet, "/v1/imports/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, http.MethodGet, "/readyz", "").Code)
}
