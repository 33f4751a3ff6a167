package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

type fakeImports struct {
	report *domain.ImportReport
	err    error
	got    domain.ImportRequest
}

func (f *fakeImports) StartImport(_ context.Context, req domain.ImportRequest) (*domain.ImportReport, error) {
	f.got = req
	return f.report, f.err
}

func (f *fakeImports) ActiveRuns() []domain.ActiveRun { return nil }

type fakeConnections struct {
	statuses      map[domain.ProviderType]*domain.ConnectionStatus
	disconnected  []domain.ProviderType
	disconnectErr error
}

func (f *fakeConnections) Status(_ context.Context, userID string, p domain.ProviderType) (*domain.ConnectionStatus, error) {
	if s, ok := f.statuses[p]; ok {
		return s, nil
	}
	return &domain.ConnectionStatus{UserID: userID, Provider: p}, nil
}

func (f *fakeConnections) Connect(context.Context, string, domain.ProviderType, *domain.TokenGrant) (*domain.ConnectedAccount, error) {
	return nil, nil
}

func (f *fakeConnections) Disconnect(_ context.Context, _ string, p domain.ProviderType) error {
	f.disconnected = append(f.disconnected, p)
	return f.disconnectErr
}

func (f *fakeConnections) BeginConsent(domain.ProviderType, string, string, string) (string, error) {
	return "https://example.com/auth", nil
}

func (f *fakeConnections) CompleteConsent(context.Context, string, domain.ProviderType, string, string, string) (*domain.ConnectedAccount, error) {
	return nil, nil
}

type fakeTokens struct {
	refreshed int
	err       error
}

func (f *fakeTokens) EnsureValidToken(context.Context, string, domain.ProviderType) (string, *domain.ConnectedAccount, error) {
	return "", nil, nil
}

func (f *fakeTokens) RefreshExpiring(context.Context) (int, error) {
	return f.refreshed, f.err
}

type fakeSettings struct {
	settings *domain.AppSettings
	set      map[string]string
	err      error
}

func (f *fakeSettings) Get() (*domain.AppSettings, error) {
	return f.settings, nil
}

func (f *fakeSettings) Set(key, value string) error {
	if f.err != nil {
		return f.err
	}
	if f.set == nil {
		f.set = map[string]string{}
	}
	f.set[key] = value
	return nil
}

func (f *fakeSettings) Validate() error { return f.err }

// run executes the root command against svc and returns its output.
func run(t *testing.T, svc *Services, args ...string) (string, error) {
	t.Helper()
	oldServices, oldOptions, oldImport := services, options, importFlags
	services = svc
	options = Options{}
	importFlags = importOptions{}
	t.Cleanup(func() {
		services, options, importFlags = oldServices, oldOptions, oldImport
		rootCmd.SetArgs(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func sampleReport() *domain.ImportReport {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.ImportReport{
		RunID:      "run-1",
		UserID:     "u1",
		Provider:   domain.ProviderGoogle,
		Selector:   domain.ImportSelector{Kind: domain.ItemKindEmail, LabelNames: []string{"Newsletters"}},
		State:      domain.RunCompleted,
		Attempted:  5,
		Succeeded:  5,
		Inserted:   5,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}
