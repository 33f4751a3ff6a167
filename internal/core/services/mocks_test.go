package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// --- Token endpoint ---

// mockTokenEndpoint implements driven.TokenEndpoint for testing.
type mockTokenEndpoint struct {
	mu     sync.Mutex
	calls  int
	grants []*domain.TokenGrant
	err    error
	// started, if set, receives once per Refresh call before release is awaited.
	started chan struct{}
	release chan struct{}

	exchangeGrant *domain.TokenGrant
	exchangeErr   error
	lastScopes    []string
}

func (m *mockTokenEndpoint) Refresh(ctx context.Context, _ domain.ProviderType, _ string) (*domain.TokenGrant, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.err != nil {
		return nil, m.err
	}
	if len(m.grants) == 0 {
		return &domain.TokenGrant{AccessToken: fmt.Sprintf("refreshed-%d", n)}, nil
	}
	i := n - 1
	if i >= len(m.grants) {
		i = len(m.grants) - 1
	}
	g := *m.grants[i]
	return &g, nil
}

func (m *mockTokenEndpoint) AuthCodeURL(_ domain.ProviderType, scopes []string, state, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScopes = scopes
	return "https://consent.example.com/auth?state=" + state, nil
}

func (m *mockTokenEndpoint) Exchange(_ context.Context, _ domain.ProviderType, _, _, _ string) (*domain.TokenGrant, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	g := *m.exchangeGrant
	return &g, nil
}

func (m *mockTokenEndpoint) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Provider client ---

// fakeClient is a scripted driven.ProviderClient serving pages keyed by cursor.
type fakeClient struct {
	provider domain.ProviderType
	kind     domain.ItemKind

	mu    sync.Mutex
	pages map[string]*domain.Page
	// listErrs are returned, in order, by the first ListPage calls.
	listErrs []error
	// fetchErrs are returned, in order, by successive fetches of one ID.
	fetchErrs     map[string][]error
	normaliseErrs map[string]error

	listCalls    int
	fetched      []string
	fetchTokens  []string
	lastSelector domain.ImportSelector
}

func newFakeClient(provider domain.ProviderType, kind domain.ItemKind) *fakeClient {
	return &fakeClient{
		provider:      provider,
		kind:          kind,
		pages:         make(map[string]*domain.Page),
		fetchErrs:     make(map[string][]error),
		normaliseErrs: make(map[string]error),
	}
}

// withPages serves the ID groups as consecutive pages p1, p2, ...
func (c *fakeClient) withPages(groups ...[]string) *fakeClient {
	cursor := ""
	for i, ids := range groups {
		next := ""
		if i < len(groups)-1 {
			next = fmt.Sprintf("p%d", i+2)
		}
		c.pages[cursor] = &domain.Page{NativeIDs: ids, NextCursor: next}
		cursor = next
	}
	return c
}

func (c *fakeClient) failFetch(id string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErrs[id] = append(c.fetchErrs[id], errs...)
}

func (c *fakeClient) Provider() domain.ProviderType { return c.provider }
func (c *fakeClient) Kind() domain.ItemKind         { return c.kind }

func (c *fakeClient) ListPage(_ context.Context, _ domain.Bearer, sel domain.ImportSelector, cursor string) (*domain.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	c.lastSelector = sel
	if len(c.listErrs) > 0 {
		err := c.listErrs[0]
		c.listErrs = c.listErrs[1:]
		return nil, err
	}
	page, ok := c.pages[cursor]
	if !ok {
		return &domain.Page{}, nil
	}
	return page, nil
}

func (c *fakeClient) FetchItem(_ context.Context, b domain.Bearer, id string) (*domain.RawItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched = append(c.fetched, id)
	c.fetchTokens = append(c.fetchTokens, b.AccessToken)
	if errs := c.fetchErrs[id]; len(errs) > 0 {
		c.fetchErrs[id] = errs[1:]
		return nil, errs[0]
	}
	return &domain.RawItem{NativeID: id, Kind: c.kind, Payload: "payload " + id}, nil
}

func (c *fakeClient) Normalise(raw *domain.RawItem) (domain.Item, error) {
	if err := c.normaliseErrs[raw.NativeID]; err != nil {
		return nil, err
	}
	header := domain.ItemHeader{Provider: c.provider, ProviderItemID: raw.NativeID}
	switch c.kind {
	case domain.ItemKindTweet:
		return &domain.Tweet{ItemHeader: header, Text: "tweet " + raw.NativeID}, nil
	case domain.ItemKindDriveFile:
		return &domain.DriveFile{ItemHeader: header, Name: raw.NativeID + ".txt"}, nil
	default:
		return &domain.Email{ItemHeader: header, Subject: "subject " + raw.NativeID}, nil
	}
}

func (c *fakeClient) fetchedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fetched...)
}

// resolvingClient maps label names to IDs before listing.
type resolvingClient struct {
	*fakeClient
	labels map[string]string
}

func (c *resolvingClient) ResolveSelector(_ context.Context, _ domain.Bearer, sel domain.ImportSelector) (domain.ImportSelector, error) {
	for _, name := range sel.LabelNames {
		id, ok := c.labels[name]
		if !ok {
			return sel, domain.NewProviderError(c.provider, "resolve labels", domain.KindNotFound,
				fmt.Errorf("label %q", name))
		}
		sel.LabelIDs = append(sel.LabelIDs, id)
	}
	sel.LabelNames = nil
	return sel, nil
}

var (
	_ driven.ProviderClient   = (*fakeClient)(nil)
	_ driven.SelectorResolver = (*resolvingClient)(nil)
)

// --- Publisher and metrics ---

type mockPublisher struct {
	mu           sync.Mutex
	reports      []*domain.ImportReport
	disconnected []string
	err          error
}

func (m *mockPublisher) ImportFinished(_ context.Context, report *domain.ImportReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return m.err
}

func (m *mockPublisher) AccountDisconnected(_ context.Context, userID string, provider domain.ProviderType, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = append(m.disconnected, fmt.Sprintf("%s:%d", domain.AccountKey(userID, provider), n))
	return m.err
}

type mockMetrics struct {
	mu       sync.Mutex
	runs     int
	retries  map[domain.ErrorKind]int
	outcomes map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{retries: make(map[domain.ErrorKind]int), outcomes: make(map[string]int)}
}

func (m *mockMetrics) ObserveRun(*domain.ImportReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *mockMetrics) ObserveItemRetry(_ domain.ProviderType, kind domain.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[kind]++
}

func (m *mockMetrics) ObserveRefresh(_ domain.ProviderType, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

var (
	_ driven.EventPublisher = (*mockPublisher)(nil)
	_ driven.Metrics        = (*mockMetrics)(nil)
)

// --- Fixtures ---

const testUser = "u1"

func timePtr(t time.Time) *time.Time { return &t }

// seedAccount stores a connected account. expiresAt may be nil.
func seedAccount(
	t *testing.T,
	store *memory.Store,
	provider domain.ProviderType,
	scopes []string,
	expiresAt *time.Time,
	refreshToken string,
) *domain.ConnectedAccount {
	t.Helper()
	now := time.Now()
	account := &domain.ConnectedAccount{
		UserID:            testUser,
		Provider:          provider,
		AccountIdentifier: "me@example.com",
		AccessToken:       "access-0",
		RefreshToken:      refreshToken,
		TokenType:         "Bearer",
		ExpiresAt:         expiresAt,
		GrantedScopes:     scopes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, store.Save(context.Background(), account))
	return account
}

func nativeIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return ids
}

func authExpired() error {
	return domain.NewProviderError(domain.ProviderGoogle, "get message", domain.KindAuthExpired,
		fmt.Errorf("401 invalid credentials"))
}

func rateLimited(after time.Duration) error {
	e := domain.NewProviderError(domain.ProviderGoogle, "get message", domain.KindRateLimited,
		fmt.Errorf("429 too many requests"))
	e.RetryAfter = after
	return e
}

func transient() error {
	return domain.NewProviderError(domain.ProviderGoogle, "get message", domain.KindTransient,
		fmt.Errorf("503 backend error"))
}
