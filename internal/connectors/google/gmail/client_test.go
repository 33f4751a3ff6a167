package gmail

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/connectors/google"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var bearer = domain.Bearer{AccessToken: "access-1", Subject: "me@example.com"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(google.Options{Endpoint: server.URL + "/", HTTPClient: server.Client()})
	c.rateLimiter = nil
	return c
}

func TestClient_ResolveSelector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/labels"))
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"labels":[{"id":"INBOX","name":"INBOX"},{"id":"Label_7","name":"Newsletters"}]}`))
	})

	sel, err := c.ResolveSelector(context.Background(), bearer, domain.ImportSelector{
		Kind:       domain.ItemKindEmail,
		LabelNames: []string{"newsletters"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Label_7"}, sel.LabelIDs)
	assert.Empty(t, sel.LabelNames)
}

func TestClient_ResolveSelectorUnknownLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"labels":[{"id":"INBOX","name":"INBOX"}]}`))
	})

	_, err := c.ResolveSelector(context.Background(), bearer, domain.ImportSelector{
		Kind:       domain.ItemKindEmail,
		LabelNames: []string{"Receipts"},
	})

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestClient_ResolveSelectorWithoutNamesSkipsCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("unexpected request")
	})

	sel := domain.ImportSelector{Kind: domain.ItemKindEmail, LabelIDs: []string{"INBOX"}}
	got, err := c.ResolveSelector(context.Background(), bearer, sel)

	require.NoError(t, err)
	assert.Equal(t, sel, got)
}

func TestClient_ListPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages"))
		q := r.URL.Query()
		assert.Equal(t, "Label_7", q.Get("labelIds"))
		assert.Equal(t, "25", q.Get("maxResults"))
		assert.Equal(t, "p2", q.Get("pageToken"))
		assert.Equal(t, "from:news", q.Get("q"))
		_, _ = w.Write([]byte(`{"messages":[{"id":"m4","threadId":"t4"},{"id":"m5","threadId":"t5"}]}`))
	})

	page, err := c.ListPage(context.Background(), bearer, domain.ImportSelector{
		Kind:     domain.ItemKindEmail,
		LabelIDs: []string{"Label_7"},
		Query:    "from:news",
		PageSize: 25,
	}, "p2")

	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, page.NativeIDs)
	assert.Empty(t, page.NextCursor)
}

func TestClient_ListPageClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.ErrorKind
	}{
		{"expired token", http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`, domain.KindAuthExpired},
		{
			"missing scope", http.StatusForbidden,
			`{"error":{"code":403,"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions"}]}}`,
			domain.KindInsufficientScope,
		},
		{"throttled", http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow down"}}`, domain.KindRateLimited},
		{"backend", http.StatusInternalServerError, `{"error":{"code":500,"message":"backend"}}`, domain.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.ListPage(context.Background(), bearer,
				domain.ImportSelector{Kind: domain.ItemKindEmail, LabelIDs: []string{"INBOX"}}, "")

			assert.Equal(t, tt.want, domain.KindOf(err))
			if tt.want == domain.KindRateLimited {
				assert.Equal(t, 7*time.Second, domain.RetryAfterOf(err))
			}
		})
	}
}

func TestClient_FetchAndNormalise(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("Hello world"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/m1"))
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{
			"id":"m1","threadId":"t1","labelIds":["Label_7"],"snippet":"Hello",
			"internalDate":"1700000000000",
			"payload":{"mimeType":"multipart/alternative",
				"headers":[
					{"name":"Subject","value":"Weekly digest"},
					{"name":"From","value":"News <news@example.com>"},
					{"name":"To","value":"Me <me@example.com>, other@example.com"}
				],
				"parts":[
					{"mimeType":"text/html","body":{"data":"PGI-aGk8L2I-"}},
					{"mimeType":"text/plain","body":{"data":"`+body+`"}}
				]}
		}`))
	})

	raw, err := c.FetchItem(context.Background(), bearer, "m1")
	require.NoError(t, err)

	item, err := c.Normalise(raw)
	require.NoError(t, err)

	email, ok := item.(*domain.Email)
	require.True(t, ok)
	assert.Equal(t, "m1", email.ProviderItemID)
	assert.Equal(t, domain.ProviderGoogle, email.Provider)
	assert.Equal(t, "t1", email.ThreadID)
	assert.Equal(t, "Weekly digest", email.Subject)
	assert.Equal(t, "News <news@example.com>", email.From)
	assert.Equal(t, []string{"me@example.com", "other@example.com"}, email.To)
	assert.Equal(t, "Hello world", email.Body)
	assert.Equal(t, []string{"Label_7"}, email.Labels)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), email.ReceivedAt)
}

func TestClient_FetchNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})

	_, err := c.FetchItem(context.Background(), bearer, "gone")

	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_NormaliseRejectsForeignPayload(t *testing.T) {
	c := New(google.Options{})

	_, err := c.Normalise(&domain.RawItem{NativeID: "m1", Payload: "not a message"})

	assert.Equal(t, domain.KindInvalidItem, domain.KindOf(err))
}
