package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-connect/internal/connectors/google"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var bearer = domain.Bearer{AccessToken: "access-1"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(google.Options{Endpoint: server.URL + "/", HTTPClient: server.Client()})
	c.rateLimiter = nil
	return c
}

func TestClient_ListPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files"))
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "'folder-1' in parents and trashed = false and mimeType != '"+MimeTypeFolder+"'", q.Get("q"))
		assert.Equal(t, "100", q.Get("pageSize"))
		assert.Empty(t, q.Get("pageToken"))
		_, _ = w.Write([]byte(`{"nextPageToken":"p2","files":[{"id":"f1"},{"id":"f2"},{"id":"f3"}]}`))
	})

	page, err := c.ListPage(context.Background(), bearer,
		domain.ImportSelector{Kind: domain.ItemKindDriveFile, FolderID: "folder-1"}, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2", "f3"}, page.NativeIDs)
	assert.Equal(t, "p2", page.NextCursor)
}

func TestClient_ListPageDefaultsToRoot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("q"), "'root' in parents"))
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		_, _ = w.Write([]byte(`{"files":[]}`))
	})

	page, err := c.ListPage(context.Background(), bearer, domain.ImportSelector{Kind: domain.ItemKindDriveFile}, "p2")

	require.NoError(t, err)
	assert.Empty(t, page.NativeIDs)
	assert.Empty(t, page.NextCursor)
}

func TestClient_ListPageAuthExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	})

	_, err := c.ListPage(context.Background(), bearer, domain.ImportSelector{Kind: domain.ItemKindDriveFile}, "")

	assert.Equal(t, domain.KindAuthExpired, domain.KindOf(err))
}

func TestClient_FetchAndNormalise(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files/f1"))
		_, _ = w.Write([]byte(`{
			"id":"f1","name":"report.pdf","mimeType":"application/pdf","size":"2048",
			"parents":["folder-1"],"md5Checksum":"abc","modifiedTime":"2024-03-01T10:00:00.000Z"
		}`))
	})

	raw, err := c.FetchItem(context.Background(), bearer, "f1")
	require.NoError(t, err)

	item, err := c.Normalise(raw)
	require.NoError(t, err)

	file, ok := item.(*domain.DriveFile)
	require.True(t, ok)
	assert.Equal(t, "f1", file.ProviderItemID)
	assert.Equal(t, "report.pdf", file.Name)
	assert.Equal(t, int64(2048), file.SizeBytes)
	assert.Equal(t, []string{"folder-1"}, file.Parents)
	assert.Equal(t, "abc", file.MD5)
	assert.Equal(t, "https://drive.google.com/file/d/f1/view", file.WebLink)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), file.ModifiedAt)
}

func TestClient_NormaliseRejectsFolders(t *testing.T) {
	c := New(google.Options{})

	_, err := c.Normalise(&domain.RawItem{
		NativeID: "d1",
		Payload:  &drive.File{Id: "d1", MimeType: MimeTypeFolder},
	})

	assert.Equal(t, domain.KindInvalidItem, domain.KindOf(err))
}

func TestConfig_QueryEscapesFolderID(t *testing.T) {
	cfg := ConfigFromSelector(domain.ImportSelector{Kind: domain.ItemKindDriveFile, FolderID: "it's", PageSize: 10})

	assert.Equal(t, int64(10), cfg.MaxResults)
	assert.True(t, strings.HasPrefix(cfg.Query(), `'it\'s' in parents`))
}
