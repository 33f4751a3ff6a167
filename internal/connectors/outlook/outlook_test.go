package outlook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func recipient(addr string) models.Recipientable {
	email := models.NewEmailAddress()
	email.SetAddress(strPtr(addr))
	r := models.NewRecipient()
	r.SetEmailAddress(email)
	return r
}

func TestNormalise(t *testing.T) {
	received := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	body := models.NewItemBody()
	body.SetContent(strPtr("Hello"))

	msg := models.NewMessage()
	msg.SetId(strPtr("AAMk1"))
	msg.SetConversationId(strPtr("conv-1"))
	msg.SetSubject(strPtr("Digest"))
	msg.SetBodyPreview(strPtr("Hel"))
	msg.SetBody(body)
	msg.SetFrom(recipient("news@example.com"))
	msg.SetToRecipients([]models.Recipientable{recipient("me@example.com")})
	msg.SetCategories([]string{"Newsletters"})
	msg.SetReceivedDateTime(&received)

	item, err := New().Normalise(&domain.RawItem{NativeID: "AAMk1", Payload: msg})
	require.NoError(t, err)

	email, ok := item.(*domain.Email)
	require.True(t, ok)
	assert.Equal(t, "AAMk1", email.ProviderItemID)
	assert.Equal(t, domain.ProviderMicrosoft, email.Provider)
	assert.Equal(t, "conv-1", email.ThreadID)
	assert.Equal(t, "Digest", email.Subject)
	assert.Equal(t, "news@example.com", email.From)
	assert.Equal(t, []string{"me@example.com"}, email.To)
	assert.Equal(t, "Hello", email.Body)
	assert.Equal(t, []string{"Newsletters"}, email.Labels)
	assert.Equal(t, received, email.ReceivedAt)
}

func TestNormalise_HTMLBodyConverted(t *testing.T) {
	body := models.NewItemBody()
	body.SetContent(strPtr("<html><body><p>Hello</p><p>World</p></body></html>"))
	contentType := models.HTML_BODYTYPE
	body.SetContentType(&contentType)

	msg := models.NewMessage()
	msg.SetId(strPtr("AAMk2"))
	msg.SetBody(body)

	item, err := New().Normalise(&domain.RawItem{NativeID: "AAMk2", Payload: msg})
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", item.(*domain.Email).Body)
}

func TestNormalise_FallsBackToNativeID(t *testing.T) {
	item, err := New().Normalise(&domain.RawItem{NativeID: "AAMk2", Payload: models.NewMessage()})

	require.NoError(t, err)
	assert.Equal(t, "AAMk2", item.Header().ProviderItemID)
}

func TestNormalise_RejectsForeignPayload(t *testing.T) {
	_, err := New().Normalise(&domain.RawItem{NativeID: "x", Payload: 42})

	assert.Equal(t, domain.KindInvalidItem, domain.KindOf(err))
}

func TestListQuery(t *testing.T) {
	q := ListQuery(domain.ImportSelector{
		Kind:       domain.ItemKindEmail,
		LabelNames: []string{"Newsletters", "Bob's"},
		Query:      "invoice",
		PageSize:   20,
	})

	require.NotNil(t, q.Top)
	assert.Equal(t, int32(20), *q.Top)
	require.NotNil(t, q.Filter)
	assert.Equal(t, "categories/any(c:c eq 'Newsletters') and categories/any(c:c eq 'Bob''s')", *q.Filter)
	require.NotNil(t, q.Search)
	assert.Equal(t, `"invoice"`, *q.Search)
}

func TestListQuery_Defaults(t *testing.T) {
	q := ListQuery(domain.ImportSelector{Kind: domain.ItemKindEmail, Query: "x"})

	assert.Equal(t, int32(DefaultPageSize), *q.Top)
	assert.Nil(t, q.Filter)
}

func TestListPage_RequiresAccountIdentifier(t *testing.T) {
	_, err := New().ListPage(context.Background(), domain.Bearer{AccessToken: "t"},
		domain.ImportSelector{Kind: domain.ItemKindEmail, Query: "x"}, "")

	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.KindAuthExpired},
		{http.StatusForbidden, domain.KindInsufficientScope},
		{http.StatusNotFound, domain.KindNotFound},
		{http.StatusTooManyRequests, domain.KindRateLimited},
		{http.StatusServiceUnavailable, domain.KindTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			oerr := odataerrors.NewODataError()
			oerr.ResponseStatusCode = tt.status

			err := Classify("list messages", oerr)

			assert.Equal(t, tt.want, domain.KindOf(err))
			assert.ErrorIs(t, err, oerr)
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify("op", nil))
	assert.Equal(t, context.DeadlineExceeded, Classify("op", context.DeadlineExceeded))
	assert.Equal(t, domain.KindUnknown, domain.KindOf(Classify("op", errors.New("boom"))))
}

func TestOAuthHandler_AccountIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"abc","mail":null,"userPrincipalName":"me@contoso.com"}`))
	}))
	defer server.Close()

	h := &OAuthHandler{MeURL: server.URL, HTTPClient: server.Client()}
	id, err := h.AccountIdentifier(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "me@contoso.com", id)
}
