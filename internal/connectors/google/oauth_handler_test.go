package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuthHandler_AccountIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"email":"me@example.com","verified_email":true}`))
	}))
	defer server.Close()

	h := &OAuthHandler{UserInfoURL: server.URL, HTTPClient: server.Client()}
	email, err := h.AccountIdentifier(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "me@example.com", email)
}

func TestOAuthHandler_AccountIdentifierRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	h := &OAuthHandler{UserInfoURL: server.URL, HTTPClient: server.Client()}
	_, err := h.AccountIdentifier(context.Background(), "tok")

	assert.Error(t, err)
}

func TestOAuthHandler_AuthCodeOptionsRequestOfflineAccess(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"}}

	u := cfg.AuthCodeURL("s", NewOAuthHandler().AuthCodeOptions()...)

	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
}
