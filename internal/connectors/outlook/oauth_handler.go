package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
)

// DefaultMeURL is the Graph endpoint for the signed-in user.
const DefaultMeURL = "https://graph.microsoft.com/v1.0/me?$select=id,mail,userPrincipalName"

// Ensure OAuthHandler implements the interface.
var _ connectors.OAuthHandler = (*OAuthHandler)(nil)

// OAuthHandler implements the Microsoft identity platform quirks.
type OAuthHandler struct {
	MeURL      string
	HTTPClient *http.Client
}

// NewOAuthHandler creates a Microsoft OAuth handler.
func NewOAuthHandler() *OAuthHandler {
	return &OAuthHandler{MeURL: DefaultMeURL, HTTPClient: http.DefaultClient}
}

// AuthCodeOptions asks the user to pick an account on every consent.
func (h *OAuthHandler) AuthCodeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
}

// AccountIdentifier returns the user principal name, which Graph accepts
// as a user ID.
func (h *OAuthHandler) AccountIdentifier(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.MeURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile request failed with status %d", resp.StatusCode)
	}

	var me struct {
		ID                string `json:"id"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", fmt.Errorf("decode profile: %w", err)
	}
	if me.UserPrincipalName != "" {
		return me.UserPrincipalName, nil
	}
	return me.ID, nil
}
