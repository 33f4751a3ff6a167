package google

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Options configures the Google API clients.
type Options struct {
	// Endpoint overrides the API base URL. Empty uses the library default.
	Endpoint string
	// HTTPClient is the base client. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// NewGmailService creates a Gmail API service authorised with the bearer token.
func NewGmailService(ctx context.Context, bearer domain.Bearer, opts Options) (*gmail.Service, error) {
	return gmail.NewService(ctx, clientOptions(ctx, bearer, opts)...)
}

// NewDriveService creates a Google Drive API service authorised with the bearer token.
func NewDriveService(ctx context.Context, bearer domain.Bearer, opts Options) (*drive.Service, error) {
	return drive.NewService(ctx, clientOptions(ctx, bearer, opts)...)
}

func clientOptions(ctx context.Context, bearer domain.Bearer, opts Options) []option.ClientOption {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	hc := oauth2.NewClient(ctx, NewTokenSource(bearer))
	hc.Timeout = DefaultTimeout

	o := []option.ClientOption{option.WithHTTPClient(hc)}
	if opts.Endpoint != "" {
		o = append(o, option.WithEndpoint(opts.Endpoint))
	}
	return o
}
