// Package drive imports Google Drive file metadata as domain.DriveFile items.
// File content is not downloaded.
package drive

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-connect/internal/connectors/google"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.ProviderClient = (*Client)(nil)

// Client lists and fetches Drive files.
type Client struct {
	opts        google.Options
	rateLimiter *google.RateLimiter
}

// New creates a Drive client.
func New(opts google.Options) *Client {
	return &Client{
		opts:        opts,
		rateLimiter: google.NewRateLimiter(google.ServiceDrive),
	}
}

// Provider implements driven.ProviderClient.
func (c *Client) Provider() domain.ProviderType { return domain.ProviderGoogle }

// Kind implements driven.ProviderClient.
func (c *Client) Kind() domain.ItemKind { return domain.ItemKindDriveFile }

// ListPage implements driven.ProviderClient.
func (c *Client) ListPage(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector, cursor string,
) (*domain.Page, error) {
	svc, err := c.service(ctx, bearer)
	if err != nil {
		return nil, err
	}
	cfg := ConfigFromSelector(sel)

	call := svc.Files.List().
		Q(cfg.Query()).
		PageSize(cfg.MaxResults).
		Fields("nextPageToken, files(id)").
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := call.Do()
	if err != nil {
		return nil, c.classify("list files", err)
	}

	page := &domain.Page{NextCursor: res.NextPageToken}
	for _, f := range res.Files {
		page.NativeIDs = append(page.NativeIDs, f.Id)
	}
	return page, nil
}

// FetchItem implements driven.ProviderClient.
func (c *Client) FetchItem(ctx context.Context, bearer domain.Bearer, nativeID string) (*domain.RawItem, error) {
	svc, err := c.service(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	file, err := svc.Files.Get(nativeID).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, c.classify("get file", err)
	}
	return &domain.RawItem{NativeID: nativeID, Kind: domain.ItemKindDriveFile, Payload: file}, nil
}

// Normalise implements driven.ProviderClient.
func (c *Client) Normalise(raw *domain.RawItem) (domain.Item, error) {
	file, ok := raw.Payload.(*drive.File)
	if !ok || file == nil {
		return nil, invalidItem(fmt.Errorf("unexpected payload %T", raw.Payload))
	}
	if file.Id == "" {
		file.Id = raw.NativeID
	}
	item, err := FileToDriveFile(file)
	if err != nil {
		return nil, invalidItem(err)
	}
	return item, nil
}

func (c *Client) service(ctx context.Context, bearer domain.Bearer) (*drive.Service, error) {
	svc, err := google.NewDriveService(ctx, bearer, c.opts)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderGoogle, "create drive service", domain.KindUnknown, err)
	}
	return svc, nil
}

func (c *Client) classify(op string, err error) error {
	err = google.Classify(op, err)
	c.rateLimiter.Observe(domain.RetryAfterOf(err))
	return err
}

func invalidItem(err error) error {
	return domain.NewProviderError(domain.ProviderGoogle, "normalise", domain.KindInvalidItem, err)
}
