// Package gmail imports Gmail messages as domain.Email items.
package gmail

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/sercha-connect/internal/connectors/google"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// userID is the Gmail alias for the authenticated user.
const userID = "me"

// Verify interface compliance.
var (
	_ driven.ProviderClient   = (*Client)(nil)
	_ driven.SelectorResolver = (*Client)(nil)
)

// Client lists and fetches Gmail messages.
type Client struct {
	opts        google.Options
	rateLimiter *google.RateLimiter
}

// New creates a Gmail client.
func New(opts google.Options) *Client {
	return &Client{
		opts:        opts,
		rateLimiter: google.NewRateLimiter(google.ServiceGmail),
	}
}

// Provider implements driven.ProviderClient.
func (c *Client) Provider() domain.ProviderType { return domain.ProviderGoogle }

// Kind implements driven.ProviderClient.
func (c *Client) Kind() domain.ItemKind { return domain.ItemKindEmail }

// ResolveSelector maps label display names to label IDs. Names match
// case-insensitively. An unknown name is a KindNotFound error.
func (c *Client) ResolveSelector(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector,
) (domain.ImportSelector, error) {
	if len(sel.LabelNames) == 0 {
		return sel, nil
	}

	svc, err := c.service(ctx, bearer)
	if err != nil {
		return sel, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return sel, err
	}
	res, err := svc.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return sel, c.classify("list labels", err)
	}

	byName := make(map[string]string, len(res.Labels))
	for _, l := range res.Labels {
		byName[strings.ToLower(l.Name)] = l.Id
	}

	resolved := sel
	resolved.LabelIDs = append([]string(nil), sel.LabelIDs...)
	for _, name := range sel.LabelNames {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			return sel, domain.NewProviderError(domain.ProviderGoogle, "resolve label", domain.KindNotFound,
				fmt.Errorf("label %q not found", name))
		}
		resolved.LabelIDs = append(resolved.LabelIDs, id)
	}
	resolved.LabelNames = nil
	return resolved, nil
}

// ListPage implements driven.ProviderClient.
func (c *Client) ListPage(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector, cursor string,
) (*domain.Page, error) {
	svc, err := c.service(ctx, bearer)
	if err != nil {
		return nil, err
	}
	cfg := ConfigFromSelector(sel)

	call := svc.Users.Messages.List(userID).
		MaxResults(cfg.MaxResults).
		IncludeSpamTrash(cfg.IncludeSpamTrash).
		Context(ctx)
	if len(cfg.LabelIDs) > 0 {
		call = call.LabelIds(cfg.LabelIDs...)
	}
	if cfg.Query != "" {
		call = call.Q(cfg.Query)
	}
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := call.Do()
	if err != nil {
		return nil, c.classify("list messages", err)
	}

	page := &domain.Page{NextCursor: res.NextPageToken}
	for _, m := range res.Messages {
		page.NativeIDs = append(page.NativeIDs, m.Id)
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
	msg, err := svc.Users.Messages.Get(userID, nativeID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, c.classify("get message", err)
	}
	return &domain.RawItem{NativeID: nativeID, Kind: domain.ItemKindEmail, Payload: msg}, nil
}

// Normalise implements driven.ProviderClient.
func (c *Client) Normalise(raw *domain.RawItem) (domain.Item, error) {
	msg, ok := raw.Payload.(*gmail.Message)
	if !ok || msg == nil {
		return nil, domain.NewProviderError(domain.ProviderGoogle, "normalise", domain.KindInvalidItem,
			fmt.Errorf("unexpected payload %T", raw.Payload))
	}
	if msg.Id == "" {
		msg.Id = raw.NativeID
	}
	return MessageToEmail(msg), nil
}

func (c *Client) service(ctx context.Context, bearer domain.Bearer) (*gmail.Service, error) {
	svc, err := google.NewGmailService(ctx, bearer, c.opts)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderGoogle, "create gmail service", domain.KindUnknown, err)
	}
	return svc, nil
}

func (c *Client) classify(op string, err error) error {
	err = google.Classify(op, err)
	c.rateLimiter.Observe(domain.RetryAfterOf(err))
	return err
}
