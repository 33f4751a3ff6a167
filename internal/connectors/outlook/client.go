package outlook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// DefaultPageSize is the $top used when the selector leaves it unset.
const DefaultPageSize = 50

// messageFields are the message properties requested from Graph.
var messageFields = []string{
	"id", "conversationId", "subject", "from", "toRecipients", "ccRecipients",
	"bodyPreview", "body", "categories", "receivedDateTime",
}

// Verify interface compliance.
var _ driven.ProviderClient = (*Client)(nil)

// GraphFactory builds a Graph client for one bearer token.
type GraphFactory func(bearer domain.Bearer) (*msgraphsdk.GraphServiceClient, error)

// Client lists and fetches Outlook messages.
type Client struct {
	newGraph GraphFactory
}

// New creates an Outlook client against the public Graph endpoint.
func New() *Client {
	return &Client{newGraph: defaultGraph}
}

// NewWithFactory creates an Outlook client with a custom Graph factory.
func NewWithFactory(f GraphFactory) *Client {
	return &Client{newGraph: f}
}

func defaultGraph(bearer domain.Bearer) (*msgraphsdk.GraphServiceClient, error) {
	return msgraphsdk.NewGraphServiceClientWithCredentials(&staticTokenCredential{token: bearer.AccessToken}, nil)
}

// Provider implements driven.ProviderClient.
func (c *Client) Provider() domain.ProviderType { return domain.ProviderMicrosoft }

// Kind implements driven.ProviderClient.
func (c *Client) Kind() domain.ItemKind { return domain.ItemKindEmail }

// ListPage implements driven.ProviderClient. The cursor is Graph's
// @odata.nextLink, which already carries the original query.
func (c *Client) ListPage(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector, cursor string,
) (*domain.Page, error) {
	messages, err := c.messages(bearer)
	if err != nil {
		return nil, err
	}

	var res models.MessageCollectionResponseable
	if cursor != "" {
		res, err = messages.WithUrl(cursor).Get(ctx, nil)
	} else {
		res, err = messages.Get(ctx, &users.ItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: ListQuery(sel),
		})
	}
	if err != nil {
		return nil, Classify("list messages", err)
	}

	page := &domain.Page{}
	for _, m := range res.GetValue() {
		if id := m.GetId(); id != nil {
			page.NativeIDs = append(page.NativeIDs, *id)
		}
	}
	if next := res.GetOdataNextLink(); next != nil {
		page.NextCursor = *next
	}
	return page, nil
}

// FetchItem implements driven.ProviderClient.
func (c *Client) FetchItem(ctx context.Context, bearer domain.Bearer, nativeID string) (*domain.RawItem, error) {
	messages, err := c.messages(bearer)
	if err != nil {
		return nil, err
	}
	msg, err := messages.ByMessageId(nativeID).Get(ctx, &users.ItemMessagesMessageItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMessagesMessageItemRequestBuilderGetQueryParameters{
			Select: messageFields,
		},
	})
	if err != nil {
		return nil, Classify("get message", err)
	}
	return &domain.RawItem{NativeID: nativeID, Kind: domain.ItemKindEmail, Payload: msg}, nil
}

// Normalise implements driven.ProviderClient.
func (c *Client) Normalise(raw *domain.RawItem) (domain.Item, error) {
	msg, ok := raw.Payload.(models.Messageable)
	if !ok || msg == nil {
		return nil, domain.NewProviderError(domain.ProviderMicrosoft, "normalise", domain.KindInvalidItem,
			fmt.Errorf("unexpected payload %T", raw.Payload))
	}
	email := MessageToEmail(msg)
	if email.ProviderItemID == "" {
		email.ProviderItemID = raw.NativeID
	}
	return email, nil
}

// ListQuery builds the $filter, $search and $top parameters for a selector.
// Label names and IDs both match Outlook categories.
func ListQuery(sel domain.ImportSelector) *users.ItemMessagesRequestBuilderGetQueryParameters {
	top := int32(DefaultPageSize)
	if sel.PageSize > 0 {
		top = int32(sel.PageSize)
	}
	q := &users.ItemMessagesRequestBuilderGetQueryParameters{
		Top:    &top,
		Select: []string{"id"},
	}

	var clauses []string
	for _, name := range append(append([]string(nil), sel.LabelIDs...), sel.LabelNames...) {
		clauses = append(clauses, fmt.Sprintf("categories/any(c:c eq '%s')", strings.ReplaceAll(name, "'", "''")))
	}
	if len(clauses) > 0 {
		filter := strings.Join(clauses, " and ")
		q.Filter = &filter
	}
	if sel.Query != "" {
		search := fmt.Sprintf("%q", sel.Query)
		q.Search = &search
	}
	return q
}

func (c *Client) messages(bearer domain.Bearer) (*users.ItemMessagesRequestBuilder, error) {
	if bearer.Subject == "" {
		return nil, domain.NewProviderError(domain.ProviderMicrosoft, "create graph client", domain.KindUnknown,
			errors.New("account identifier required"))
	}
	graph, err := c.newGraph(bearer)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderMicrosoft, "create graph client", domain.KindUnknown, err)
	}
	return graph.Users().ByUserId(bearer.Subject).Messages(), nil
}
