package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/connectors"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

const (
	// DefaultBaseURL is the Twitter API host.
	DefaultBaseURL = "https://api.twitter.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MinPageSize and MaxPageSize bound max_results on timeline requests.
	MinPageSize = 5
	MaxPageSize = 100

	// maxErrorBody limits how much of an error response is read.
	maxErrorBody = 4096
)

// Verify interface compliance.
var (
	_ driven.ProviderClient   = (*Client)(nil)
	_ driven.SelectorResolver = (*Client)(nil)
)

// Client lists and fetches tweets from a user's timeline.
type Client struct {
	baseURL     string
	http        *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a Twitter client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        httpClient,
		rateLimiter: NewRateLimiter(),
	}
}

// Provider implements driven.ProviderClient.
func (c *Client) Provider() domain.ProviderType { return domain.ProviderTwitter }

// Kind implements driven.ProviderClient.
func (c *Client) Kind() domain.ItemKind { return domain.ItemKindTweet }

// ResolveSelector fills in the profile ID. An empty profile means the
// connected account; "@name" is looked up by username.
func (c *Client) ResolveSelector(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector,
) (domain.ImportSelector, error) {
	var path string
	switch {
	case sel.ProfileID == "":
		path = "/2/users/me"
	case strings.HasPrefix(sel.ProfileID, "@"):
		path = "/2/users/by/username/" + url.PathEscape(strings.TrimPrefix(sel.ProfileID, "@"))
	default:
		return sel, nil
	}

	user, err := c.lookupUser(ctx, bearer, "resolve profile", path)
	if err != nil {
		return sel, err
	}
	sel.ProfileID = user.ID
	return sel, nil
}

// Me returns the user the bearer token belongs to.
func (c *Client) Me(ctx context.Context, bearer domain.Bearer) (*User, error) {
	return c.lookupUser(ctx, bearer, "get me", "/2/users/me")
}

// ListPage implements driven.ProviderClient.
func (c *Client) ListPage(
	ctx context.Context, bearer domain.Bearer, sel domain.ImportSelector, cursor string,
) (*domain.Page, error) {
	if sel.ProfileID == "" {
		return nil, domain.NewProviderError(domain.ProviderTwitter, "list timeline", domain.KindUnknown,
			errors.New("profile not resolved"))
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clampPageSize(sel.PageSize)))
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}

	var res timelineResponse
	path := "/2/users/" + url.PathEscape(sel.ProfileID) + "/tweets"
	if err := c.get(ctx, bearer, "list timeline", path, q, &res); err != nil {
		return nil, err
	}

	page := &domain.Page{NextCursor: res.Meta.NextToken}
	for _, t := range res.Data {
		page.NativeIDs = append(page.NativeIDs, t.ID)
	}
	return page, nil
}

// FetchItem implements driven.ProviderClient.
func (c *Client) FetchItem(ctx context.Context, bearer domain.Bearer, nativeID string) (*domain.RawItem, error) {
	q := url.Values{}
	q.Set("tweet.fields", tweetFields)

	var res tweetResponse
	if err := c.get(ctx, bearer, "get tweet", "/2/tweets/"+url.PathEscape(nativeID), q, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return nil, problemError("get tweet", res.Errors)
	}
	return &domain.RawItem{NativeID: nativeID, Kind: domain.ItemKindTweet, Payload: res.Data}, nil
}

// Normalise implements driven.ProviderClient.
func (c *Client) Normalise(raw *domain.RawItem) (domain.Item, error) {
	t, ok := raw.Payload.(*Tweet)
	if !ok || t == nil {
		return nil, domain.NewProviderError(domain.ProviderTwitter, "normalise", domain.KindInvalidItem,
			fmt.Errorf("unexpected payload %T", raw.Payload))
	}
	if t.ID == "" {
		t.ID = raw.NativeID
	}
	return t.ToDomain(), nil
}

func (c *Client) lookupUser(ctx context.Context, bearer domain.Bearer, op, path string) (*User, error) {
	var res userResponse
	if err := c.get(ctx, bearer, op, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return nil, problemError(op, res.Errors)
	}
	return res.Data, nil
}

// get performs an authenticated GET and decodes a 2xx JSON body into out.
func (c *Client) get(
	ctx context.Context, bearer domain.Bearer, op, path string, query url.Values, out any,
) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return domain.NewProviderError(domain.ProviderTwitter, op, domain.KindUnknown, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		kind := domain.KindUnknown
		if connectors.IsNetworkError(err) {
			kind = domain.KindTransient
		}
		return domain.NewProviderError(domain.ProviderTwitter, op, kind, err)
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromResponse(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(op, resp, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		kind := domain.KindUnknown
		if connectors.IsNetworkError(err) {
			kind = domain.KindTransient
		}
		return domain.NewProviderError(domain.ProviderTwitter, op, kind, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// problemError classifies a 200 response that carried only errors.
func problemError(op string, problems []APIError) error {
	if len(problems) == 0 {
		return domain.NewProviderError(domain.ProviderTwitter, op, domain.KindUnknown, errors.New("empty response"))
	}
	kind := domain.KindUnknown
	if problems[0].isNotFound() {
		kind = domain.KindNotFound
	}
	return domain.NewProviderError(domain.ProviderTwitter, op, kind, problems[0])
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return MaxPageSize
	case n < MinPageSize:
		return MinPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}
