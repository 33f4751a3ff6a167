package twitter

import (
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// tweetFields are the fields requested for tweet lookups.
const tweetFields = "author_id,conversation_id,created_at,lang,public_metrics"

// Tweet is the API v2 tweet object.
type Tweet struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	AuthorID       string        `json:"author_id"`
	ConversationID string        `json:"conversation_id"`
	CreatedAt      time.Time     `json:"created_at"`
	Lang           string        `json:"lang"`
	PublicMetrics  PublicMetrics `json:"public_metrics"`
}

// PublicMetrics are a tweet's engagement counters.
type PublicMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// User is the API v2 user object.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type userResponse struct {
	Data   *User      `json:"data"`
	Errors []APIError `json:"errors"`
}

type tweetResponse struct {
	Data   *Tweet     `json:"data"`
	Errors []APIError `json:"errors"`
}

type timelineResponse struct {
	Data []Tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// ToDomain converts the API tweet.
func (t *Tweet) ToDomain() *domain.Tweet {
	return &domain.Tweet{
		ItemHeader: domain.ItemHeader{
			Provider:       domain.ProviderTwitter,
			ProviderItemID: t.ID,
		},
		AuthorID:       t.AuthorID,
		Text:           t.Text,
		ConversationID: t.ConversationID,
		Lang:           t.Lang,
		LikeCount:      t.PublicMetrics.LikeCount,
		RetweetCount:   t.PublicMetrics.RetweetCount,
		PostedAt:       t.CreatedAt.UTC(),
	}
}
