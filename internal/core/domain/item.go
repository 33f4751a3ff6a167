package domain

import "time"

// Item is normalised provider content ready to be stored.
type Item interface {
	// Header returns the identity and timestamps shared by every item kind.
	Header() *ItemHeader
	// Kind returns the item's kind.
	Kind() ItemKind
}

// ItemHeader carries the idempotence key and bookkeeping timestamps.
// (UserID, Provider, ProviderItemID) is unique per item kind.
type ItemHeader struct {
	UserID         string       `json:"user_id"`
	Provider       ProviderType `json:"provider"`
	ProviderItemID string       `json:"provider_item_id"`
	// FetchedAt is when the item was last retrieved from the provider.
	FetchedAt time.Time `json:"fetched_at"`
	// UpdatedAt is when the stored row last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Header returns h itself so embedding types satisfy Item.
func (h *ItemHeader) Header() *ItemHeader { return h }

// Email is a normalised mail message.
type Email struct {
	ItemHeader
	ThreadID   string    `json:"thread_id,omitempty"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	To         []string  `json:"to,omitempty"`
	Cc         []string  `json:"cc,omitempty"`
	Snippet    string    `json:"snippet,omitempty"`
	Body       string    `json:"body,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Kind implements Item.
func (*Email) Kind() ItemKind { return ItemKindEmail }

// Tweet is a normalised social post.
type Tweet struct {
	ItemHeader
	AuthorID       string    `json:"author_id"`
	Text           string    `json:"text"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	LikeCount      int       `json:"like_count"`
	RetweetCount   int       `json:"retweet_count"`
	PostedAt       time.Time `json:"posted_at"`
}

// Kind implements Item.
func (*Tweet) Kind() ItemKind { return ItemKindTweet }

// DriveFile is a normalised file-storage entry. Content is not downloaded.
type DriveFile struct {
	ItemHeader
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Parents    []string  `json:"parents,omitempty"`
	MD5        string    `json:"md5,omitempty"`
	WebLink    string    `json:"web_link,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Kind implements Item.
func (*DriveFile) Kind() ItemKind { return ItemKindDriveFile }

// Page is one page of native identifiers returned by a provider listing.
type Page struct {
	NativeIDs []string
	// NextCursor is empty when there are no further pages.
	NextCursor string
}

// RawItem is provider-native item detail before normalisation.
// Payload holds the provider SDK's own type.
type RawItem struct {
	NativeID string
	Kind     ItemKind
	Payload  any
}

// StoredItem reports the outcome of an upsert.
type StoredItem struct {
	Kind           ItemKind
	ProviderItemID string
	// Created is true when the row did not exist before.
	Created bool
}
