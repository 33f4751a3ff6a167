package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

type itemStore struct {
	pool *pgxpool.Pool
}

var _ driven.ItemStore = (*itemStore)(nil)

var itemTables = []string{"emails", "tweets", "drive_files"}

// UpsertItem inserts or overwrites an item in one statement.
func (s *itemStore) UpsertItem(ctx context.Context, item domain.Item) (domain.StoredItem, error) {
	h := item.Header()
	if h.UserID == "" || h.Provider == "" || h.ProviderItemID == "" {
		return domain.StoredItem{}, domain.ErrInvalidInput
	}

	var query string
	var args []any
	switch v := item.(type) {
	case *domain.Email:
		query = `
			INSERT INTO emails (user_id, provider, provider_item_id, thread_id, subject, from_address,
				to_addresses, cc_addresses, snippet, body, labels, received_at, fetched_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			ON CONFLICT (user_id, provider, provider_item_id) DO UPDATE SET
				thread_id = EXCLUDED.thread_id, subject = EXCLUDED.subject,
				from_address = EXCLUDED.from_address, to_addresses = EXCLUDED.to_addresses,
				cc_addresses = EXCLUDED.cc_addresses, snippet = EXCLUDED.snippet, body = EXCLUDED.body,
				labels = EXCLUDED.labels, received_at = EXCLUDED.received_at,
				fetched_at = EXCLUDED.fetched_at, updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)`
		args = []any{v.UserID, string(v.Provider), v.ProviderItemID, v.ThreadID, v.Subject, v.From,
			nonNil(v.To), nonNil(v.Cc), v.Snippet, v.Body, nonNil(v.Labels), nullTime(v.ReceivedAt),
			v.FetchedAt, v.UpdatedAt}
	case *domain.Tweet:
		query = `
			INSERT INTO tweets (user_id, provider, provider_item_id, author_id, text, conversation_id, lang,
				like_count, retweet_count, posted_at, fetched_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
			ON CONFLICT (user_id, provider, provider_item_id) DO UPDATE SET
				author_id = EXCLUDED.author_id, text = EXCLUDED.text,
				conversation_id = EXCLUDED.conversation_id, lang = EXCLUDED.lang,
				like_count = EXCLUDED.like_count, retweet_count = EXCLUDED.retweet_count,
				posted_at = EXCLUDED.posted_at, fetched_at = EXCLUDED.fetched_at, updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)`
		args = []any{v.UserID, string(v.Provider), v.ProviderItemID, v.AuthorID, v.Text, v.ConversationID,
			v.Lang, v.LikeCount, v.RetweetCount, nullTime(v.PostedAt), v.FetchedAt, v.UpdatedAt}
	case *domain.DriveFile:
		query = `
			INSERT INTO drive_files (user_id, provider, provider_item_id, name, mime_type, size_bytes, parents,
				md5, web_link, modified_at, fetched_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
			ON CONFLICT (user_id, provider, provider_item_id) DO UPDATE SET
				name = EXCLUDED.name, mime_type = EXCLUDED.mime_type, size_bytes = EXCLUDED.size_bytes,
				parents = EXCLUDED.parents, md5 = EXCLUDED.md5, web_link = EXCLUDED.web_link,
				modified_at = EXCLUDED.modified_at, fetched_at = EXCLUDED.fetched_at,
				updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)`
		args = []any{v.UserID, string(v.Provider), v.ProviderItemID, v.Name, v.MimeType, v.SizeBytes,
			nonNil(v.Parents), v.MD5, v.WebLink, nullTime(v.ModifiedAt), v.FetchedAt, v.UpdatedAt}
	default:
		return domain.StoredItem{}, fmt.Errorf("%w: unsupported item %T", domain.ErrInvalidInput, item)
	}

	var inserted bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
		return domain.StoredItem{}, fmt.Errorf("upsert %s: %w", item.Kind(), err)
	}
	return domain.StoredItem{Kind: item.Kind(), ProviderItemID: h.ProviderItemID, Created: inserted}, nil
}

func (s *itemStore) GetItem(
	ctx context.Context,
	kind domain.ItemKind,
	userID string,
	provider domain.ProviderType,
	providerItemID string,
) (domain.Item, error) {
	const where = " WHERE user_id = $1 AND provider = $2 AND provider_item_id = $3"
	args := []any{userID, string(provider), providerItemID}

	var (
		item domain.Item
		err  error
	)
	switch kind {
	case domain.ItemKindEmail:
		var e domain.Email
		var received *time.Time
		err = s.pool.QueryRow(ctx, `SELECT user_id, provider, provider_item_id, thread_id, subject, from_address,
			to_addresses, cc_addresses, snippet, body, labels, received_at, fetched_at, updated_at FROM emails`+where, args...).
			Scan(&e.UserID, &e.Provider, &e.ProviderItemID, &e.ThreadID, &e.Subject, &e.From, &e.To, &e.Cc,
				&e.Snippet, &e.Body, &e.Labels, &received, &e.FetchedAt, &e.UpdatedAt)
		e.ReceivedAt = deref(received)
		item = &e
	case domain.ItemKindTweet:
		var t domain.Tweet
		var posted *time.Time
		err = s.pool.QueryRow(ctx, `SELECT user_id, provider, provider_item_id, author_id, text, conversation_id,
			lang, like_count, retweet_count, posted_at, fetched_at, updated_at FROM tweets`+where, args...).
			Scan(&t.UserID, &t.Provider, &t.ProviderItemID, &t.AuthorID, &t.Text, &t.ConversationID, &t.Lang,
				&t.LikeCount, &t.RetweetCount, &posted, &t.FetchedAt, &t.UpdatedAt)
		t.PostedAt = deref(posted)
		item = &t
	case domain.ItemKindDriveFile:
		var f domain.DriveFile
		var modified *time.Time
		err = s.pool.QueryRow(ctx, `SELECT user_id, provider, provider_item_id, name, mime_type, size_bytes,
			parents, md5, web_link, modified_at, fetched_at, updated_at FROM drive_files`+where, args...).
			Scan(&f.UserID, &f.Provider, &f.ProviderItemID, &f.Name, &f.MimeType, &f.SizeBytes, &f.Parents,
				&f.MD5, &f.WebLink, &modified, &f.FetchedAt, &f.UpdatedAt)
		f.ModifiedAt = deref(modified)
		item = &f
	default:
		return nil, fmt.Errorf("%w: unknown item kind %q", domain.ErrInvalidInput, kind)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return item, nil
}

func (s *itemStore) CountItems(ctx context.Context, userID string, provider domain.ProviderType) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM emails WHERE user_id = $1 AND provider = $2)
		     + (SELECT COUNT(*) FROM tweets WHERE user_id = $1 AND provider = $2)
		     + (SELECT COUNT(*) FROM drive_files WHERE user_id = $1 AND provider = $2)`,
		userID, string(provider)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

func (s *itemStore) DeleteAllItemsForAccount(ctx context.Context, userID string, provider domain.ProviderType) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	n, err := deleteItems(ctx, tx, userID, provider)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return n, nil
}

func deleteItems(ctx context.Context, q querier, userID string, provider domain.ProviderType) (int, error) {
	total := 0
	for _, table := range itemTables {
		tag, err := q.Exec(ctx, "DELETE FROM "+table+" WHERE user_id = $1 AND provider = $2", userID, string(provider))
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
