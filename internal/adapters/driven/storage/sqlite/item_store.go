package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// itemStore implements driven.ItemStore.
type itemStore struct {
	store *Store
}

var _ driven.ItemStore = (*itemStore)(nil)

// itemTables maps each item kind to its table.
var itemTables = map[domain.ItemKind]string{
	domain.ItemKindEmail:     "emails",
	domain.ItemKindTweet:     "tweets",
	domain.ItemKindDriveFile: "drive_files",
}

// UpsertItem inserts or overwrites an item in one statement. write_count
// tells a fresh insert from an overwrite.
func (s *itemStore) UpsertItem(ctx context.Context, item domain.Item) (domain.StoredItem, error) {
	h := item.Header()
	if h.UserID == "" || h.Provider == "" || h.ProviderItemID == "" {
		return domain.StoredItem{}, domain.ErrInvalidInput
	}

	var (
		query string
		args  []any
		err   error
	)
	switch v := item.(type) {
	case *domain.Email:
		query, args, err = upsertEmail(v)
	case *domain.Tweet:
		query, args = upsertTweet(v)
	case *domain.DriveFile:
		query, args, err = upsertDriveFile(v)
	default:
		return domain.StoredItem{}, fmt.Errorf("%w: unsupported item %T", domain.ErrInvalidInput, item)
	}
	if err != nil {
		return domain.StoredItem{}, err
	}

	var writes int
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&writes); err != nil {
		return domain.StoredItem{}, fmt.Errorf("upserting %s: %w", item.Kind(), err)
	}
	return domain.StoredItem{Kind: item.Kind(), ProviderItemID: h.ProviderItemID, Created: writes == 1}, nil
}

// GetItem retrieves one item by its idempotence key.
func (s *itemStore) GetItem(
	ctx context.Context,
	kind domain.ItemKind,
	userID string,
	provider domain.ProviderType,
	providerItemID string,
) (domain.Item, error) {
	var (
		item domain.Item
		err  error
	)
	args := []any{userID, provider, providerItemID}
	switch kind {
	case domain.ItemKindEmail:
		item, err = scanEmail(s.store.db.QueryRowContext(ctx, `
			SELECT user_id, provider, provider_item_id, thread_id, subject, from_address, to_addresses,
				cc_addresses, snippet, body, labels, received_at, fetched_at, updated_at
			FROM emails WHERE user_id = ? AND provider = ? AND provider_item_id = ?`, args...))
	case domain.ItemKindTweet:
		item, err = scanTweet(s.store.db.QueryRowContext(ctx, `
			SELECT user_id, provider, provider_item_id, author_id, text, conversation_id, lang,
				like_count, retweet_count, posted_at, fetched_at, updated_at
			FROM tweets WHERE user_id = ? AND provider = ? AND provider_item_id = ?`, args...))
	case domain.ItemKindDriveFile:
		item, err = scanDriveFile(s.store.db.QueryRowContext(ctx, `
			SELECT user_id, provider, provider_item_id, name, mime_type, size_bytes, parents, md5,
				web_link, modified_at, fetched_at, updated_at
			FROM drive_files WHERE user_id = ? AND provider = ? AND provider_item_id = ?`, args...))
	default:
		return nil, fmt.Errorf("%w: unknown item kind %q", domain.ErrInvalidInput, kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", kind, err)
	}
	return item, nil
}

// CountItems counts all items imported under an account.
func (s *itemStore) CountItems(ctx context.Context, userID string, provider domain.ProviderType) (int, error) {
	total := 0
	for _, table := range itemTables {
		var n int
		err := s.store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE user_id = ? AND provider = ?", userID, provider).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("counting %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// DeleteAllItemsForAccount removes all items imported under an account.
func (s *itemStore) DeleteAllItemsForAccount(ctx context.Context, userID string, provider domain.ProviderType) (int, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	n, err := deleteItems(ctx, tx, userID, provider)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return n, nil
}

// ==================== Helper Functions ====================

func deleteItems(ctx context.Context, db execer, userID string, provider domain.ProviderType) (int, error) {
	total := 0
	for _, table := range itemTables {
		res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ? AND provider = ?", userID, provider)
		if err != nil {
			return 0, fmt.Errorf("deleting %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting deleted %s: %w", table, err)
		}
		total += int(n)
	}
	return total, nil
}

func upsertEmail(e *domain.Email) (string, []any, error) {
	to, err := marshalStrings(e.To)
	if err != nil {
		return "", nil, err
	}
	cc, err := marshalStrings(e.Cc)
	if err != nil {
		return "", nil, err
	}
	labels, err := marshalStrings(e.Labels)
	if err != nil {
		return "", nil, err
	}
	return `
		INSERT INTO emails (user_id, provider, provider_item_id, thread_id, subject, from_address,
			to_addresses, cc_addresses, snippet, body, labels, received_at, fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, provider_item_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			subject = excluded.subject,
			from_address = excluded.from_address,
			to_addresses = excluded.to_addresses,
			cc_addresses = excluded.cc_addresses,
			snippet = excluded.snippet,
			body = excluded.body,
			labels = excluded.labels,
			received_at = excluded.received_at,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at,
			write_count = emails.write_count + 1
		RETURNING write_count`,
		[]any{e.UserID, e.Provider, e.ProviderItemID, nullString(e.ThreadID), e.Subject, e.From,
			to, cc, nullString(e.Snippet), nullString(e.Body), labels, formatNullableTime(e.ReceivedAt),
			formatTime(e.FetchedAt), formatTime(e.UpdatedAt), formatTime(e.UpdatedAt)}, nil
}

func upsertTweet(t *domain.Tweet) (string, []any) {
	return `
		INSERT INTO tweets (user_id, provider, provider_item_id, author_id, text, conversation_id, lang,
			like_count, retweet_count, posted_at, fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, provider_item_id) DO UPDATE SET
			author_id = excluded.author_id,
			text = excluded.text,
			conversation_id = excluded.conversation_id,
			lang = excluded.lang,
			like_count = excluded.like_count,
			retweet_count = excluded.retweet_count,
			posted_at = excluded.posted_at,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at,
			write_count = tweets.write_count + 1
		RETURNING write_count`,
		[]any{t.UserID, t.Provider, t.ProviderItemID, t.AuthorID, t.Text, nullString(t.ConversationID),
			nullString(t.Lang), t.LikeCount, t.RetweetCount, formatNullableTime(t.PostedAt),
			formatTime(t.FetchedAt), formatTime(t.UpdatedAt), formatTime(t.UpdatedAt)}
}

func upsertDriveFile(f *domain.DriveFile) (string, []any, error) {
	parents, err := marshalStrings(f.Parents)
	if err != nil {
		return "", nil, err
	}
	return `
		INSERT INTO drive_files (user_id, provider, provider_item_id, name, mime_type, size_bytes, parents,
			md5, web_link, modified_at, fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, provider_item_id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			parents = excluded.parents,
			md5 = excluded.md5,
			web_link = excluded.web_link,
			modified_at = excluded.modified_at,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at,
			write_count = drive_files.write_count + 1
		RETURNING write_count`,
		[]any{f.UserID, f.Provider, f.ProviderItemID, f.Name, f.MimeType, f.SizeBytes, parents,
			nullString(f.MD5), nullString(f.WebLink), formatNullableTime(f.ModifiedAt),
			formatTime(f.FetchedAt), formatTime(f.UpdatedAt), formatTime(f.UpdatedAt)}, nil
}

func scanEmail(row scanner) (*domain.Email, error) {
	var e domain.Email
	var provider, to, cc, labels string
	var threadID, snippet, body, receivedAt, fetchedAt, updatedAt sql.NullString
	if err := row.Scan(&e.UserID, &provider, &e.ProviderItemID, &threadID, &e.Subject, &e.From,
		&to, &cc, &snippet, &body, &labels, &receivedAt, &fetchedAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.To, err = unmarshalStrings(to); err != nil {
		return nil, err
	}
	if e.Cc, err = unmarshalStrings(cc); err != nil {
		return nil, err
	}
	if e.Labels, err = unmarshalStrings(labels); err != nil {
		return nil, err
	}
	e.Provider = domain.ProviderType(provider)
	e.ThreadID = threadID.String
	e.Snippet = snippet.String
	e.Body = body.String
	e.ReceivedAt = parseNullableTime(receivedAt)
	e.FetchedAt = parseNullableTime(fetchedAt)
	e.UpdatedAt = parseNullableTime(updatedAt)
	return &e, nil
}

func scanTweet(row scanner) (*domain.Tweet, error) {
	var t domain.Tweet
	var provider string
	var conversationID, lang, postedAt, fetchedAt, updatedAt sql.NullString
	if err := row.Scan(&t.UserID, &provider, &t.ProviderItemID, &t.AuthorID, &t.Text, &conversationID,
		&lang, &t.LikeCount, &t.RetweetCount, &postedAt, &fetchedAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Provider = domain.ProviderType(provider)
	t.ConversationID = conversationID.String
	t.Lang = lang.String
	t.PostedAt = parseNullableTime(postedAt)
	t.FetchedAt = parseNullableTime(fetchedAt)
	t.UpdatedAt = parseNullableTime(updatedAt)
	return &t, nil
}

func scanDriveFile(row scanner) (*domain.DriveFile, error) {
	var f domain.DriveFile
	var provider, parents string
	var md5, webLink, modifiedAt, fetchedAt, updatedAt sql.NullString
	if err := row.Scan(&f.UserID, &provider, &f.ProviderItemID, &f.Name, &f.MimeType, &f.SizeBytes,
		&parents, &md5, &webLink, &modifiedAt, &fetchedAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if f.Parents, err = unmarshalStrings(parents); err != nil {
		return nil, err
	}
	f.Provider = domain.ProviderType(provider)
	f.MD5 = md5.String
	f.WebLink = webLink.String
	f.ModifiedAt = parseNullableTime(modifiedAt)
	f.FetchedAt = parseNullableTime(fetchedAt)
	f.UpdatedAt = parseNullableTime(updatedAt)
	return &f, nil
}
