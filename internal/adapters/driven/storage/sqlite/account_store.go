package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// accountStore implements driven.AccountStore.
type accountStore struct {
	store *Store
}

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `user_id, provider, account_identifier, access_token, refresh_token, token_type,
	expires_at, granted_scopes, created_at, updated_at`

// Get retrieves the account for a user and provider.
func (s *accountStore) Get(ctx context.Context, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error) {
	return getAccount(ctx, s.store.db, userID, provider)
}

// Save creates or replaces an account.
func (s *accountStore) Save(ctx context.Context, account *domain.ConnectedAccount) error {
	if account == nil || account.UserID == "" || account.Provider == "" {
		return domain.ErrInvalidInput
	}
	return putAccount(ctx, s.store.db, account)
}

// Update reads the account, applies fn and writes the result inside one
// immediate transaction. Another Update on the same database, from this
// process or another, waits for the commit and then reads the new row.
func (s *accountStore) Update(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	fn func(*domain.ConnectedAccount) error,
) (*domain.ConnectedAccount, error) {
	var updated *domain.ConnectedAccount
	err := s.store.immediate(ctx, func(conn *sql.Conn) error {
		account, err := getAccount(ctx, conn, userID, provider)
		if err != nil {
			return err
		}
		if err := fn(account); err != nil {
			return err
		}
		account.UserID, account.Provider = userID, provider
		if err := putAccount(ctx, conn, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the account and every item imported under it in one transaction.
func (s *accountStore) Delete(ctx context.Context, userID string, provider domain.ProviderType) error {
	return s.store.immediate(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"DELETE FROM connected_accounts WHERE user_id = ? AND provider = ?", userID, provider)
		if err != nil {
			return fmt.Errorf("deleting account: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrNotFound
		}
		_, err = deleteItems(ctx, conn, userID, provider)
		return err
	})
}

// ListExpiring returns refreshable accounts whose tokens expire before the given time.
func (s *accountStore) ListExpiring(ctx context.Context, before time.Time) ([]domain.ConnectedAccount, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts
		WHERE refresh_token IS NOT NULL AND refresh_token != ''
		  AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY user_id, provider
	`, formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("querying expiring accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.ConnectedAccount //nolint:prealloc // size unknown from query
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expiring accounts: %w", err)
	}
	return accounts, nil
}

// ==================== Helper Functions ====================

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getAccount(ctx context.Context, q queryRower, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts WHERE user_id = ? AND provider = ?
	`, userID, provider)
	return scanAccount(row)
}

func putAccount(ctx context.Context, db execer, a *domain.ConnectedAccount) error {
	scopes, err := marshalStrings(a.GrantedScopes)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO connected_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			account_identifier = excluded.account_identifier,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			granted_scopes = excluded.granted_scopes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, a.UserID, a.Provider, nullString(a.AccountIdentifier), a.AccessToken,
		nullString(a.RefreshToken), nullString(a.TokenType), formatTimePtr(a.ExpiresAt),
		scopes, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

func scanAccount(row scanner) (*domain.ConnectedAccount, error) {
	var a domain.ConnectedAccount
	var provider string
	var identifier, refresh, tokenType, expiresAt, createdAt, updatedAt sql.NullString
	var scopes string

	if err := row.Scan(&a.UserID, &provider, &identifier, &a.AccessToken, &refresh, &tokenType,
		&expiresAt, &scopes, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	granted, err := unmarshalStrings(scopes)
	if err != nil {
		return nil, err
	}
	a.Provider = domain.ProviderType(provider)
	a.AccountIdentifier = identifier.String
	a.RefreshToken = refresh.String
	a.TokenType = tokenType.String
	a.ExpiresAt = parseTimePtr(expiresAt)
	a.GrantedScopes = granted
	a.CreatedAt = parseNullableTime(createdAt)
	a.UpdatedAt = parseNullableTime(updatedAt)
	return &a, nil
}
