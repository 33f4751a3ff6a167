package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

type accountStore struct {
	pool *pgxpool.Pool
}

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `user_id, provider, account_identifier, access_token, refresh_token, token_type,
	expires_at, granted_scopes, created_at, updated_at`

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *accountStore) Get(ctx context.Context, userID string, provider domain.ProviderType) (*domain.ConnectedAccount, error) {
	return getAccount(ctx, s.pool, userID, provider, "")
}

func (s *accountStore) Save(ctx context.Context, account *domain.ConnectedAccount) error {
	if account == nil || account.UserID == "" || account.Provider == "" {
		return domain.ErrInvalidInput
	}
	return putAccount(ctx, s.pool, account)
}

// Update runs fn while holding the account's row lock.
func (s *accountStore) Update(
	ctx context.Context,
	userID string,
	provider domain.ProviderType,
	fn func(*domain.ConnectedAccount) error,
) (*domain.ConnectedAccount, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	account, err := getAccount(ctx, tx, userID, provider, "FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if err := fn(account); err != nil {
		return nil, err
	}
	account.UserID, account.Provider = userID, provider
	if err := putAccount(ctx, tx, account); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return account, nil
}

func (s *accountStore) Delete(ctx context.Context, userID string, provider domain.ProviderType) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, "DELETE FROM connected_accounts WHERE user_id = $1 AND provider = $2", userID, string(provider))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := deleteItems(ctx, tx, userID, provider); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *accountStore) ListExpiring(ctx context.Context, before time.Time) ([]domain.ConnectedAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts
		WHERE refresh_token <> '' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY user_id, provider`, before)
	if err != nil {
		return nil, fmt.Errorf("query expiring accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.ConnectedAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring accounts: %w", err)
	}
	return accounts, nil
}

func getAccount(
	ctx context.Context, q querier, userID string, provider domain.ProviderType, lock string,
) (*domain.ConnectedAccount, error) {
	row := q.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts WHERE user_id = $1 AND provider = $2 `+lock, userID, string(provider))
	return scanAccount(row)
}

func putAccount(ctx context.Context, q querier, a *domain.ConnectedAccount) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	scopes := a.GrantedScopes
	if scopes == nil {
		scopes = []string{}
	}

	_, err := q.Exec(ctx, `
		INSERT INTO connected_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			account_identifier = EXCLUDED.account_identifier,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			granted_scopes = EXCLUDED.granted_scopes,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		a.UserID, string(a.Provider), a.AccountIdentifier, a.AccessToken, a.RefreshToken, a.TokenType,
		a.ExpiresAt, scopes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.ConnectedAccount, error) {
	var a domain.ConnectedAccount
	var provider string
	if err := row.Scan(&a.UserID, &provider, &a.AccountIdentifier, &a.AccessToken, &a.RefreshToken,
		&a.TokenType, &a.ExpiresAt, &a.GrantedScopes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Provider = domain.ProviderType(provider)
	if len(a.GrantedScopes) == 0 {
		a.GrantedScopes = nil
	}
	return &a, nil
}
