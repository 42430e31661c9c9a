package oauthtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/dbx"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Get(ctx context.Context, accountID int64) (*Token, error) {
	query :=
		`SELECT access_token, refresh_token, token_type, scope, expires_at
		 FROM oauth_tokens
		 WHERE account_id = $1
		 `

	t := &Token{}
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &t.Scope, &t.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return t, nil
}

func (r *PostgresRepository) Save(ctx context.Context, accountID int64, token *Token) error {
	query :=
		`INSERT INTO oauth_tokens (account_id, access_token, refresh_token, token_type, scope, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (account_id) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   token_type = EXCLUDED.token_type,
		   scope = EXCLUDED.scope,
		   expires_at = EXCLUDED.expires_at
		 `

	_, err := r.db.ExecContext(ctx, query, accountID,
		token.AccessToken, token.RefreshToken, token.TokenType, token.Scope, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID int64) error {
	query := `DELETE FROM oauth_tokens WHERE account_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

// PostgresAdminRepository keeps at most one row in admin_oauth_tokens.
type PostgresAdminRepository struct {
	db *sql.DB
}

func NewPostgresAdminRepository(db *sql.DB) (*PostgresAdminRepository, error) {
	return &PostgresAdminRepository{db: db}, nil
}

func (r *PostgresAdminRepository) Get(ctx context.Context) (*Token, error) {
	query :=
		`SELECT access_token, refresh_token, token_type, scope, expires_at
		 FROM admin_oauth_tokens
		 ORDER BY id DESC
		 LIMIT 1
		 `

	t := &Token{}
	err := r.db.QueryRowContext(ctx, query).
		Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &t.Scope, &t.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return t, nil
}

func (r *PostgresAdminRepository) Save(ctx context.Context, token *Token) error {
	// Replace, not append: stale admin tokens must not linger.
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {

		if _, err := tx.ExecContext(ctx, `DELETE FROM admin_oauth_tokens`); err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		query :=
			`INSERT INTO admin_oauth_tokens (access_token, refresh_token, token_type, scope, expires_at)
			 VALUES ($1, $2, $3, $4, $5)
			 `

		_, err := tx.ExecContext(ctx, query,
			token.AccessToken, token.RefreshToken, token.TokenType, token.Scope, token.ExpiresAt)
		if err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		return nil
	})
}

func (r *PostgresAdminRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admin_oauth_tokens`); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}
