package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/migrations"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
	"github.com/scukconnect/clientportal/internal/server/sessions"
)

type PostgresRepositoryManager struct {
	db          *sql.DB
	accounts    accounts.Repository
	profiles    accounts.ProfileRepository
	sessions    sessions.Repository
	tokens      oauthtokens.Repository
	adminTokens oauthtokens.AdminRepository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Accounts() accounts.Repository {
	return m.accounts
}

func (m *PostgresRepositoryManager) Profiles() accounts.ProfileRepository {
	return m.profiles
}

func (m *PostgresRepositoryManager) Sessions() sessions.Repository {
	return m.sessions
}

func (m *PostgresRepositoryManager) OAuthTokens() oauthtokens.Repository {
	return m.tokens
}

func (m *PostgresRepositoryManager) AdminOAuthTokens() oauthtokens.AdminRepository {
	return m.adminTokens
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	accountRepo, err := accounts.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("account repo creation error: %w", err)
	}

	profileRepo, err := accounts.NewPostgresProfileRepository(db)
	if err != nil {
		return nil, fmt.Errorf("profile repo creation error: %w", err)
	}

	sessionRepo, err := sessions.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("session repo creation error: %w", err)
	}

	tokenRepo, err := oauthtokens.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("oauth token repo creation error: %w", err)
	}

	adminTokenRepo, err := oauthtokens.NewPostgresAdminRepository(db)
	if err != nil {
		return nil, fmt.Errorf("admin oauth token repo creation error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:          db,
		accounts:    accountRepo,
		profiles:    profileRepo,
		sessions:    sessionRepo,
		tokens:      tokenRepo,
		adminTokens: adminTokenRepo,
	}

	err = m.RunMigrations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
