package db

import (
	"context"
	"database/sql"

	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
	"github.com/scukconnect/clientportal/internal/server/sessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Accounts() accounts.Repository
	Profiles() accounts.ProfileRepository
	Sessions() sessions.Repository
	OAuthTokens() oauthtokens.Repository
	AdminOAuthTokens() oauthtokens.AdminRepository
}
