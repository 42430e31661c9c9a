package oauthtokens

import "context"

// Repository stores per-account tokens.
type Repository interface {
	Get(ctx context.Context, accountID int64) (*Token, error)
	Save(ctx context.Context, accountID int64, token *Token) error
	Delete(ctx context.Context, accountID int64) error
}

// AdminRepository stores the single organisation-wide admin token. Saving
// replaces whatever token was stored before.
type AdminRepository interface {
	Get(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
	Delete(ctx context.Context) error
}

// Store is the one-token view credential providers work against: either an
// AdminRepository directly, or a Repository bound to an account.
type Store interface {
	Get(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
	Delete(ctx context.Context) error
}

type accountStore struct {
	repo      Repository
	accountID int64
}

// ForAccount narrows a per-account repository down to a Store for one account.
func ForAccount(repo Repository, accountID int64) Store {
	return &accountStore{repo: repo, accountID: accountID}
}

func (s *accountStore) Get(ctx context.Context) (*Token, error) {
	return s.repo.Get(ctx, s.accountID)
}

func (s *accountStore) Save(ctx context.Context, token *Token) error {
	return s.repo.Save(ctx, s.accountID, token)
}

func (s *accountStore) Delete(ctx context.Context) error {
	return s.repo.Delete(ctx, s.accountID)
}
