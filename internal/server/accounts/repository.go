package accounts

import (
	"context"
)

type Repository interface {
	// Create inserts the account and its profile (with the provisional
	// client code) in one transaction and returns the stored account.
	Create(ctx context.Context, account *Account, postcode string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}

type ProfileRepository interface {
	Get(ctx context.Context, accountID int64) (*Profile, error)
	// Update applies the non-nil fields of the update. The client code is
	// out of reach here; use UpdateClientCode.
	Update(ctx context.Context, accountID int64, update ProfileUpdate) (*Profile, error)
	UpdateClientCode(ctx context.Context, accountID int64, clientCode string) error
}
