package sessions

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, accountID int64, token string, validity time.Duration) error
	Find(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
