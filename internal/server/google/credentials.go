package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
)

// Credentials hands out a usable access token from a token store, refreshing
// transparently when expired. The same provider serves per-account stores and
// the admin singleton; only the bound store differs.
type Credentials struct {
	oauth  *OAuthConfig
	store  oauthtokens.Store
	logger logging.Logger
}

func NewCredentials(oauth *OAuthConfig, store oauthtokens.Store, logger logging.Logger) *Credentials {
	return &Credentials{oauth: oauth, store: store, logger: logger}
}

// AccessToken returns a live access token. common.ErrNotConnected means the
// account never connected (or cannot be refreshed); common.ErrScopeChanged
// means the stored grant no longer covers the required scopes and the user
// must re-consent.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {

	token, err := c.store.Get(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrNotConnected
		}
		return "", fmt.Errorf("error loading oauth token: %v", err)
	}

	if !token.Expired() {
		return token.AccessToken, nil
	}

	if token.RefreshToken == "" {
		return "", common.ErrNotConnected
	}

	refreshed, err := c.oauth.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		var oaErr *OAuthError
		if errors.As(err, &oaErr) && oaErr.Code == "invalid_scope" {
			// The grant predates a scope change. Drop it so the next
			// connect asks for the current scopes.
			if delErr := c.store.Delete(ctx); delErr != nil {
				c.logger.Warn(ctx, "failed to delete stale oauth token", "error", delErr)
			}
			return "", common.ErrScopeChanged
		}
		return "", fmt.Errorf("error refreshing oauth token: %w", err)
	}

	// Google omits the refresh token on refresh responses.
	refreshed.RefreshToken = token.RefreshToken

	if err := c.store.Save(ctx, refreshed); err != nil {
		c.logger.Warn(ctx, "failed to persist refreshed oauth token", "error", err)
	}

	return refreshed.AccessToken, nil
}

// Status reports whether a token is stored and whether it has expired,
// without triggering a refresh.
func (c *Credentials) Status(ctx context.Context) (connected bool, expired bool, err error) {
	token, err := c.store.Get(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("error loading oauth token: %v", err)
	}
	return true, token.Expired(), nil
}
