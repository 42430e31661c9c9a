// Package oauthtokens persists Google OAuth credentials, one token per
// portal account plus a single shared admin token.
package oauthtokens

import "time"

type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// Expired reports whether the access token needs refreshing. A token with no
// recorded expiry is treated as expired so it gets refreshed before use.
func (t *Token) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().After(t.ExpiresAt)
}
