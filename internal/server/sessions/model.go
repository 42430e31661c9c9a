// Package sessions stores the opaque refresh tokens backing portal logins.
package sessions

import "time"

type Session struct {
	AccountID int64
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session's refresh token is past its validity.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
