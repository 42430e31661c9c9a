// Package accounts owns portal accounts and their profiles: signup, login,
// token refresh, and profile reads/updates.
package accounts

import (
	"fmt"
	"time"
)

type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile links a portal account to its external row identity. ClientCode is
// unique and starts life as the placeholder ProvisionalClientCode(id); only
// the resolver's client-code sync mutates it afterwards.
type Profile struct {
	AccountID  int64
	ClientCode string
	Postcode   string
	FirstName  string
	LastName   string
	Phone      string
	Country    string
	City       string
	Address    string
	TaxID      string
}

// ProvisionalClientCode returns the placeholder client code assigned at
// signup, before any external sheet match exists.
func ProvisionalClientCode(accountID int64) string {
	return fmt.Sprintf("client_%d", accountID)
}

// ProfileUpdate carries a partial profile update; nil fields are left
// untouched. The client code is deliberately absent: callers cannot set it.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Country   *string
	City      *string
	Postcode  *string
	Address   *string
	TaxID     *string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
