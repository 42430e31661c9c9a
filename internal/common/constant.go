// Package common contains shared constants and sentinel errors used across
// portal components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"
