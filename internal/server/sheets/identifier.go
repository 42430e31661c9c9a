// Package sheets implements the record-resolution core: it maps a portal
// account to a row in the external spreadsheet across the two sheet layouts,
// normalizing identifiers and syncing back the authoritative client code.
package sheets

import "strings"

// IdentifierKind distinguishes the two identifier forms a lookup can use.
type IdentifierKind string

const (
	// KindClientCode is an opaque client code, optionally prefixed with '#'.
	KindClientCode IdentifierKind = "client_id"
	// KindEmail is an email address.
	KindEmail IdentifierKind = "email"
)

// NormalizeIdentifier canonicalizes a free-text identifier for comparison.
// Emails are trimmed and lowercased; client codes additionally have every
// '#' removed. Empty input normalizes to the empty string.
func NormalizeIdentifier(value string, kind IdentifierKind) string {
	v := strings.TrimSpace(value)
	if kind == KindClientCode {
		v = strings.ReplaceAll(v, "#", "")
		v = strings.TrimSpace(v)
	}
	return strings.ToLower(v)
}
