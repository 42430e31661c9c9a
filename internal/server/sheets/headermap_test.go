package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeaderKey(t *testing.T) {
	assert.Equal(t, "client_id", NormalizeHeaderKey("Client ID"))
	assert.Equal(t, "e_mail", NormalizeHeaderKey(" E-Mail "))
	assert.Equal(t, "service_charge", NormalizeHeaderKey("Service Charge"))
}

func TestMapRow_ShortRowPadded(t *testing.T) {
	headers := []string{"Client ID", "Email", "Postcode"}
	row := []string{"CID-1"}

	got := MapRow(headers, row)

	// Every header present in both forms, missing cells empty.
	assert.Equal(t, "CID-1", got["client_id"])
	assert.Equal(t, "CID-1", got["Client ID"])
	assert.Equal(t, "", got["email"])
	assert.Equal(t, "", got["Email"])
	assert.Equal(t, "", got["postcode"])
	assert.Equal(t, "", got["Postcode"])
}

func TestMapRow_DuplicateHeadersLastWins(t *testing.T) {
	headers := []string{"client id", "Client-ID"}
	row := []string{"first", "second"}

	got := MapRow(headers, row)

	assert.Equal(t, "second", got["client_id"])
	assert.Equal(t, "first", got["client id"])
	assert.Equal(t, "second", got["Client-ID"])
}

func TestMapRow_EmptyHeaders(t *testing.T) {
	assert.Empty(t, MapRow(nil, []string{"a", "b"}))
}

func TestMapRow_TrimsValues(t *testing.T) {
	got := MapRow([]string{"Email"}, []string{"  a@x.com  "})
	assert.Equal(t, "a@x.com", got["email"])
}
