package sheets

import "strings"

// NormalizeHeaderKey converts a raw header name into its canonical map key:
// trimmed, lowercased, spaces and hyphens replaced with underscores.
func NormalizeHeaderKey(header string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, "-", "_")
}

// MapRow zips a header row with a data row into a key-value mapping.
//
// The row is padded with empty strings up to the header count (never
// truncated). Each header contributes two keys pointing at the same cell
// value: the normalized key and the original trimmed header text. When two
// headers normalize to the same key, the later column wins.
func MapRow(headers []string, row []string) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}

	padded := row
	if len(padded) < len(headers) {
		padded = make([]string, len(headers))
		copy(padded, row)
	}

	out := make(map[string]string, len(headers)*2)
	for i, header := range headers {
		name := strings.TrimSpace(header)
		value := strings.TrimSpace(padded[i])
		out[NormalizeHeaderKey(name)] = value
		out[name] = value
	}
	return out
}
