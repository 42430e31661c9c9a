package sheets

import (
	"context"
	"errors"
	"strings"
)

// Lister reads document and mapping sheets that hang off the same
// spreadsheet as the client data. Unlike the resolver it treats a missing
// sheet as an empty result rather than a failed attempt.
type Lister struct {
	reader        RangeReader
	spreadsheetID string
}

func NewLister(reader RangeReader, spreadsheetID string) *Lister {
	return &Lister{reader: reader, spreadsheetID: spreadsheetID}
}

// DocumentsForClient returns every row of the Documents sheet whose
// client_id cell equals the given client code (exact, trimmed comparison).
// The Documents sheet uses the shape-B layout: headers on row 1.
func (l *Lister) DocumentsForClient(ctx context.Context, clientCode string) ([]Record, error) {
	rows, err := l.reader.FetchRange(ctx, l.spreadsheetID, SheetDocuments, defaultRange)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	want := strings.TrimSpace(clientCode)

	var docs []Record
	for _, row := range rows[1:] {
		rec := Record(MapRow(headers, row))
		if strings.TrimSpace(rec["client_id"]) == want {
			docs = append(docs, rec)
		}
	}
	return docs, nil
}

// UnitHeaderMap reads the VR sheet's C:D columns and returns the mapping of
// unit codes to display header names. Column C holds the header name,
// column D the unit code. Rows missing either side are skipped; a missing
// VR sheet yields an empty map.
func (l *Lister) UnitHeaderMap(ctx context.Context) (map[string]string, error) {
	rows, err := l.reader.FetchRange(ctx, l.spreadsheetID, SheetVR, "C:D")
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	mapping := map[string]string{}
	start := 0
	if len(rows) > 1 && len(rows[0]) > 0 {
		start = 1 // skip header row when present
	}
	for _, row := range rows[start:] {
		if len(row) < 2 {
			continue
		}
		header := strings.TrimSpace(row[0])
		unit := strings.TrimSpace(row[1])
		if header != "" && unit != "" {
			mapping[unit] = header
		}
	}
	return mapping, nil
}
