package sheets

import (
	"context"
	"errors"
)

// ErrSheetNotFound reports that the requested sheet (tab) does not exist in
// the spreadsheet. Listing paths treat it the same as an empty result.
var ErrSheetNotFound = errors.New("sheet not found")

// RangeReader fetches a rectangular region of the external spreadsheet as
// rows of cells. Rows may be ragged and the result may be empty. Any other
// failure (network, quota, auth) surfaces as an ordinary error; the resolver
// suppresses those per attempt.
type RangeReader interface {
	FetchRange(ctx context.Context, spreadsheetID, sheetName, rangeSpec string) ([][]string, error)
}
