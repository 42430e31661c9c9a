package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/logging"
)

// Sheet (tab) names of the external spreadsheet.
const (
	SheetLTP       = "LTP"
	SheetInput     = "Input"
	SheetDocuments = "Documents"
	SheetVR        = "VR"
)

// defaultRange covers every column the sheets currently use.
const defaultRange = "A:Z"

// rowNumberKey is the transient key carrying the matched row's position.
// It is stripped from every record before it leaves this package.
const rowNumberKey = "_row_number"

// Record is the key-value view of a matched spreadsheet row. Keys appear in
// both normalized and original-header form (see MapRow).
type Record map[string]string

// clientCodeHeaderVariants are the accepted spellings of the client-code
// column, probed in order when syncing the code back to the profile.
var clientCodeHeaderVariants = []string{
	"client_id", "Client ID", "client_ID", "Client_ID", "CLIENT_ID", "client id",
}

// postcodeHeaderVariants are the accepted spellings of the postcode column,
// probed in order for the email-match cross-check.
var postcodeHeaderVariants = []string{
	"postcode", "Postcode", "postal_code", "Postal Code",
}

// ClientCode picks the client-code field out of a record, trying each
// accepted header spelling in order. Returns "" when absent.
func (r Record) ClientCode() string {
	for _, k := range clientCodeHeaderVariants {
		if v, ok := r[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (r Record) postcode() string {
	for _, k := range postcodeHeaderVariants {
		if v, ok := r[k]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Subject identifies the portal account a resolution runs for.
type Subject struct {
	AccountID  int64
	Email      string
	ClientCode string
	Postcode   string
}

// Provisional reports whether the subject's client code is still the
// auto-generated placeholder ("client_<accountID>..."), meaning no confirmed
// external identity exists yet. Recomputed by string comparison every time;
// never persisted.
func (s Subject) Provisional() bool {
	return s.ClientCode != "" && strings.HasPrefix(s.ClientCode, fmt.Sprintf("client_%d", s.AccountID))
}

// ProfileWriter persists the authoritative client code discovered in the
// external sheet back into the local profile.
type ProfileWriter interface {
	UpdateClientCode(ctx context.Context, accountID int64, clientCode string) error
}

type sheetShape int

const (
	shapeA sheetShape = iota // LTP: row 1 metadata, row 2 headers, data from row 3
	shapeB                   // Input: row 1 headers, data from row 2
)

// lookupStep is one attempt in the resolution sequence.
type lookupStep struct {
	shape sheetShape
	kind  IdentifierKind
}

// The two lookup orders, keyed by account state. New accounts are matched by
// email first (their stored code is a placeholder); confirmed accounts by
// code first (cheaper, the code came from the sheet).
var (
	provisionalOrder = []lookupStep{
		{shapeA, KindEmail},
		{shapeB, KindEmail},
		{shapeA, KindClientCode},
		{shapeB, KindClientCode},
	}
	confirmedOrder = []lookupStep{
		{shapeA, KindClientCode},
		{shapeB, KindClientCode},
		{shapeA, KindEmail},
		{shapeB, KindEmail},
	}
)

// Resolver maps a portal account to its row in the external spreadsheet.
type Resolver struct {
	reader        RangeReader
	profiles      ProfileWriter
	spreadsheetID string
	logger        logging.Logger
}

func NewResolver(reader RangeReader, profiles ProfileWriter, spreadsheetID string, logger logging.Logger) *Resolver {
	return &Resolver{
		reader:        reader,
		profiles:      profiles,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}
}

// Resolve runs the ordered lookup sequence for the subject and returns the
// first matching record, with the transient row number stripped. When
// syncClientCode is set and the matched row carries a client code, the code
// is written back to the profile if the account was provisional or the
// stored code differs. Returns common.ErrorNotFound when no attempt matches.
//
// Each attempt suppresses its own errors so one failing sheet never blocks
// trying the next. A postcode mismatch on a shape-B email match discards the
// match and ends the sequence; this mirrors the historical behavior and is
// deliberately not "fixed" to fall through.
func (r *Resolver) Resolve(ctx context.Context, sub Subject, syncClientCode bool) (Record, error) {

	provisional := sub.Provisional()
	order := confirmedOrder
	if provisional {
		order = provisionalOrder
	}

	var found Record
	for _, step := range order {
		identifier := sub.ClientCode
		if step.kind == KindEmail {
			identifier = sub.Email
		}
		if identifier == "" {
			continue
		}

		rec, err := r.lookup(ctx, step, identifier)
		if err != nil {
			r.logger.Warn(ctx, "sheet lookup attempt failed",
				"sheet", step.sheetName(), "kind", string(step.kind), "error", err.Error())
			continue
		}
		if rec == nil {
			continue
		}

		// Email matches against the Input sheet are cross-checked against
		// the profile postcode; a mismatch invalidates the match and stops
		// the sequence.
		if step.shape == shapeB && step.kind == KindEmail && sub.Postcode != "" {
			if pc := rec.postcode(); pc != "" && !postcodeEqual(pc, sub.Postcode) {
				r.logger.Info(ctx, "email match discarded on postcode mismatch", "account_id", sub.AccountID)
				return nil, common.ErrorNotFound
			}
		}

		found = rec
		break
	}

	if found == nil {
		return nil, common.ErrorNotFound
	}

	if syncClientCode {
		if err := r.syncClientCode(ctx, sub, provisional, found); err != nil {
			return nil, err
		}
	}

	delete(found, rowNumberKey)
	return found, nil
}

// syncClientCode writes the sheet's client code into the profile when it is
// authoritative: always for provisional accounts, otherwise only when the
// stored code differs. Re-running with an unchanged sheet is a no-op.
func (r *Resolver) syncClientCode(ctx context.Context, sub Subject, provisional bool, rec Record) error {
	code := rec.ClientCode()
	if code == "" {
		return nil
	}
	if !provisional && sub.ClientCode == code {
		return nil
	}
	if err := r.profiles.UpdateClientCode(ctx, sub.AccountID, code); err != nil {
		return fmt.Errorf("sync client code: %w", err)
	}
	r.logger.Info(ctx, "client code synced from sheet", "account_id", sub.AccountID, "client_code", code)
	return nil
}

// Probe runs a one-off lookup for an explicit identifier, outside any
// account context: LTP first, then Input. Client codes are tried both
// bare and '#'-prefixed. Returns the matched record and a description of
// the identifier that hit, or common.ErrorNotFound.
func (r *Resolver) Probe(ctx context.Context, kind IdentifierKind, identifier string) (Record, string, error) {

	variations := []string{identifier}
	if kind == KindClientCode {
		clean := strings.TrimSpace(strings.ReplaceAll(identifier, "#", ""))
		variations = []string{clean, "#" + clean}
	}

	for _, shape := range []sheetShape{shapeA, shapeB} {
		step := lookupStep{shape: shape, kind: kind}
		for _, v := range variations {
			rec, err := r.lookup(ctx, step, v)
			if err != nil {
				r.logger.Warn(ctx, "sheet probe attempt failed",
					"sheet", step.sheetName(), "kind", string(kind), "error", err.Error())
				continue
			}
			if rec != nil {
				delete(rec, rowNumberKey)
				return rec, fmt.Sprintf("%s: %s", kind, v), nil
			}
		}
	}

	return nil, "", common.ErrorNotFound
}

func (s lookupStep) sheetName() string {
	if s.shape == shapeA {
		return SheetLTP
	}
	return SheetInput
}

// lookup runs a single attempt: fetch the sheet, locate the identifier
// column, scan data rows for a match. A missing identifier column or an
// empty sheet is "no match" (nil, nil), not an error.
func (r *Resolver) lookup(ctx context.Context, step lookupStep, identifier string) (Record, error) {
	rows, err := r.reader.FetchRange(ctx, r.spreadsheetID, step.sheetName(), defaultRange)
	if err != nil {
		return nil, err
	}

	headerRow := 0
	if step.shape == shapeA {
		headerRow = 1
	}
	if len(rows) <= headerRow {
		return nil, nil
	}
	headers := rows[headerRow]
	if len(headers) == 0 {
		return nil, nil
	}

	col := identifierColumn(headers, step.kind, step.shape)
	if col < 0 {
		return nil, nil
	}

	search := NormalizeIdentifier(identifier, step.kind)
	rawSearch := strings.ToLower(strings.TrimSpace(identifier))

	for i, row := range rows[headerRow+1:] {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])

		if !cellMatches(cell, search, rawSearch, step.kind) {
			continue
		}

		rec := Record(MapRow(headers, row))
		// Sheet rows are 1-based; data starts one past the header row.
		rec[rowNumberKey] = fmt.Sprintf("%d", headerRow+2+i)
		return rec, nil
	}

	return nil, nil
}

// cellMatches implements the per-kind equality rules. Emails compare
// case-insensitively. Client codes match when the '#'-stripped
// case-insensitive forms are equal, or when the untouched case-insensitive
// forms are equal (covers codes the normalizer does not fully strip).
func cellMatches(cell, search, rawSearch string, kind IdentifierKind) bool {
	if kind == KindEmail {
		return strings.ToLower(cell) == search
	}
	return NormalizeIdentifier(cell, KindClientCode) == search ||
		strings.ToLower(cell) == rawSearch
}

// identifierColumn finds the column index of the identifier field,
// tolerating the header spellings seen in the wild. Shape A accepts loose
// variants (anything containing "email"; "client id"/"clientid"); shape B
// expects the canonical lowercase names.
func identifierColumn(headers []string, kind IdentifierKind, shape sheetShape) int {
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		switch kind {
		case KindClientCode:
			if name == "client_id" {
				return i
			}
			if shape == shapeA && (name == "client id" || name == "clientid") {
				return i
			}
		case KindEmail:
			if name == "email" {
				return i
			}
			if shape == shapeA && (name == "e-mail" || name == "e_mail" || name == "e mail" || strings.Contains(name, "email")) {
				return i
			}
		}
	}
	return -1
}

func postcodeEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
