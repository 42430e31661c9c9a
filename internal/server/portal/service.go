// Package portal orchestrates the per-account use cases behind the HTTP
// API: OAuth connection, dashboard resolution, document listing and
// uploads, connection diagnostics, and the chatbot.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/chatbot"
	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/documents"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

// adminStatePrefix marks OAuth states initiated for the shared admin
// account rather than a portal user.
const adminStatePrefix = "admin_"

// SheetsAPI is the slice of the Sheets client the portal needs.
type SheetsAPI interface {
	FetchRange(ctx context.Context, spreadsheetID, sheetName, rangeSpec string) ([][]string, error)
	Metadata(ctx context.Context, spreadsheetID string) (*google.SpreadsheetMetadata, error)
}

// DriveAPI is the slice of the Drive client the portal needs.
type DriveAPI interface {
	GetFile(ctx context.Context, fileID string) (*google.File, error)
	ListFiles(ctx context.Context, q string, pageSize int) ([]google.File, error)
	EnsureFolder(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, folderID, name, mimeType string, content io.Reader) (*google.File, error)
}

// ClientFactory builds API clients bound to a token store (a user's or the
// admin's).
type ClientFactory interface {
	Sheets(store oauthtokens.Store) SheetsAPI
	Drive(store oauthtokens.Store) DriveAPI
}

// googleFactory is the production ClientFactory over the google package.
type googleFactory struct {
	oauth  *google.OAuthConfig
	cache  *google.RangeCache
	logger logging.Logger
}

func NewGoogleFactory(oauth *google.OAuthConfig, cache *google.RangeCache, logger logging.Logger) ClientFactory {
	return &googleFactory{oauth: oauth, cache: cache, logger: logger}
}

func (f *googleFactory) Sheets(store oauthtokens.Store) SheetsAPI {
	return google.NewSheetsClient(google.NewCredentials(f.oauth, store, f.logger), f.cache)
}

func (f *googleFactory) Drive(store oauthtokens.Store) DriveAPI {
	return google.NewDriveClient(google.NewCredentials(f.oauth, store, f.logger))
}

// SubjectSource yields the account and profile a request runs for.
type SubjectSource interface {
	Subject(ctx context.Context, accountID int64) (*accounts.Account, *accounts.Profile, error)
}

type Service struct {
	cfg         *config.Config
	logger      logging.Logger
	oauth       *google.OAuthConfig
	clients     ClientFactory
	tokens      oauthtokens.Repository
	adminTokens oauthtokens.AdminRepository
	states      StateStore
	subjects    SubjectSource
	profiles    sheets.ProfileWriter
}

func NewService(cfg *config.Config, logger logging.Logger, oauth *google.OAuthConfig,
	clients ClientFactory, tokens oauthtokens.Repository, adminTokens oauthtokens.AdminRepository,
	states StateStore, subjects SubjectSource, profiles sheets.ProfileWriter) *Service {
	return &Service{
		cfg:         cfg,
		logger:      logger,
		oauth:       oauth,
		clients:     clients,
		tokens:      tokens,
		adminTokens: adminTokens,
		states:      states,
		subjects:    subjects,
		profiles:    profiles,
	}
}

func (s *Service) userStore(accountID int64) oauthtokens.Store {
	return oauthtokens.ForAccount(s.tokens, accountID)
}

// InitiateOAuth starts the consent flow and returns the authorization URL
// and the state value. Admin states carry a marker prefix so the callback
// routes the exchanged token to the admin store.
func (s *Service) InitiateOAuth(ctx context.Context, accountID int64, admin bool) (string, string, error) {

	if !s.oauth.Configured() {
		return "", "", fmt.Errorf("google oauth credentials not configured")
	}

	state := uuid.New().String()
	if admin {
		state = adminStatePrefix + state
	}

	if err := s.states.Put(ctx, state, StateEntry{AccountID: accountID, Admin: admin}); err != nil {
		return "", "", fmt.Errorf("error storing oauth state: %v", err)
	}

	return s.oauth.AuthorizationURL(state), state, nil
}

// CompleteOAuth validates the callback state, exchanges the code and saves
// the token into the matching store. common.ErrorNotFound means the state
// is unknown or expired.
func (s *Service) CompleteOAuth(ctx context.Context, state, code string) error {

	entry, err := s.states.Take(ctx, state)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error validating oauth state: %v", err)
	}

	token, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("error exchanging authorization code: %w", err)
	}

	if entry.Admin || strings.HasPrefix(state, adminStatePrefix) {
		if err := s.adminTokens.Save(ctx, token); err != nil {
			return fmt.Errorf("error saving admin oauth token: %v", err)
		}
		s.logger.Info(ctx, "admin google account connected")
		return nil
	}

	if err := s.tokens.Save(ctx, entry.AccountID, token); err != nil {
		return fmt.Errorf("error saving oauth token: %v", err)
	}
	s.logger.Info(ctx, "google account connected", "account_id", entry.AccountID)
	return nil
}

// OAuthStatus reports whether the account has a stored token and whether it
// has expired, without refreshing.
func (s *Service) OAuthStatus(ctx context.Context, accountID int64) (connected bool, expired bool, err error) {
	token, err := s.tokens.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, token.Expired(), nil
}

func (s *Service) resolver(accountID int64) *sheets.Resolver {
	reader := s.clients.Sheets(s.userStore(accountID))
	return sheets.NewResolver(reader, s.profiles, s.cfg.SpreadsheetID, s.logger)
}

func (s *Service) subject(ctx context.Context, accountID int64) (sheets.Subject, error) {
	account, profile, err := s.subjects.Subject(ctx, accountID)
	if err != nil {
		return sheets.Subject{}, err
	}
	return sheets.Subject{
		AccountID:  accountID,
		Email:      account.Email,
		ClientCode: profile.ClientCode,
		Postcode:   profile.Postcode,
	}, nil
}

// Dashboard resolves the account's spreadsheet row. With sync enabled, a
// confirmed client code found in the sheet is written back to the profile.
func (s *Service) Dashboard(ctx context.Context, accountID int64, sync bool) (sheets.Record, error) {
	sub, err := s.subject(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.resolver(accountID).Resolve(ctx, sub, sync)
}

// TestClient looks up an explicit identifier with the account's
// credentials. With neither identifier given, the account's own email is
// used. Returns the record and a description of what matched.
func (s *Service) TestClient(ctx context.Context, accountID int64, clientID, email string) (sheets.Record, string, error) {

	if clientID == "" && email == "" {
		account, _, err := s.subjects.Subject(ctx, accountID)
		if err != nil {
			return nil, "", err
		}
		email = account.Email
	}

	r := s.resolver(accountID)

	if email != "" {
		rec, matched, err := r.Probe(ctx, sheets.KindEmail, email)
		if err == nil {
			return rec, matched, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, "", err
		}
	}

	if clientID != "" {
		return r.Probe(ctx, sheets.KindClientCode, clientID)
	}

	return nil, "", common.ErrorNotFound
}

// Documents lists the account's documents: Documents-sheet rows plus Drive
// metadata for rows that reference a file.
func (s *Service) Documents(ctx context.Context, accountID int64) ([]documents.Document, error) {

	_, profile, err := s.subjects.Subject(ctx, accountID)
	if err != nil {
		return nil, err
	}

	store := s.userStore(accountID)
	lister := sheets.NewLister(s.clients.Sheets(store), s.cfg.SpreadsheetID)
	svc := documents.NewService(lister, s.clients.Drive(store), s.cfg, s.logger)

	return svc.ListForClient(ctx, profile.ClientCode)
}

// UploadSlot issues a presigned object-storage PUT for a client upload.
func (s *Service) UploadSlot(ctx context.Context) (key string, uploadURL string, err error) {
	svc := documents.NewService(nil, nil, s.cfg, s.logger)
	return svc.GetPresignedPutUrl(ctx)
}

// PublishAdminDocument uploads a staff document into the admin Drive folder.
func (s *Service) PublishAdminDocument(ctx context.Context, name, mimeType string, content io.Reader) (*google.File, error) {
	drive := s.clients.Drive(s.adminTokens)
	return documents.PublishToAdminDrive(ctx, drive, name, mimeType, content)
}

// SheetDiagnostics describes one sheet (tab) in the connection test.
type SheetDiagnostics struct {
	Title         string   `json:"title"`
	SheetID       int64    `json:"sheet_id"`
	Headers       []string `json:"headers"`
	ColumnASample []string `json:"column_a_sample,omitempty"`
}

// SheetsDiagnostics is the test-sheets connection report.
type SheetsDiagnostics struct {
	SpreadsheetTitle string             `json:"spreadsheet_title"`
	SpreadsheetID    string             `json:"spreadsheet_id"`
	TotalSheets      int                `json:"total_sheets"`
	Sheets           []SheetDiagnostics `json:"sheets"`
	UnitHeaderMap    map[string]string  `json:"vr_unit_mapping,omitempty"`
}

// TestSheets verifies the account's spreadsheet access: metadata, first-row
// headers per sheet, a sample of LTP's first column, and the VR unit map.
// Per-sheet read failures degrade to empty headers.
func (s *Service) TestSheets(ctx context.Context, accountID int64) (*SheetsDiagnostics, error) {

	api := s.clients.Sheets(s.userStore(accountID))

	md, err := api.Metadata(ctx, s.cfg.SpreadsheetID)
	if err != nil {
		return nil, err
	}

	report := &SheetsDiagnostics{
		SpreadsheetTitle: md.Title,
		SpreadsheetID:    s.cfg.SpreadsheetID,
		TotalSheets:      len(md.Sheets),
	}

	for _, props := range md.Sheets {
		diag := SheetDiagnostics{Title: props.Title, SheetID: props.ID, Headers: []string{}}

		rows, err := api.FetchRange(ctx, s.cfg.SpreadsheetID, props.Title, "A1:Z1")
		if err != nil {
			s.logger.Warn(ctx, "header probe failed", "sheet", props.Title, "error", err)
		} else if len(rows) > 0 {
			headers := rows[0]
			if len(headers) > 10 {
				headers = headers[:10]
			}
			diag.Headers = headers
		}

		if strings.EqualFold(props.Title, sheets.SheetLTP) {
			if sample, err := api.FetchRange(ctx, s.cfg.SpreadsheetID, props.Title, "A1:A10"); err == nil && len(sample) > 1 {
				for _, row := range sample[1:] {
					if len(row) > 0 {
						diag.ColumnASample = append(diag.ColumnASample, strings.TrimSpace(row[0]))
					} else {
						diag.ColumnASample = append(diag.ColumnASample, "")
					}
					if len(diag.ColumnASample) == 5 {
						break
					}
				}
			}
		}

		report.Sheets = append(report.Sheets, diag)
	}

	lister := sheets.NewLister(api, s.cfg.SpreadsheetID)
	if mapping, err := lister.UnitHeaderMap(ctx); err == nil && len(mapping) > 0 {
		report.UnitHeaderMap = mapping
	}

	return report, nil
}

// TestDrive verifies the account's Drive access by listing a handful of
// visible files.
func (s *Service) TestDrive(ctx context.Context, accountID int64) ([]google.File, error) {
	drive := s.clients.Drive(s.userStore(accountID))
	return drive.ListFiles(ctx, "", 10)
}

// Chatbot answers a client message. Irrelevant messages get the denial
// reply without touching the sheet; relevant ones interpolate the resolved
// record when one is available (resolution failures fall back silently,
// matching the dashboard-less chat experience).
func (s *Service) Chatbot(ctx context.Context, accountID int64, message string) (reply string, relevant bool) {

	if !chatbot.IsRelevant(message) {
		return chatbot.DenialMessage, false
	}

	var record sheets.Record
	if rec, err := s.Dashboard(ctx, accountID, false); err == nil {
		record = rec
	}

	return chatbot.Respond(message, record), true
}
