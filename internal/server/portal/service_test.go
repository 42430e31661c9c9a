package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

type memStateStore struct {
	entries map[string]StateEntry
}

func (m *memStateStore) Put(_ context.Context, state string, entry StateEntry) error {
	if m.entries == nil {
		m.entries = map[string]StateEntry{}
	}
	m.entries[state] = entry
	return nil
}

func (m *memStateStore) Take(_ context.Context, state string) (*StateEntry, error) {
	entry, ok := m.entries[state]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.entries, state)
	return &entry, nil
}

type memTokens struct {
	tokens map[int64]*oauthtokens.Token
}

func (m *memTokens) Get(_ context.Context, accountID int64) (*oauthtokens.Token, error) {
	if t, ok := m.tokens[accountID]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memTokens) Save(_ context.Context, accountID int64, token *oauthtokens.Token) error {
	if m.tokens == nil {
		m.tokens = map[int64]*oauthtokens.Token{}
	}
	m.tokens[accountID] = token
	return nil
}

func (m *memTokens) Delete(_ context.Context, accountID int64) error {
	delete(m.tokens, accountID)
	return nil
}

type memAdminTokens struct {
	token *oauthtokens.Token
}

func (m *memAdminTokens) Get(_ context.Context) (*oauthtokens.Token, error) {
	if m.token == nil {
		return nil, common.ErrorNotFound
	}
	return m.token, nil
}

func (m *memAdminTokens) Save(_ context.Context, token *oauthtokens.Token) error {
	m.token = token
	return nil
}

func (m *memAdminTokens) Delete(_ context.Context) error {
	m.token = nil
	return nil
}

type fakeSheetsAPI struct {
	sheets map[string][][]string
	md     *google.SpreadsheetMetadata
}

func (f *fakeSheetsAPI) FetchRange(_ context.Context, _, sheetName, _ string) ([][]string, error) {
	rows, ok := f.sheets[sheetName]
	if !ok {
		return nil, sheets.ErrSheetNotFound
	}
	return rows, nil
}

func (f *fakeSheetsAPI) Metadata(_ context.Context, _ string) (*google.SpreadsheetMetadata, error) {
	if f.md == nil {
		return nil, errors.New("no metadata")
	}
	return f.md, nil
}

type fakeDriveAPI struct {
	files    []google.File
	folderID string
	uploaded *google.File
}

func (f *fakeDriveAPI) GetFile(_ context.Context, fileID string) (*google.File, error) {
	for _, file := range f.files {
		if file.ID == fileID {
			return &file, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeDriveAPI) ListFiles(_ context.Context, _ string, _ int) ([]google.File, error) {
	return f.files, nil
}

func (f *fakeDriveAPI) EnsureFolder(_ context.Context, _ string) (string, error) {
	return f.folderID, nil
}

func (f *fakeDriveAPI) UploadFile(_ context.Context, folderID, name, _ string, _ io.Reader) (*google.File, error) {
	f.uploaded = &google.File{ID: "up-1", Name: name}
	return f.uploaded, nil
}

type fakeFactory struct {
	sheetsAPI *fakeSheetsAPI
	driveAPI  *fakeDriveAPI
}

func (f *fakeFactory) Sheets(oauthtokens.Store) SheetsAPI { return f.sheetsAPI }
func (f *fakeFactory) Drive(oauthtokens.Store) DriveAPI   { return f.driveAPI }

type fakeSubjects struct {
	account *accounts.Account
	profile *accounts.Profile
	err     error
}

func (f *fakeSubjects) Subject(_ context.Context, _ int64) (*accounts.Account, *accounts.Profile, error) {
	return f.account, f.profile, f.err
}

type fakeProfiles struct {
	writes []string
}

func (f *fakeProfiles) UpdateClientCode(_ context.Context, _ int64, clientCode string) error {
	f.writes = append(f.writes, clientCode)
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SpreadsheetID = "sid"
	return cfg
}

type serviceDeps struct {
	factory  *fakeFactory
	tokens   *memTokens
	admin    *memAdminTokens
	states   *memStateStore
	subjects *fakeSubjects
	profiles *fakeProfiles
	oauth    *google.OAuthConfig
}

func newTestService(t *testing.T, deps *serviceDeps) *Service {
	t.Helper()
	if deps.factory == nil {
		deps.factory = &fakeFactory{sheetsAPI: &fakeSheetsAPI{}, driveAPI: &fakeDriveAPI{}}
	}
	if deps.tokens == nil {
		deps.tokens = &memTokens{}
	}
	if deps.admin == nil {
		deps.admin = &memAdminTokens{}
	}
	if deps.states == nil {
		deps.states = &memStateStore{}
	}
	if deps.subjects == nil {
		deps.subjects = &fakeSubjects{
			account: &accounts.Account{ID: 7, Email: "a@x.com"},
			profile: &accounts.Profile{AccountID: 7, ClientCode: "client_7"},
		}
	}
	if deps.profiles == nil {
		deps.profiles = &fakeProfiles{}
	}
	if deps.oauth == nil {
		deps.oauth = google.NewStaticOAuthConfig("cid", "csecret", "http://cb", "")
	}
	return NewService(testConfig(), testLogger(), deps.oauth, deps.factory,
		deps.tokens, deps.admin, deps.states, deps.subjects, deps.profiles)
}

func TestInitiateOAuth_StoresStateAndBuildsURL(t *testing.T) {
	deps := &serviceDeps{}
	s := newTestService(t, deps)

	authURL, state, err := s.InitiateOAuth(context.Background(), 7, false)
	require.NoError(t, err)
	assert.Contains(t, authURL, "state="+state)
	assert.Equal(t, StateEntry{AccountID: 7}, deps.states.entries[state])
}

func TestInitiateOAuth_AdminStateMarked(t *testing.T) {
	deps := &serviceDeps{}
	s := newTestService(t, deps)

	_, state, err := s.InitiateOAuth(context.Background(), 7, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(state, "admin_"))
	assert.True(t, deps.states.entries[state].Admin)
}

func TestInitiateOAuth_Unconfigured(t *testing.T) {
	deps := &serviceDeps{oauth: google.NewStaticOAuthConfig("", "", "http://cb", "")}
	s := newTestService(t, deps)

	_, _, err := s.InitiateOAuth(context.Background(), 7, false)
	assert.Error(t, err)
}

func TestCompleteOAuth_SavesUserToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
	}))
	defer srv.Close()

	deps := &serviceDeps{oauth: google.NewStaticOAuthConfig("cid", "csecret", "http://cb", srv.URL)}
	s := newTestService(t, deps)

	_, state, err := s.InitiateOAuth(context.Background(), 7, false)
	require.NoError(t, err)

	require.NoError(t, s.CompleteOAuth(context.Background(), state, "the-code"))
	require.NotNil(t, deps.tokens.tokens[7])
	assert.Equal(t, "at", deps.tokens.tokens[7].AccessToken)

	// The state is single-use.
	err = s.CompleteOAuth(context.Background(), state, "the-code")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCompleteOAuth_AdminGoesToAdminStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"admin-at","expires_in":3600}`))
	}))
	defer srv.Close()

	deps := &serviceDeps{oauth: google.NewStaticOAuthConfig("cid", "csecret", "http://cb", srv.URL)}
	s := newTestService(t, deps)

	_, state, err := s.InitiateOAuth(context.Background(), 0, true)
	require.NoError(t, err)

	require.NoError(t, s.CompleteOAuth(context.Background(), state, "code"))
	require.NotNil(t, deps.admin.token)
	assert.Equal(t, "admin-at", deps.admin.token.AccessToken)
	assert.Empty(t, deps.tokens.tokens)
}

func TestCompleteOAuth_UnknownState(t *testing.T) {
	s := newTestService(t, &serviceDeps{})
	err := s.CompleteOAuth(context.Background(), "ghost", "code")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOAuthStatus(t *testing.T) {
	deps := &serviceDeps{tokens: &memTokens{tokens: map[int64]*oauthtokens.Token{
		7: {AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)},
	}}}
	s := newTestService(t, deps)

	connected, expired, err := s.OAuthStatus(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, connected)
	assert.False(t, expired)

	connected, expired, err = s.OAuthStatus(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, connected)
	assert.False(t, expired)
}

func TestDashboard_ResolvesAndSyncs(t *testing.T) {
	deps := &serviceDeps{factory: &fakeFactory{
		sheetsAPI: &fakeSheetsAPI{sheets: map[string][][]string{
			sheets.SheetInput: {
				{"email", "client_id"},
				{"a@x.com", "CID-9"},
			},
		}},
		driveAPI: &fakeDriveAPI{},
	}}
	s := newTestService(t, deps)

	rec, err := s.Dashboard(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Equal(t, "CID-9", rec["client_id"])
	assert.Equal(t, []string{"CID-9"}, deps.profiles.writes)
}

func TestDashboard_NotFound(t *testing.T) {
	s := newTestService(t, &serviceDeps{})
	_, err := s.Dashboard(context.Background(), 7, true)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTestClient_DefaultsToAccountEmail(t *testing.T) {
	deps := &serviceDeps{factory: &fakeFactory{
		sheetsAPI: &fakeSheetsAPI{sheets: map[string][][]string{
			sheets.SheetInput: {
				{"email", "client_id"},
				{"a@x.com", "CID-9"},
			},
		}},
		driveAPI: &fakeDriveAPI{},
	}}
	s := newTestService(t, deps)

	rec, matched, err := s.TestClient(context.Background(), 7, "", "")
	require.NoError(t, err)
	assert.Equal(t, "CID-9", rec["client_id"])
	assert.Equal(t, "email: a@x.com", matched)
}

func TestTestClient_ClientIDFallback(t *testing.T) {
	deps := &serviceDeps{factory: &fakeFactory{
		sheetsAPI: &fakeSheetsAPI{sheets: map[string][][]string{
			sheets.SheetInput: {
				{"email", "client_id"},
				{"other@x.com", "#A77"},
			},
		}},
		driveAPI: &fakeDriveAPI{},
	}}
	s := newTestService(t, deps)

	rec, _, err := s.TestClient(context.Background(), 7, "A77", "missing@x.com")
	require.NoError(t, err)
	assert.Equal(t, "#A77", rec["client_id"])
}

func TestDocuments_ListsForProfileClientCode(t *testing.T) {
	deps := &serviceDeps{
		subjects: &fakeSubjects{
			account: &accounts.Account{ID: 7, Email: "a@x.com"},
			profile: &accounts.Profile{AccountID: 7, ClientCode: "#A1"},
		},
		factory: &fakeFactory{
			sheetsAPI: &fakeSheetsAPI{sheets: map[string][][]string{
				sheets.SheetDocuments: {
					{"client_id", "name", "file_id"},
					{"#A1", "Budget Report", "f1"},
					{"#B2", "Other", ""},
				},
			}},
			driveAPI: &fakeDriveAPI{files: []google.File{{ID: "f1", Name: "budget.pdf"}}},
		},
	}
	s := newTestService(t, deps)

	docs, err := s.Documents(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Budget Report", docs[0].Name)
	require.NotNil(t, docs[0].DriveFile)
	assert.Equal(t, "budget.pdf", docs[0].DriveFile.Name)
}

func TestPublishAdminDocument(t *testing.T) {
	drive := &fakeDriveAPI{folderID: "folder-1"}
	deps := &serviceDeps{factory: &fakeFactory{sheetsAPI: &fakeSheetsAPI{}, driveAPI: drive}}
	s := newTestService(t, deps)

	file, err := s.PublishAdminDocument(context.Background(), "lease.pdf", "application/pdf",
		strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "lease.pdf", file.Name)
}

func TestTestSheets_BuildsDiagnostics(t *testing.T) {
	deps := &serviceDeps{factory: &fakeFactory{
		sheetsAPI: &fakeSheetsAPI{
			md: &google.SpreadsheetMetadata{
				Title: "Portfolio",
				Sheets: []google.SheetProperties{
					{ID: 0, Title: "LTP"},
					{ID: 3, Title: "VR"},
				},
			},
			sheets: map[string][][]string{
				"LTP": {
					{"client_id", "email"},
					{"#A1", "a@x.com"},
					{"#B2", "b@x.com"},
				},
				"VR": {
					{"unit", "header"},
					{"sq2", "property_size"},
				},
			},
		},
		driveAPI: &fakeDriveAPI{},
	}}
	s := newTestService(t, deps)

	report, err := s.TestSheets(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Portfolio", report.SpreadsheetTitle)
	assert.Equal(t, 2, report.TotalSheets)
	require.Len(t, report.Sheets, 2)
	assert.Equal(t, []string{"client_id", "email"}, report.Sheets[0].Headers)
	assert.Equal(t, []string{"#A1", "#B2"}, report.Sheets[0].ColumnASample)
	assert.Equal(t, map[string]string{"sq2": "property_size"}, report.UnitHeaderMap)
}

func TestTestDrive(t *testing.T) {
	drive := &fakeDriveAPI{files: []google.File{{ID: "f1"}, {ID: "f2"}}}
	deps := &serviceDeps{factory: &fakeFactory{sheetsAPI: &fakeSheetsAPI{}, driveAPI: drive}}
	s := newTestService(t, deps)

	files, err := s.TestDrive(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestChatbot_IrrelevantSkipsSheet(t *testing.T) {
	s := newTestService(t, &serviceDeps{})

	reply, relevant := s.Chatbot(context.Background(), 7, "tell me a joke")
	assert.False(t, relevant)
	assert.Contains(t, reply, "I apologize")
}

func TestChatbot_UsesResolvedRecord(t *testing.T) {
	deps := &serviceDeps{factory: &fakeFactory{
		sheetsAPI: &fakeSheetsAPI{sheets: map[string][][]string{
			sheets.SheetInput: {
				{"email", "client_id", "service_charge"},
				{"a@x.com", "CID-9", "£3,200"},
			},
		}},
		driveAPI: &fakeDriveAPI{},
	}}
	s := newTestService(t, deps)

	reply, relevant := s.Chatbot(context.Background(), 7, "how much is my service charge?")
	assert.True(t, relevant)
	assert.Contains(t, reply, "£3,200")
	// Chat resolution never writes the profile.
	assert.Empty(t, deps.profiles.writes)
}
