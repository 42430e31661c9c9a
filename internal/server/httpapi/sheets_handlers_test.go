package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/documents"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/portal"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

func TestOAuthInitiate(t *testing.T) {
	p := &fakePortal{authURL: "https://accounts.google.com/o/oauth2/v2/auth?x=1", state: "abc"}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/oauth/initiate/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["authorization_url"] != p.authURL || body["state"] != "abc" {
		t.Fatalf("body = %v", body)
	}
	if p.lastAdmin {
		t.Fatal("default initiate must not be admin")
	}
}

func TestOAuthInitiate_AdminFlag(t *testing.T) {
	p := &fakePortal{authURL: "u", state: "admin_abc"}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/oauth/initiate/?admin=true", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !p.lastAdmin {
		t.Fatal("admin=true not passed through")
	}
}

func callbackLocation(t *testing.T, h http.Handler, path string) *url.URL {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302, body %s", rr.Code, rr.Body.String())
	}
	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	return loc
}

func TestOAuthCallback_Redirects(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		completeErr error
		wantParam   string
		wantValue   string
	}{
		{"success", "/api/sheets/oauth/callback/?code=c&state=s", nil, "success", "connected"},
		{"provider error", "/api/sheets/oauth/callback/?error=access_denied", nil, "error", "oauth_error"},
		{"missing code", "/api/sheets/oauth/callback/?state=s", nil, "error", "no_code"},
		{"missing state", "/api/sheets/oauth/callback/?code=c", nil, "error", "no_state"},
		{"unknown state", "/api/sheets/oauth/callback/?code=c&state=s", common.ErrorNotFound, "error", "session_expired"},
		{"exchange failure", "/api/sheets/oauth/callback/?code=c&state=s", common.ErrorInternal, "error", "token_exchange_failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePortal{completeErr: tc.completeErr}
			h := newTestServer(&fakeAccounts{}, p).Handler()

			loc := callbackLocation(t, h, tc.path)
			if loc.Path != "/my-account" {
				t.Fatalf("redirect path = %s", loc.Path)
			}
			if got := loc.Query().Get(tc.wantParam); got != tc.wantValue {
				t.Fatalf("%s = %q, want %q (location %s)", tc.wantParam, got, tc.wantValue, loc)
			}
		})
	}
}

func TestOAuthCallback_PassesStateAndCode(t *testing.T) {
	p := &fakePortal{}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	callbackLocation(t, h, "/api/sheets/oauth/callback/?code=the-code&state=the-state")
	if p.lastState != "the-state" || p.lastCode != "the-code" {
		t.Fatalf("state/code = %q/%q", p.lastState, p.lastCode)
	}
}

func TestOAuthStatus(t *testing.T) {
	p := &fakePortal{connected: true, expired: true}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/oauth/status/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["is_connected"] != true || body["is_expired"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestDashboard_ReturnsRecord(t *testing.T) {
	p := &fakePortal{record: sheets.Record{"Client Name": "Alice"}}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/dashboard/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	data, ok := decodeBody(t, rr)["data"].(map[string]any)
	if !ok || data["Client Name"] != "Alice" {
		t.Fatalf("data = %v", data)
	}
	if !p.lastSync {
		t.Fatal("dashboard must run with client-code sync on")
	}
}

func TestDashboard_NotConnected(t *testing.T) {
	p := &fakePortal{dashboardErr: common.ErrNotConnected}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/dashboard/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "Google account not connected" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestDashboard_NotFoundIncludesIdentity(t *testing.T) {
	acct := &fakeAccounts{
		account: &accounts.Account{ID: 7, Email: "alice@example.com"},
		profile: &accounts.Profile{AccountID: 7, ClientCode: "client_7", Postcode: "SW18 1UZ"},
	}
	p := &fakePortal{dashboardErr: common.ErrorNotFound}
	h := newTestServer(acct, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/dashboard/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["client_id"] != "client_7" || body["email"] != "alice@example.com" || body["postcode"] != "SW18 1UZ" {
		t.Fatalf("body = %v", body)
	}
}

func TestDashboard_ScopeChanged(t *testing.T) {
	p := &fakePortal{dashboardErr: common.ErrScopeChanged}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/dashboard/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestDocuments(t *testing.T) {
	p := &fakePortal{docs: []documents.Document{{Name: "Lease.pdf", Type: "Lease"}}}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/documents/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	docs, ok := decodeBody(t, rr)["documents"].([]any)
	if !ok || len(docs) != 1 {
		t.Fatalf("documents = %v", docs)
	}
}

func TestDocumentUpload_PresignedSlot(t *testing.T) {
	p := &fakePortal{slotKey: "users/2026/8/28/abc", slotURL: "https://s3.test/put"}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/sheets/documents/upload/", bearerFor(t, 7), map[string]string{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["key"] != p.slotKey || body["upload_url"] != p.slotURL {
		t.Fatalf("body = %v", body)
	}
}

func TestDocumentUpload_MultipartGoesToDrive(t *testing.T) {
	p := &fakePortal{published: &google.File{ID: "f1", Name: "Lease.pdf"}}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "Lease.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4")); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sheets/documents/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	file, ok := body["file"].(map[string]any)
	if !ok || file["id"] != "f1" {
		t.Fatalf("file = %v", body["file"])
	}
}

func TestChatbot(t *testing.T) {
	p := &fakePortal{reply: "Your current service charge is £2,551.", relevant: true}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/sheets/chatbot/", bearerFor(t, 7), map[string]string{
		"message": "what is my service charge",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["is_relevant"] != true || body["message"] != p.reply {
		t.Fatalf("body = %v", body)
	}
	if p.lastMessage != "what is my service charge" {
		t.Fatalf("message passed = %q", p.lastMessage)
	}
}

func TestChatbot_EmptyMessage(t *testing.T) {
	h := newTestServer(&fakeAccounts{}, &fakePortal{}).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/sheets/chatbot/", bearerFor(t, 7), map[string]string{"message": "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "Message is required" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestTestSheets_Report(t *testing.T) {
	p := &fakePortal{diag: &portal.SheetsDiagnostics{
		SpreadsheetTitle: "Client Data",
		SpreadsheetID:    "sheet-id",
		TotalSheets:      2,
		Sheets: []portal.SheetDiagnostics{
			{Title: "LTP", SheetID: 1, Headers: []string{"Client ID"}},
			{Title: "Input", SheetID: 2, Headers: []string{"Email"}},
		},
	}}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-sheets/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["spreadsheet_title"] != "Client Data" || body["total_sheets"] != float64(2) {
		t.Fatalf("body = %v", body)
	}
}

func TestTestSheets_PermissionDenied(t *testing.T) {
	p := &fakePortal{diagErr: &google.APIError{StatusCode: http.StatusForbidden, Message: "The caller does not have permission"}}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-sheets/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "Permission denied" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestTestDrive_SampleCapped(t *testing.T) {
	files := make([]google.File, 8)
	for i := range files {
		files[i] = google.File{ID: "f", Name: "doc"}
	}
	p := &fakePortal{files: files}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-drive/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["files_count"] != float64(8) {
		t.Fatalf("files_count = %v", body["files_count"])
	}
	sample, ok := body["sample_files"].([]any)
	if !ok || len(sample) != 5 {
		t.Fatalf("sample_files = %v", body["sample_files"])
	}
}

func TestTestClient_PathParam(t *testing.T) {
	p := &fakePortal{record: sheets.Record{"Client ID": "#123"}, matched: "client code: #123"}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-client/123/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	if p.lastClientID != "123" {
		t.Fatalf("clientID passed = %q", p.lastClientID)
	}
	body := decodeBody(t, rr)
	if body["matched_identifier"] != "client code: #123" {
		t.Fatalf("body = %v", body)
	}
}

func TestTestClient_QueryParams(t *testing.T) {
	p := &fakePortal{record: sheets.Record{}, matched: "email: a@x.com"}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-client/?email=a@x.com", bearerFor(t, 7), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if p.lastEmail != "a@x.com" {
		t.Fatalf("email passed = %q", p.lastEmail)
	}
}

func TestTestClient_NotFound(t *testing.T) {
	p := &fakePortal{clientErr: common.ErrorNotFound}
	h := newTestServer(&fakeAccounts{}, p).Handler()

	rr := doJSON(t, h, http.MethodGet, "/api/sheets/test-client/999/", bearerFor(t, 7), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["tried_identifier"] != "999" {
		t.Fatalf("tried_identifier = %v", body["tried_identifier"])
	}
}
