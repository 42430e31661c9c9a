package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/server/google"
)

// Callback outcome codes the frontend's my-account page understands.
const (
	callbackErrOAuth          = "oauth_error"
	callbackErrNoCode         = "no_code"
	callbackErrNoState        = "no_state"
	callbackErrSessionExpired = "session_expired"
	callbackErrTokenExchange  = "token_exchange_failed"
)

func (s *Server) redirectToFrontend(w http.ResponseWriter, r *http.Request, query url.Values) {
	base := strings.TrimRight(s.cfg.FrontendURL, "/")
	http.Redirect(w, r, fmt.Sprintf("%s/my-account?%s", base, query.Encode()), http.StatusFound)
}

// writeGoogleError maps connection-level failures to responses and reports
// whether it handled the error.
func (s *Server) writeGoogleError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, common.ErrNotConnected):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   "Google account not connected",
			"message": "Please connect your Google account to access this data.",
		})
		return true
	case errors.Is(err, common.ErrScopeChanged):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   "Google access needs to be renewed",
			"message": "Please reconnect your Google account.",
		})
		return true
	}

	var apiErr *google.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   "Permission denied",
			"message": apiErr.Message,
		})
		return true
	}

	return false
}

func (s *Server) handleOAuthInitiate(w http.ResponseWriter, r *http.Request) {
	admin := r.URL.Query().Get("admin") == "true" || r.URL.Query().Get("admin") == "1"

	authURL, state, err := s.portal.InitiateOAuth(r.Context(), accountIDFromContext(r.Context()), admin)
	if err != nil {
		s.logger.Error(r.Context(), "oauth initiate failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Google OAuth is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": authURL,
		"state":             state,
	})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if oauthErr := q.Get("error"); oauthErr != "" {
		s.logger.Warn(r.Context(), "oauth consent denied", "error", oauthErr)
		s.redirectToFrontend(w, r, url.Values{"error": {callbackErrOAuth}})
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		s.redirectToFrontend(w, r, url.Values{"error": {callbackErrNoCode}})
		return
	}
	if state == "" {
		s.redirectToFrontend(w, r, url.Values{"error": {callbackErrNoState}})
		return
	}

	if err := s.portal.CompleteOAuth(r.Context(), state, code); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.redirectToFrontend(w, r, url.Values{"error": {callbackErrSessionExpired}})
			return
		}
		s.logger.Error(r.Context(), "oauth code exchange failed", "error", err)
		s.redirectToFrontend(w, r, url.Values{"error": {callbackErrTokenExchange}})
		return
	}

	s.redirectToFrontend(w, r, url.Values{"success": {"connected"}})
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	connected, expired, err := s.portal.OAuthStatus(r.Context(), accountIDFromContext(r.Context()))
	if err != nil {
		s.logger.Error(r.Context(), "oauth status failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"is_connected": connected,
		"is_expired":   expired,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())

	record, err := s.portal.Dashboard(r.Context(), accountID, true)
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		if errors.Is(err, common.ErrorNotFound) {
			body := map[string]any{
				"error":   "Data not found.",
				"message": "No spreadsheet row matched your account details.",
			}
			if account, profile, serr := s.accounts.Subject(r.Context(), accountID); serr == nil {
				body["client_id"] = profile.ClientCode
				body["email"] = account.Email
				body["postcode"] = profile.Postcode
			}
			writeJSON(w, http.StatusNotFound, body)
			return
		}
		s.logger.Error(r.Context(), "dashboard fetch failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": record})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.portal.Documents(r.Context(), accountIDFromContext(r.Context()))
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		s.logger.Error(r.Context(), "documents fetch failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDocumentUpload serves two upload paths. A multipart request pushes
// the file straight into the admin Drive folder; a JSON request returns a
// presigned object-storage slot for the client to upload to directly.
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.handleAdminDocumentUpload(w, r)
		return
	}

	key, uploadURL, err := s.portal.UploadSlot(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "presign failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":        key,
		"upload_url": uploadURL,
	})
}

func (s *Server) handleAdminDocumentUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	uploaded, err := s.portal.PublishAdminDocument(r.Context(), header.Filename, mimeType, file)
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		s.logger.Error(r.Context(), "drive upload failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"file":    uploaded,
	})
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Message is required",
		})
		return
	}

	reply, relevant := s.portal.Chatbot(r.Context(), accountIDFromContext(r.Context()), req.Message)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     reply,
		"is_relevant": relevant,
	})
}

func (s *Server) handleTestSheets(w http.ResponseWriter, r *http.Request) {
	report, err := s.portal.TestSheets(r.Context(), accountIDFromContext(r.Context()))
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		s.logger.Error(r.Context(), "sheets diagnostics failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Google Sheets connection failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "Google Sheets connection successful",
		"spreadsheet_title": report.SpreadsheetTitle,
		"spreadsheet_id":    report.SpreadsheetID,
		"total_sheets":      report.TotalSheets,
		"sheets":            report.Sheets,
		"vr_unit_mapping":   report.UnitHeaderMap,
	})
}

func (s *Server) handleTestDrive(w http.ResponseWriter, r *http.Request) {
	files, err := s.portal.TestDrive(r.Context(), accountIDFromContext(r.Context()))
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		s.logger.Error(r.Context(), "drive diagnostics failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Google Drive connection failed",
		})
		return
	}

	sample := files
	if len(sample) > 5 {
		sample = sample[:5]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Google Drive connection successful",
		"files_count":  len(files),
		"sample_files": sample,
	})
}

func (s *Server) handleTestClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		clientID = r.URL.Query().Get("client_id")
	}
	email := r.URL.Query().Get("email")

	record, matched, err := s.portal.TestClient(r.Context(), accountIDFromContext(r.Context()), clientID, email)
	if err != nil {
		if s.writeGoogleError(w, r, err) {
			return
		}
		if errors.Is(err, common.ErrorNotFound) {
			tried := clientID
			if tried == "" {
				tried = email
			}
			if tried == "" {
				tried = "account email"
			}
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success":          false,
				"error":            "Data not found",
				"tried_identifier": tried,
				"message":          "No row matched the given identifier.",
			})
			return
		}
		s.logger.Error(r.Context(), "client lookup failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"matched_identifier": matched,
		"data":               record,
	})
}
