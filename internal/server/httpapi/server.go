// Package httpapi exposes the portal over HTTP: account endpoints, the
// Google OAuth flow, client data, documents, the chatbot and the connection
// diagnostics. Paths keep the trailing-slash form the frontend calls with;
// StripSlashes makes both spellings work.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/documents"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/portal"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

// AccountService is the account-facing surface the handlers need.
type AccountService interface {
	Signup(ctx context.Context, req *accounts.SignupRequest) (*accounts.Account, error)
	Login(ctx context.Context, login, password string) (*accounts.TokenPair, *accounts.Account, error)
	Refresh(ctx context.Context, refreshToken string) (*accounts.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Subject(ctx context.Context, accountID int64) (*accounts.Account, *accounts.Profile, error)
	UpdateProfile(ctx context.Context, accountID int64, update accounts.ProfileUpdate) (*accounts.Profile, error)
}

// PortalService is the sheet/drive-facing surface the handlers need.
type PortalService interface {
	InitiateOAuth(ctx context.Context, accountID int64, admin bool) (authURL string, state string, err error)
	CompleteOAuth(ctx context.Context, state, code string) error
	OAuthStatus(ctx context.Context, accountID int64) (connected bool, expired bool, err error)
	Dashboard(ctx context.Context, accountID int64, sync bool) (sheets.Record, error)
	Documents(ctx context.Context, accountID int64) ([]documents.Document, error)
	UploadSlot(ctx context.Context) (key string, uploadURL string, err error)
	PublishAdminDocument(ctx context.Context, name, mimeType string, content io.Reader) (*google.File, error)
	TestSheets(ctx context.Context, accountID int64) (*portal.SheetsDiagnostics, error)
	TestDrive(ctx context.Context, accountID int64) ([]google.File, error)
	TestClient(ctx context.Context, accountID int64, clientID, email string) (sheets.Record, string, error)
	Chatbot(ctx context.Context, accountID int64, message string) (reply string, relevant bool)
}

type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	accounts AccountService
	portal   PortalService
}

func NewServer(cfg *config.Config, logger logging.Logger, accountSvc AccountService, portalSvc PortalService) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.With("component", "httpapi"),
		accounts: accountSvc,
		portal:   portalSvc,
	}
}

// Handler builds the routed handler with CORS and auth wired in.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)

	var origins []string
	for _, p := range strings.Split(s.cfg.CORSOrigin, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/token/refresh", s.handleTokenRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/profile", s.withAuth(s.handleGetProfile))
		r.Put("/profile", s.withAuth(s.handleUpdateProfile))
	})

	r.Route("/api/sheets", func(r chi.Router) {
		// The callback arrives from Google's redirect, outside any session.
		r.Get("/oauth/callback", s.handleOAuthCallback)

		r.Get("/oauth/initiate", s.withAuth(s.handleOAuthInitiate))
		r.Get("/oauth/status", s.withAuth(s.handleOAuthStatus))
		r.Get("/dashboard", s.withAuth(s.handleDashboard))
		r.Get("/documents", s.withAuth(s.handleDocuments))
		r.Post("/documents/upload", s.withAuth(s.handleDocumentUpload))
		r.Post("/chatbot", s.withAuth(s.handleChatbot))
		r.Get("/test-sheets", s.withAuth(s.handleTestSheets))
		r.Get("/test-drive", s.withAuth(s.handleTestDrive))
		r.Get("/test-client", s.withAuth(s.handleTestClient))
		r.Get("/test-client/{clientID}", s.withAuth(s.handleTestClient))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	return r
}
