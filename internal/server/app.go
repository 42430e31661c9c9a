// Package server assembles and runs the portal backend: database and redis
// connections, the domain services, the Google client plumbing and the HTTP
// endpoint, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scukconnect/clientportal/internal/logging"
	"github.com/scukconnect/clientportal/internal/server/accounts"
	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/httpapi"
	"github.com/scukconnect/clientportal/internal/server/portal"
	"github.com/scukconnect/clientportal/internal/server/shared/db"
)

// oauthStateTTL bounds how long a started consent flow stays redeemable.
const oauthStateTTL = 10 * time.Minute

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	repos      db.RepositoryManager
	rdb        *redis.Client
	httpServer *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	rm, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	accountService := accounts.NewService(rm.Accounts(), rm.Profiles(), rm.Sessions(), cfg)

	oauth := google.NewOAuthConfig(cfg)

	var rdb *redis.Client
	var cache *google.RangeCache
	var states portal.StateStore
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if cfg.SheetCacheTTL > 0 {
			cache = google.NewRangeCache(rdb, cfg.SheetCacheTTL, logger)
		}
		states = portal.NewRedisStateStore(rdb, oauthStateTTL)
	} else {
		states = portal.NewMemoryStateStore(oauthStateTTL)
	}

	clients := portal.NewGoogleFactory(oauth, cache, logger)
	portalService := portal.NewService(cfg, logger, oauth, clients,
		rm.OAuthTokens(), rm.AdminOAuthTokens(), states, accountService, rm.Profiles())

	api := httpapi.NewServer(cfg, logger, accountService, portalService)

	return &App{
		config: cfg,
		logger: logger,
		repos:  rm,
		rdb:    rdb,
		httpServer: &http.Server{
			Addr:    cfg.EndpointAddrHTTP,
			Handler: api.Handler(),
		},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if err := app.repos.Conn().Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}

	wg.Wait()

	app.logger.Info(ctx, "server stopped")
}
