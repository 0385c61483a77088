// Package server initializes and runs the math tutor backend: database,
// migrations, services, the HTTP API, and the background cleanup job, with
// graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aimathteacher/backend/internal/engine"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/config"
	"github.com/aimathteacher/backend/internal/server/httpapi"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
	"github.com/aimathteacher/backend/internal/server/services"
	"github.com/aimathteacher/backend/internal/server/sessioncache"
)

type App struct {
	config  *config.Config
	logger  *logging.ZapLogger
	db      *sql.DB
	api     *httpapi.Server
	cleanup *services.CleanupService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger, err := logging.NewZapLogger(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	// the database may still be starting alongside us
	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	eng, err := engine.NewGemini(engine.GeminiConfig{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
	})
	if err != nil {
		return nil, fmt.Errorf("engine init error: %w", err)
	}

	cache := sessioncache.New()
	authSvc := services.NewAuthService(db, rm, cfg, logger)
	guard := services.NewGuard(db, rm, cache, logger)
	chatSvc := services.NewChatService(db, rm, cache, guard, eng, logger)
	cleanup := services.NewCleanupService(db, rm, cfg.CleanupInterval, cfg.CleanupMaxAge, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		api:     httpapi.NewServer(authSvc, chatSvc, logger),
		cleanup: cleanup,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.api.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.cleanup.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Sync()
}
