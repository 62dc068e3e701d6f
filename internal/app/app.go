// Package app initializes and runs the sync daemon: storage, vault, the
// provider registry, the calendar client, the cron tick and the HTTP API,
// with graceful shutdown on OS signals.
package app

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

	"github.com/robfig/cron/v3"

	"github.com/msavelyev/calhub/internal/calendar"
	"github.com/msavelyev/calhub/internal/config"
	"github.com/msavelyev/calhub/internal/googleauth"
	"github.com/msavelyev/calhub/internal/httpapi"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/provider"
	"github.com/msavelyev/calhub/internal/repositories/repomanager"
	"github.com/msavelyev/calhub/internal/syncer"
	"github.com/msavelyev/calhub/internal/vault"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	rm           repomanager.RepositoryManager
	orchestrator *syncer.Orchestrator
	httpServer   *http.Server
	cron         *cron.Cron
}

// NewApp wires the application. Provider adapters are passed in by the
// binary, so deployments choose which sources they scrape.
func NewApp(ctx context.Context, cfg *config.Config, adapters ...provider.Adapter) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	loc, err := time.LoadLocation(cfg.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading reference timezone: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cal, err := calendar.NewGoogleClient(ctx, cfg.GoogleCredentialsFile, loc)
	if err != nil {
		return nil, fmt.Errorf("calendar init error: %w", err)
	}

	conn := rm.Conn()
	vaultSvc := vault.NewService(logger, rm.VaultData(conn), rm.Sources(conn), vault.NewManager())

	registry := provider.NewRegistry(adapters...)
	local := syncer.NewLocal(logger, rm, loc)
	remote := syncer.NewRemote(logger, rm, cal)
	orchestrator := syncer.NewOrchestrator(logger, rm, registry, vaultSvc, local, remote, cfg.MinResyncInterval)

	flow := googleauth.NewFlow(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	authSvc := googleauth.NewService(logger, flow, cal, rm.Users(conn), rm.Bindings(conn), cfg.AllowedEmails)

	api := httpapi.NewServer(logger, vaultSvc, orchestrator, authSvc, rm.Users(conn), cfg.SecretKey, cfg.TokenValidityDuration)

	return &App{
		config:       cfg,
		logger:       logger,
		rm:           rm,
		orchestrator: orchestrator,
		httpServer:   &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()},
		cron:         cron.New(),
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

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.HTTPAddr, "cron", app.config.CronSpec)

	app.initSignalHandler(cancelFunc)

	if _, err := app.cron.AddFunc(app.config.CronSpec, func() {
		app.orchestrator.RunTick(ctx)
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", app.config.CronSpec, err)
	}
	app.cron.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()
	app.logger.Info(ctx, "shutting down")

	// Let a running tick finish before the DB goes away.
	<-app.cron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown failed", "error", err)
	}

	wg.Wait()

	if err := app.rm.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	return nil
}
