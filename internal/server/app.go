// Package server initializes and runs the bot server: it opens storage,
// wires the conversation engine behind the callback endpoint, mounts the
// optional management API, starts the background jobs and handles
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dkravets/keychat/internal/admin"
	"github.com/dkravets/keychat/internal/bot"
	"github.com/dkravets/keychat/internal/config"
	"github.com/dkravets/keychat/internal/cryptox"
	"github.com/dkravets/keychat/internal/jobs"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/repositories"
	"github.com/dkravets/keychat/internal/vault"
	"github.com/dkravets/keychat/internal/wecom"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    *repositories.Repositories
	engine   *bot.Engine
	handler  *wecom.Handler
	client   *wecom.Client
	admin    *admin.Handler
	reminder *jobs.Reminder
	backup   *jobs.Backup
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSON(os.Stdout)

	repos, err := repositories.Init(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	contentCipher := cryptox.NewCipher()
	vaultService := vault.NewService(repos.Secrets, repos.Sessions, contentCipher, cfg.EncryptKey)
	engine := bot.NewEngine(vaultService, logger)

	transportCipher, err := wecom.NewCipher(cfg.WeComAESKey, cfg.WeComCorpID)
	if err != nil {
		return nil, fmt.Errorf("callback cipher init error: %w", err)
	}

	client := wecom.NewClient(wecom.ClientConfig{
		CorpID:     cfg.WeComCorpID,
		CorpSecret: cfg.WeComCorpSecret,
		AgentID:    cfg.WeComAgentID,
	}, wecom.NewTokenCache(), logger)

	app := &App{
		config:  cfg,
		logger:  logger,
		repos:   repos,
		engine:  engine,
		handler: wecom.NewHandler(cfg.WeComToken, transportCipher, engine, logger),
		client:  client,
	}

	if cfg.AdminEnabled() {
		app.admin = admin.NewHandler(cfg.AdminUser, cfg.AdminPasswordHash, cfg.AdminJWTSecret,
			cfg.AdminTokenValidity, vaultService, logger)
	}

	if cfg.ReminderUser != "" && cfg.ReminderInterval > 0 {
		app.reminder = jobs.NewReminder(engine, client, cfg.ReminderUser, cfg.ReminderInterval, logger)
	}

	if cfg.BackupInterval > 0 && cfg.S3Bucket != "" {
		app.backup = jobs.NewBackup(vaultService, contentCipher, cfg.EncryptKey, jobs.BackupConfig{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Interval:     cfg.BackupInterval,
		}, logger)
	}

	return app, nil
}

func (app *App) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	app.handler.Register(r)
	if app.admin != nil {
		app.admin.Register(r)
	}
	return r
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// SyncMenu pushes the application menu definition to the platform. Menu
// state lives on the platform side, so one push per start keeps it fresh.
func (app *App) SyncMenu(ctx context.Context) {
	if err := app.client.CreateMenu(ctx, wecom.DefaultMenu()); err != nil {
		app.logger.Warn(ctx, "menu sync failed", "error", err)
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	if app.config.WeComCorpSecret != "" {
		app.SyncMenu(ctx)
	}
	if app.reminder != nil {
		app.reminder.Start(ctx)
	}
	if app.backup != nil {
		app.backup.Start(ctx)
	}

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}

	if app.reminder != nil {
		app.reminder.Stop()
	}
	if app.backup != nil {
		app.backup.Stop()
	}

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	return nil
}
