package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/minelink/internal/link/http"
	"github.com/aussiebroadwan/minelink/internal/link/notify"
	"github.com/aussiebroadwan/minelink/internal/link/provider"
	"github.com/aussiebroadwan/minelink/internal/link/registry"
	"github.com/aussiebroadwan/minelink/internal/link/service"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/internal/link/store/drivers/postgres"
	"github.com/aussiebroadwan/minelink/internal/link/store/drivers/sqlite"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the link service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	provider provider.Provider
	registry *registry.Registry
	notifier notify.Notifier

	// Services
	linkService *service.LinkService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "link-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("link service starting",
		"port", app.cfg.Port,
		"callback", app.cfg.RedirectURI(),
		"database", app.db.Driver(),
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down link service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("link service stopped")
	return nil
}

// initDatabase initializes the configured binding store and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(context.Background(), app.cfg.DatabaseURL, postgres.Options{})
	default:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", db.Driver())
	return nil
}

// initServices initializes the provider client and business logic services
func (app *Application) initServices() error {
	app.provider = provider.NewGeneric(provider.Config{
		AuthorizeURL: app.cfg.AuthorizeURL,
		TokenURL:     app.cfg.TokenURL,
		UserInfoURL:  app.cfg.UserInfoURL,
		ClientID:     app.cfg.ClientID,
		ClientSecret: app.cfg.ClientSecret,
		RedirectURI:  app.cfg.RedirectURI(),
		Scope:        app.cfg.Scope,
		Timeout:      app.cfg.ProviderTimeout,
	})

	app.registry = registry.New(app.cfg.PendingTTL)

	if app.cfg.NotifyURL != "" {
		app.notifier = notify.NewWebhookNotifier(app.cfg.NotifyURL, app.logger)
	} else {
		app.notifier = &notify.LogNotifier{Logger: app.logger}
	}

	custom, err := app.cfg.CustomFields()
	if err != nil {
		return err
	}

	app.linkService = &service.LinkService{
		Store:    app.db,
		Provider: app.provider,
		Registry: app.registry,
		Notifier: app.notifier,
		Fields: service.FieldConfig{
			IDField:       app.cfg.FieldID,
			UsernameField: app.cfg.FieldUsername,
			EmailField:    app.cfg.FieldEmail,
			Custom:        custom,
		},
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		[]byte(app.cfg.APISecret),
		app.cfg.CallbackPath,
		BuildVersion,
		app.cfg.PendingTTL,
		app.db,
		app.logger,
	)

	router.LinkService = app.linkService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
