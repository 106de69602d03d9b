// Package app provides the main application struct for centralized dependency
// management and lifecycle control of the bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"imagebot/config"
	"imagebot/internal/bot"
	"imagebot/internal/ledger"
	"imagebot/internal/provider/openai"
	"imagebot/internal/server"
	"imagebot/internal/state"
	"imagebot/internal/storage"
	"imagebot/internal/telegram"
)

// App represents the application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config *config.Config
	ledger *ledger.Result
	states state.Store
	poller *telegram.Poller
	server *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &App{config: cfg}

	ledgerResult, err := ledger.Open(ctx, ledgerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open usage ledger: %w", err)
	}
	app.ledger = ledgerResult

	states, err := newStateStore(cfg)
	if err != nil {
		closeErr := ledgerResult.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to create state store: %w (also: ledger close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	app.states = states

	provider := openai.New(cfg.OpenAI.APIKey)
	messenger := telegram.New(cfg.Telegram.Token)

	reporter := bot.NewReporter(messenger, cfg.Bot.OperatorChatID)
	controller := bot.NewController(bot.Config{
		MinRequestInterval: cfg.Bot.MinRequestInterval,
		MaxRequestsPerDay:  cfg.Bot.MaxRequestsPerDay,
		DefaultSize:        cfg.Bot.ImageSize,
		OperatorChatID:     cfg.Bot.OperatorChatID,
		Location:           cfg.Location(),
	}, ledgerResult.Ledger, provider, messenger, reporter)

	conversation := bot.NewConversation(controller, states, messenger)
	app.poller = telegram.NewPoller(messenger, conversation)

	app.server = server.New(ledgerResult.Ledger, &server.Config{
		AdminKey:        cfg.Server.AdminKey,
		MetricsEnabled:  cfg.Server.MetricsEnabled,
		MetricsEndpoint: cfg.Server.MetricsEndpoint,
	})

	app.logStartupInfo()

	return app, nil
}

// Run starts the HTTP server and the update poller and blocks until ctx is
// cancelled or either loop fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + a.config.Server.Port
		slog.Info("starting http server", "address", addr)
		err := a.server.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("http server failed: %w", err)
			return
		}
		serverErr <- nil
	}()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- a.poller.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		// Stop the poller and wait for it before returning
		cancel()
		<-pollErr
		return err
	case err := <-pollErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout.
// 2. Conversation state store close.
// 3. Usage ledger close (releases the durable store).
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step, aggregates failures, and returns a joined
// error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.states != nil {
		if err := a.states.Close(); err != nil {
			slog.Error("state store close error", "error", err)
			errs = append(errs, fmt.Errorf("state store close: %w", err))
		}
	}

	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			slog.Error("ledger close error", "error", err)
			errs = append(errs, fmt.Errorf("ledger close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("admission configured",
		"min_request_interval", cfg.Bot.MinRequestInterval,
		"max_requests_per_day", cfg.Bot.MaxRequestsPerDay,
		"image_size", cfg.Bot.ImageSize,
		"timezone", cfg.Location().String(),
	)

	slog.Info("usage ledger loaded",
		"backend", cfg.Ledger.Backend,
		"records", a.ledger.Ledger.Len(),
	)

	if cfg.Server.MetricsEnabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Server.MetricsEndpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Server.AdminKey == "" {
		slog.Warn("ADMIN_KEY not set - admin endpoints are unauthenticated")
	}
}

// ledgerConfig maps the application configuration to the ledger factory.
func ledgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{
		Backend: cfg.Ledger.Backend,
		CSVPath: cfg.Ledger.CSVPath,
		Storage: storage.Config{
			SQLite: storage.SQLiteConfig{
				Path: cfg.Ledger.SQLitePath,
			},
			PostgreSQL: storage.PostgreSQLConfig{
				URL:      cfg.Ledger.PostgreSQLURL,
				MaxConns: cfg.Ledger.PostgreSQLMaxConns,
			},
			MongoDB: storage.MongoDBConfig{
				URL:      cfg.Ledger.MongoDBURL,
				Database: cfg.Ledger.MongoDBDatabase,
			},
		},
	}
}

// newStateStore creates the configured conversation state backend.
func newStateStore(cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case "", "local":
		return state.NewLocalStore(), nil
	case "redis":
		return state.NewRedisStore(state.RedisConfig{URL: cfg.State.RedisURL})
	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.State.Backend)
	}
}
