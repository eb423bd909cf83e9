// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/spendscope/internal/api"
	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/importer"
	"github.com/starford/spendscope/internal/mcpserver"
	"github.com/starford/spendscope/internal/monthly"
	"github.com/starford/spendscope/internal/parser"
	"github.com/starford/spendscope/internal/sse"
	"github.com/starford/spendscope/internal/storage"
	"github.com/starford/spendscope/internal/store"
)

// runtime holds the components shared by every entry point.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	loc    *time.Location
	db     *store.DB
	inbox  *storage.FS
	svc    *dashservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// start initialises logging, the database, the inbox and the dashboard
// service. The caller must close rt.db.
func (app *application) start() (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("import_dir", cfg.Import.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("analytics", cfg.Analytics.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Dashboard.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	// Ensure inbox directory exists.
	if err := os.MkdirAll(cfg.Import.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create import dir: %w", err)
	}
	inbox, err := storage.NewFS(cfg.Import.Dir)
	if err != nil {
		return nil, fmt.Errorf("init inbox: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	// Year balances come from the remote analytics backend when configured.
	var src monthly.Source
	if cfg.Analytics.Enabled() {
		src = monthly.NewHTTPSource(cfg.Analytics.BaseURL, cfg.Analytics.Token, cfg.Analytics.Timeout, cfg.Analytics.RPS)
	}

	svc := dashservice.NewService(db, src, logger, dashservice.Options{
		ExpenseRootName:  cfg.Dashboard.ExpenseRootName,
		EmployeeRootName: cfg.Dashboard.EmployeeRootName,
		Dark:             cfg.Dashboard.Dark,
		CacheTTL:         cfg.Dashboard.CacheTTL,
		Location:         loc,
		FetchLimit:       cfg.Analytics.Concurrency,
	})

	return &runtime{cfg: cfg, logger: logger, loc: loc, db: db, inbox: inbox, svc: svc}, nil
}

// newImporter builds the inbox importer. Every applied change drops cached
// aggregates before cb sees it.
func (rt *runtime) newImporter(cb importer.EventCallback) *importer.Importer {
	return importer.New(rt.db, rt.inbox, rt.logger,
		importer.WithRejectInvalid(rt.cfg.Import.RejectInvalid),
		importer.WithCallback(func(ev importer.Event) {
			rt.svc.Invalidate()
			if cb != nil {
				cb(ev)
			}
		}),
	)
}

// changeFor maps an importer event to the SSE notification sent for it.
func changeFor(ev importer.Event) sse.Change {
	c := sse.Change{Path: ev.Path, Rows: ev.Rows}
	switch {
	case ev.Op == importer.OpRejected:
		c.Type = sse.TypeImportRejected
	case ev.Op == importer.OpRemoved:
		c.Type = sse.TypeTransactionsRemoved
	case ev.Kind == parser.KindEmployees:
		c.Type = sse.TypeEmployeesImported
	default:
		c.Type = sse.TypeTransactionsImported
	}
	return c
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg, logger := rt.cfg, rt.logger

	// SSE broker.
	broker := sse.NewBroker(cfg.SSE.BalanceThrottle, cfg.SSE.Heartbeat)
	defer broker.Close()

	imp := rt.newImporter(func(ev importer.Event) {
		broker.PublishChange(changeFor(ev))
	})

	// Run initial sync.
	if sum, err := imp.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.Int("imported", sum.Imported),
			slog.Int("skipped", sum.Skipped),
			slog.Int("failed", sum.Failed))
	}

	apiRouter := api.NewRouter(api.Deps{
		Service:  rt.svc,
		Importer: imp,
		Inbox:    rt.inbox,
		Notify:   broker.PublishChange,
		Events:   broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher; applied changes reach SSE through the importer callback.
	if cfg.Import.Watch {
		g.Go(func() error {
			if err := imp.Watch(gCtx, rt.inbox.Root()); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start scheduled rescans.
	g.Go(func() error {
		return imp.RunSchedule(gCtx, cfg.Import.RescanSchedule, rt.loc)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never end on their own; closing the broker releases them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher and the scheduler
// stop together with the HTTP server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := app.start()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	imp := rt.newImporter(nil)
	if _, err := imp.Sync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, imp, rt.inbox).ServeStdio()
}

// ImportFiles copies each file into the inbox and imports it. Unchanged
// files are reported and skipped.
func ImportFiles(ctx context.Context, paths []string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	imp := rt.newImporter(nil)
	var errs []error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", p, err))
			continue
		}
		name := filepath.Base(p)
		if err := rt.inbox.Write(name, data); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", p, err))
			continue
		}
		ev, err := imp.ImportFile(ctx, name)
		switch {
		case errors.Is(err, apperr.ErrAlreadyImported):
			rt.logger.Info("import unchanged", slog.String("path", name))
		case err != nil:
			errs = append(errs, err)
		default:
			rt.logger.Info("import done",
				slog.String("path", ev.Path),
				slog.String("kind", ev.Kind),
				slog.Int("rows", ev.Rows))
		}
	}
	return errors.Join(errs...)
}
