package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/tasks-file-api/internal/config"
	"github.com/s1natex/tasks-file-api/internal/middleware"
	"github.com/s1natex/tasks-file-api/internal/tasks"
	"github.com/s1natex/tasks-file-api/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("TASKS_CONFIG"), "optional TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		newLogger("info", os.Stdout).Error("config_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel, os.Stdout)
	slog.SetDefault(logger) // for third-party packages that use slog

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		logger.Error("telemetry_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo, closeRepo, err := openRepository(ctx, cfg.Store)
	if err != nil {
		logger.Error("store_error", slog.String("driver", cfg.Store.Driver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("store_open", slog.String("driver", cfg.Store.Driver))

	h := tasks.NewHandler(repo, tasks.Options{
		ImportPath: cfg.Import.CSVPath,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      newRouter(h, cfg, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	go func() {
		logger.Info("server_listen", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", slog.String("error", err.Error()))
	}
	if err := closeRepo(); err != nil {
		logger.Error("store_close_error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("telemetry_shutdown_error", slog.String("error", err.Error()))
	}
}

// openRepository picks the task backend. The returned close func is always
// non-nil.
func openRepository(ctx context.Context, cfg config.StoreConfig) (tasks.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverSQLite:
		dsn, err := tasks.SQLiteFileDSN(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		repo, err := tasks.NewSQLiteRepo(dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, noop, err
		}
		return repo, repo.Close, nil
	default:
		repo, err := tasks.OpenFileRepo(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return repo, noop, nil
	}
}

// newRouter wires the health and metrics endpoints, task routes, and middleware stack
func newRouter(h *tasks.Handler, cfg config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, traces, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	if d := cfg.HTTP.HandlerTimeout.Duration(); d > 0 {
		r.Use(chimw.Timeout(d))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))

	// ---- Routes ----

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	tasks.RegisterRoutes(r, h)

	return r
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
