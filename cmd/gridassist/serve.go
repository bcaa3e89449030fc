package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/gridassist/internal/api"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/identity"
	"github.com/ashureev/gridassist/internal/logging"
	"github.com/ashureev/gridassist/internal/middleware"
	"github.com/ashureev/gridassist/internal/registry"
	"github.com/ashureev/gridassist/internal/session"
	"github.com/ashureev/gridassist/internal/store"
	"github.com/ashureev/gridassist/internal/stream"
	"github.com/ashureev/gridassist/internal/transcript"
	"github.com/ashureev/gridassist/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides GRIDASSIST_PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger := logging.Setup(os.Stdout, logging.FormatJSON, cfg.SlogLevel())
	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "grid_transport", cfg.Grid.Transport)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	grid, err := newGridClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize grid service client: %w", err)
	}
	defer func() {
		if closeErr := grid.Close(); closeErr != nil {
			logger.Warn("Failed to close grid service client", "error", closeErr)
		}
	}()

	transcripts, err := transcript.New(transcript.Config{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize transcript logger: %w", err)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			logger.Warn("Failed to close transcript logger", "error", closeErr)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg := registry.New(repo, grid, cfg.SessionTTL,
		registry.WithMetrics(session.NewMetrics(promReg)),
		registry.WithTranscripts(transcripts),
		registry.WithLogger(logger),
	)
	if err := reg.Recover(ctx); err != nil {
		return fmt.Errorf("recover sessions: %w", err)
	}

	conns := stream.NewConnManager()
	reg.OnEnd(conns.CloseKey)

	r := newRouter(cfg.FrontendURL, cfg.IsDevelopment(), reg, repo, grid, conns)
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: chat calls and WebSocket streams outlive any fixed bound.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return reg.RunReaper(gctx, cfg.ReapInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if err := reg.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("end sessions: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

// newRouter mounts the API, health and WebSocket routes. Callers add
// /metrics and the SPA catch-all.
func newRouter(frontendURL string, isDev bool, reg *registry.Registry, repo store.Repository, grid gridservice.Service, conns *stream.ConnManager) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(frontendURL, isDev)))
	r.Use(identity.Middleware(isDev))

	api.NewHealthHandler(repo, grid).RegisterHealth(r)
	api.NewSessionHandler(api.NewHandler(reg, grid)).RegisterRoutes(r)
	r.Get("/ws/session", stream.NewHandler(reg, conns, frontendURL, isDev).ServeHTTP)

	return r
}

// requestLogger logs each request through slog, skipping health checks and metrics scrapes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

func allowedOrigins(frontendURL string, isDev bool) []string {
	if frontendURL == "" || isDev {
		return []string{"*"}
	}
	return []string{frontendURL}
}
