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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"cardforge/internal/audit"
	authhandler "cardforge/internal/auth/handler"
	authservice "cardforge/internal/auth/service"
	"cardforge/internal/auth/token"
	cardhandler "cardforge/internal/card/handler"
	cardmetrics "cardforge/internal/card/metrics"
	"cardforge/internal/card/resave"
	cardservice "cardforge/internal/card/service"
	"cardforge/internal/platform/config"
	"cardforge/internal/platform/httpserver"
	"cardforge/internal/platform/logger"
	"cardforge/internal/platform/metrics"
	ratemiddleware "cardforge/internal/ratelimit/middleware"
	ratemodels "cardforge/internal/ratelimit/models"
	rateservice "cardforge/internal/ratelimit/service"
	"cardforge/pkg/platform/middleware/admin"
	authmw "cardforge/pkg/platform/middleware/auth"
	"cardforge/pkg/platform/middleware/metadata"
	"cardforge/pkg/platform/middleware/requesttime"
)

// main wires dependencies and runs the HTTP server until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	platformMetrics := metrics.New(reg)

	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	stores := newStores(deps)

	auditMetrics := audit.NewMetrics(reg)
	publisher := audit.NewPublisher(
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
		audit.WithBufferSize(cfg.Audit.BufferSize),
	)
	worker := audit.NewWorker(auditSink(cfg, deps, log), publisher.Inbox(), log, auditMetrics)

	authSvc, err := authservice.New(stores.users, stores.sessions,
		token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer),
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(publisher),
		authservice.WithMetrics(platformMetrics),
	)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	cardSvc, err := cardservice.New(stores.cards,
		cardservice.WithLogger(log),
		cardservice.WithAuditPublisher(publisher),
		cardservice.WithMetrics(cardmetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("init card service: %w", err)
	}

	limiter, err := rateservice.New(stores.rateWindows, map[string]ratemodels.Policy{
		authhandler.ScopeLogin:    {Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.Window},
		authhandler.ScopeRegister: {Limit: cfg.RateLimit.RegisterLimit, Window: cfg.RateLimit.Window},
	}, append(stores.rateOptions, rateservice.WithLogger(log))...)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	limits := ratemiddleware.New(limiter, log,
		ratemiddleware.WithMetrics(platformMetrics),
		ratemiddleware.WithAuditPublisher(publisher),
		ratemiddleware.WithDisabled(cfg.RateLimit.Disabled),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.Auth.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(platformMetrics.Middleware)

	r.Get("/health", httpserver.Health(deps.healthChecks()))
	r.Handle("/metrics", metrics.Handler(reg))

	authhandler.New(authSvc, authSvc, log, cfg.Auth.SecureCookies).Register(r, limits.Limit)
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(authSvc, log))
		cardhandler.New(cardSvc, log).Register(r)
	})
	resave.NewHandler(
		resave.New(cardSvc, resave.WithLogger(log), resave.WithConcurrency(cfg.Resave.Concurrency), resave.WithPageSize(cfg.Resave.PageSize)),
		log,
	).Register(r, admin.RequireAdminToken(cfg.AdminToken, log))

	srv := httpserver.New(cfg.Addr, r)

	workerDone := make(chan error, 1)
	go func() {
		// The worker exits when the publisher is closed, after draining.
		workerDone <- worker.Run(context.WithoutCancel(ctx))
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting cardforge", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	publisher.Close()
	if werr := <-workerDone; werr != nil {
		log.Warn("audit worker stopped with error", "error", werr)
	}
	return err
}
