package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	apphandler "sarathi/internal/application/handler"
	appservice "sarathi/internal/application/service"
	appstore "sarathi/internal/application/store"
	"sarathi/internal/assessment"
	assessstore "sarathi/internal/assessment/store"
	"sarathi/internal/audit"
	auditstore "sarathi/internal/audit/store"
	caphandler "sarathi/internal/capacity/handler"
	capservice "sarathi/internal/capacity/service"
	capstore "sarathi/internal/capacity/store"
	"sarathi/internal/identity"
	"sarathi/internal/platform/config"
	"sarathi/internal/platform/httpserver"
	"sarathi/internal/platform/logger"
	"sarathi/internal/platform/metrics"
	"sarathi/internal/platform/middleware"
	"sarathi/internal/platform/postgres"
	platformredis "sarathi/internal/platform/redis"
	roadhandler "sarathi/internal/roadtest/handler"
	roadservice "sarathi/internal/roadtest/service"
	roadstore "sarathi/internal/roadtest/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	pool, err := postgres.OpenPool(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var applications appservice.ApplicationStore = appstore.NewInMemoryStore()
	var slots capservice.SlotStore = capstore.NewInMemorySlotStore()
	var attempts assessment.AttemptStore = assessstore.NewInMemoryAttemptStore()
	var sequences assessment.SequenceStore = assessstore.NewInMemorySequenceStore()
	var trail audit.Store = auditstore.NewInMemoryStore()
	if db != nil {
		pgApplications := appstore.NewPostgresStore(db)
		pgAttempts := assessstore.NewPostgresAttemptStore(db)
		pgSequences := assessstore.NewPostgresSequenceStore(db)
		pgTrail := auditstore.NewPostgresStore(db)
		pgSlots := capstore.NewPostgresSlotStore(pool)
		for _, migrate := range []func(context.Context) error{
			pgApplications.Migrate, pgAttempts.Migrate, pgSequences.Migrate,
			pgTrail.Migrate, pgSlots.Migrate,
		} {
			if err := migrate(ctx); err != nil {
				return err
			}
		}
		applications, attempts, sequences, trail, slots =
			pgApplications, pgAttempts, pgSequences, pgTrail, pgSlots
	}
	var sessions roadservice.SessionStore = roadstore.NewInMemorySessionStore()
	if rdb != nil {
		sessions = roadstore.NewRedisSessionStore(rdb.Client)
	}

	auditor := audit.NewPublisher(trail)

	ledger := capservice.New(slots, log,
		capservice.WithMetrics(m), capservice.WithAuditor(auditor))
	engine, err := assessment.NewEngine(attempts, sequences, log)
	if err != nil {
		return err
	}
	directory := identity.NewStaticDirectory(identity.DefaultSeed()...)
	lifecycle := appservice.New(applications, ledger, engine, directory, auditor, log,
		appservice.WithMetrics(m))

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.SupervisorPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	verification := roadservice.New(sessions, lifecycle, auditor, log,
		config.OTPTTL, cfg.JWTSigningKey,
		roadservice.SupervisorCredentials{ID: cfg.SupervisorID, PasswordHash: passwordHash},
		roadservice.WithMetrics(m))

	requireSupervisor := middleware.RequireSupervisor(cfg.JWTSigningKey, log)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	apphandler.New(lifecycle, log).Register(router)
	caphandler.New(ledger, log).Register(router, requireSupervisor)
	roadhandler.New(verification, log).Register(router, requireSupervisor)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sarathi", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
