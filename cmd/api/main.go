package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digkill/campusgigs/internal/api"
	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/notify"
	"github.com/digkill/campusgigs/internal/paychangu"
	"github.com/digkill/campusgigs/internal/repository"
	"github.com/digkill/campusgigs/internal/service"
	"github.com/digkill/campusgigs/internal/storage"
	"github.com/digkill/campusgigs/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	clk := clock.NewSystem()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var archive service.Archiver = storage.NoopArchive{}
	if cfg.ArchiveEnabled() {
		s3Archive, err := storage.NewWebhookArchive(storage.ConfigFrom(cfg), clk)
		if err != nil {
			log.Fatalf("webhook archive: %v", err)
		}
		archive = s3Archive
	}
	mailer := notify.NewFromConfig(cfg)
	gateway := paychangu.NewClient(cfg, logr)

	txRunner := database.NewTxRunner(db)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	escrowRepo := repository.NewEscrowRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	gigRepo := repository.NewGigRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	planService := service.NewPlanService(planRepo, cfg.FreePlanMaxPost)
	if err := planService.EnsureFreePlan(ctx); err != nil {
		log.Fatalf("ensure free plan: %v", err)
	}
	gate := service.NewQuotaGate(planService, subscriptionRepo, gigRepo, clk, m, logr)

	escrowService := service.NewEscrowService(cfg, service.EscrowDeps{
		Escrows: escrowRepo,
		Gigs:    gigRepo,
		Users:   userRepo,
		Events:  eventRepo,
		Gateway: gateway,
		Archive: archive,
		Mailer:  mailer,
		Metrics: m,
		Clock:   clk,
		Log:     logr,
	})
	subscriptionService := service.NewSubscriptionService(cfg, service.SubscriptionDeps{
		Plans:   planService,
		Subs:    subscriptionRepo,
		Gigs:    gigRepo,
		Users:   userRepo,
		Events:  eventRepo,
		Gateway: gateway,
		Archive: archive,
		Mailer:  mailer,
		Metrics: m,
		Clock:   clk,
		Log:     logr,
	})
	gigService := service.NewGigService(txRunner, gigRepo, userRepo, gate, clk, logr)
	applicationService := service.NewApplicationService(gigRepo, escrowRepo)

	server := api.NewServer(api.Options{
		Addr:      cfg.ListenAddr,
		JWTSecret: cfg.JWTSecret,
		Log:       logr,
		Metrics:   m,
		Gatherer:  registry,
		DB:        db,
	}, api.Services{
		Plans:        planService,
		Escrow:       escrowService,
		Subs:         subscriptionService,
		Gigs:         gigService,
		Applications: applicationService,
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("api server stopped", "err", err)
	}
}
