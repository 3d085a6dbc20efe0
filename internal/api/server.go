package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/service"
)

const maxWebhookBody = 1 << 20

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles the operations exposed over HTTP.
type Services struct {
	Plans        *service.PlanService
	Escrow       *service.EscrowService
	Subs         *service.SubscriptionService
	Gigs         *service.GigService
	Applications *service.ApplicationService
}

type Options struct {
	Addr      string
	JWTSecret string
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	DB       Pinger
}

type Server struct {
	addr      string
	jwtSecret []byte
	log       *slog.Logger
	metrics   *metrics.Metrics
	db        Pinger
	validate  *validator.Validate

	plans        *service.PlanService
	escrow       *service.EscrowService
	subs         *service.SubscriptionService
	gigs         *service.GigService
	applications *service.ApplicationService

	router *chi.Mux
}

func NewServer(opts Options, svc Services) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:         opts.Addr,
		jwtSecret:    []byte(opts.JWTSecret),
		log:          opts.Log,
		metrics:      opts.Metrics,
		db:           opts.DB,
		validate:     newValidator(),
		plans:        svc.Plans,
		escrow:       svc.Escrow,
		subs:         svc.Subs,
		gigs:         svc.Gigs,
		applications: svc.Applications,
		router:       r,
	}
	r.Use(s.requestLogger)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)

		r.Route("/escrow", func(r chi.Router) {
			r.Post("/webhook", s.handleEscrowWebhook)
			r.Post("/noop", s.handleNoop)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.With(RequireRole(models.RoleRecruiter, models.RoleAdmin)).Post("/", s.handleInitiateEscrow)
				r.With(RequireRole(models.RoleRecruiter, models.RoleAdmin)).Post("/release", s.handleReleaseEscrow)
				r.Get("/{tx_ref}", s.handleGetEscrow)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/webhook", s.handleSubscriptionWebhook)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, RequireRole(models.RoleRecruiter))
				r.Post("/", s.handleSubscribe)
				r.Get("/status", s.handleSubscriptionStatus)
			})
		})

		r.Route("/gigs", func(r chi.Router) {
			r.Use(s.authenticate, RequireRole(models.RoleRecruiter))
			r.Post("/", s.handleCreateGig)
			r.Get("/quota", s.handleGigQuota)
		})

		r.With(s.authenticate).Get("/applications/{id}/fees", s.handleApplicationFees)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate, RequireRole(models.RoleAdmin))
			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
			r.Post("/subscriptions/{id}/reactivate", s.handleReactivateSubscription)
			r.Get("/webhook-events", s.handleWebhookEvents)
			r.Route("/plans", func(r chi.Router) {
				r.Get("/", s.handleListPlans)
				r.Post("/", s.handleCreatePlan)
				r.Get("/{id}", s.handleGetPlan)
				r.Put("/{id}", s.handleUpdatePlan)
				r.Delete("/{id}", s.handleDeletePlan)
			})
		})
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Error("health ping", "err", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNoop(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
