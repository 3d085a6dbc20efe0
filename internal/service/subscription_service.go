package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/notify"
	"github.com/digkill/campusgigs/internal/paychangu"
)

const (
	txRefPrefixSubscription = "sub_"
	txRefPrefixFree         = "sub_free_"
)

// SubscriptionService is the per-recruiter billing ledger. The current
// subscription is always the most recently created row.
type SubscriptionService struct {
	cfg     config.Config
	plans   *PlanService
	subs    SubscriptionStore
	gigs    GigStore
	users   UserStore
	gateway Gateway
	mailer  notify.Mailer
	metrics *metrics.Metrics
	clock   clock.Clock
	log     *slog.Logger
	journal *webhookJournal
}

type SubscriptionDeps struct {
	Plans   *PlanService
	Subs    SubscriptionStore
	Gigs    GigStore
	Users   UserStore
	Events  WebhookEventStore
	Gateway Gateway
	Archive Archiver
	Mailer  notify.Mailer
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Log     *slog.Logger
}

func NewSubscriptionService(cfg config.Config, deps SubscriptionDeps) *SubscriptionService {
	return &SubscriptionService{
		cfg:     cfg,
		plans:   deps.Plans,
		subs:    deps.Subs,
		gigs:    deps.Gigs,
		users:   deps.Users,
		gateway: deps.Gateway,
		mailer:  deps.Mailer,
		metrics: deps.Metrics,
		clock:   deps.Clock,
		log:     deps.Log,
		journal: &webhookJournal{
			secret:  cfg.PayChanguWebhookSecret,
			events:  deps.Events,
			archive: deps.Archive,
			metrics: deps.Metrics,
			clock:   deps.Clock,
			log:     deps.Log,
		},
	}
}

// FreePeriod is the result of activating the free plan.
type FreePeriod struct {
	Free        bool      `json:"free"`
	Message     string    `json:"message"`
	TxRef       string    `json:"tx_ref"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// SubscribeResult holds exactly one of Free or Checkout.
type SubscribeResult struct {
	Free     *FreePeriod
	Checkout *CheckoutResult
}

// Subscribe starts a new period on planKey for the recruiter.
func (s *SubscriptionService) Subscribe(ctx context.Context, recruiterID int64, planKey string) (*SubscribeResult, error) {
	planKey = strings.TrimSpace(planKey)
	plans, err := s.plans.LoadPlans(ctx)
	if err != nil {
		return nil, err
	}
	plan, ok := plans[planKey]
	if !ok {
		return nil, ValidationError("invalid plan")
	}
	if planKey == models.FreePlanKey {
		period, err := s.StartFreePeriod(ctx, recruiterID)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Free: period}, nil
	}
	checkout, err := s.StartPaidPeriod(ctx, recruiterID, planKey, plan.Price)
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{Checkout: checkout}, nil
}

// StartFreePeriod inserts an active free subscription for one month from now.
func (s *SubscriptionService) StartFreePeriod(ctx context.Context, recruiterID int64) (*FreePeriod, error) {
	now := s.clock.Now()
	sub := &models.Subscription{
		RecruiterID: recruiterID,
		Plan:        models.FreePlanKey,
		TxRef:       txRefPrefixFree + uuid.NewString(),
		Status:      models.SubscriptionActive,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:   now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("start free period: %w", err)
	}
	s.log.Info("free plan activated", "recruiter_id", recruiterID, "tx_ref", sub.TxRef)
	return &FreePeriod{
		Free:        true,
		Message:     "Free plan activated. No payment required.",
		TxRef:       sub.TxRef,
		PeriodStart: sub.PeriodStart,
		PeriodEnd:   sub.PeriodEnd,
	}, nil
}

// StartPaidPeriod records a pending subscription and then opens a hosted
// checkout. A gateway failure leaves the pending row in place.
func (s *SubscriptionService) StartPaidPeriod(ctx context.Context, recruiterID int64, planKey string, amount decimal.Decimal) (*CheckoutResult, error) {
	now := s.clock.Now()
	sub := &models.Subscription{
		RecruiterID: recruiterID,
		Plan:        planKey,
		TxRef:       txRefPrefixSubscription + uuid.NewString(),
		Status:      models.SubscriptionPending,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:   now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("start paid period: %w", err)
	}

	url, err := s.gateway.InitiateCheckout(ctx, paychangu.CheckoutRequest{
		Amount:      amount,
		Currency:    s.cfg.PaymentCurrency,
		TxRef:       sub.TxRef,
		CallbackURL: s.cfg.SubscriptionCallbackURL,
		ReturnURL:   s.cfg.SubscriptionReturnURL,
		Title:       "Subscription: " + capitalize(planKey),
		Meta:        map[string]any{"recruiterId": recruiterID, "plan": planKey},
	})
	s.metrics.CheckoutInitiated(metrics.PurposeSubscription, err)
	if err != nil {
		s.log.Error("subscription checkout failed", "recruiter_id", recruiterID, "tx_ref", sub.TxRef, "err", err)
		return nil, GatewayFailure(err)
	}
	return &CheckoutResult{PaymentPageURL: url, TxRef: sub.TxRef}, nil
}

// ApplyWebhookResult moves a pending or past_due subscription to active on
// success, and a pending one to past_due on failure. Active and canceled rows
// are left alone, so a late failure never downgrades a paid period. It
// reports whether txRef is known and whether a row changed.
func (s *SubscriptionService) ApplyWebhookResult(ctx context.Context, txRef string, success bool) (known bool, applied bool, err error) {
	if success {
		applied, err = s.subs.TransitionByTxRef(ctx, txRef, models.SubscriptionActive, models.SubscriptionPending, models.SubscriptionPastDue)
	} else {
		applied, err = s.subs.TransitionByTxRef(ctx, txRef, models.SubscriptionPastDue, models.SubscriptionPending)
	}
	if err != nil {
		return false, false, err
	}
	if applied {
		return true, true, nil
	}
	sub, err := s.subs.GetByTxRef(ctx, txRef)
	if err != nil {
		return false, false, err
	}
	return sub != nil, false, nil
}

// HandleWebhook processes a provider callback. Unknown references and bad
// signatures are acknowledged and logged; only a missing tx_ref is rejected.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookAck, error) {
	ev := paychangu.ParseEvent(body)
	s.journal.store(ctx, models.WebhookKindSubscription, body)
	if ev.TxRef == "" {
		s.log.Warn("subscription webhook without tx_ref")
		return nil, ValidationError("tx_ref is required")
	}

	if !s.journal.verify(body, signature) {
		s.journal.record(ctx, models.WebhookKindSubscription, ev, body, false, models.WebhookInvalidSignature)
		return &WebhookAck{Received: true}, nil
	}

	known, applied, err := s.ApplyWebhookResult(ctx, ev.TxRef, ev.Succeeded())
	if err != nil {
		return nil, err
	}

	outcome := models.WebhookApplied
	switch {
	case !known:
		outcome = models.WebhookUnknownRef
	case !applied:
		outcome = models.WebhookIgnored
	}
	s.journal.record(ctx, models.WebhookKindSubscription, ev, body, true, outcome)

	if applied && ev.Succeeded() {
		s.notifyActivated(ctx, ev.TxRef)
	}
	return &WebhookAck{Received: true}, nil
}

func (s *SubscriptionService) notifyActivated(ctx context.Context, txRef string) {
	sub, err := s.subs.GetByTxRef(ctx, txRef)
	if err != nil || sub == nil {
		s.log.Warn("load activated subscription", "tx_ref", txRef, "err", err)
		return
	}
	user, err := s.users.GetByID(ctx, sub.RecruiterID)
	if err != nil || user == nil {
		s.log.Warn("load recruiter for mail", "recruiter_id", sub.RecruiterID, "err", err)
		return
	}
	body, err := notify.Render(notify.TemplateSubscriptionActive, map[string]any{
		"Name":        user.Name,
		"Plan":        sub.Plan,
		"PeriodStart": sub.PeriodStart.Format("2 Jan 2006"),
		"PeriodEnd":   sub.PeriodEnd.Format("2 Jan 2006"),
	})
	if err != nil {
		s.log.Error("render subscription mail", "err", err)
		return
	}
	if err := s.mailer.Send(ctx, []string{user.Email}, "Your subscription is active", body); err != nil {
		s.log.Warn("send subscription mail", "recruiter_id", user.ID, "err", err)
	}
}

// SubscriptionStatus summarises the current period for the recruiter.
type SubscriptionStatus struct {
	Message         string                     `json:"message,omitempty"`
	Plan            *string                    `json:"plan"`
	Status          *models.SubscriptionStatus `json:"status"`
	PeriodStart     *time.Time                 `json:"periodStart"`
	PeriodEnd       *time.Time                 `json:"periodEnd"`
	UsedPosts       int                        `json:"usedPosts"`
	MaxPosts        *int                       `json:"maxPosts"`
	FreeAvailableAt *time.Time                 `json:"freeAvailableAt"`
}

// CurrentStatus reports the current subscription, usage in its period and
// when the last free period ends. It never writes.
func (s *SubscriptionService) CurrentStatus(ctx context.Context, recruiterID int64) (*SubscriptionStatus, error) {
	plans, err := s.plans.LoadPlans(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.Current(ctx, recruiterID)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		next := s.clock.Now().AddDate(0, 1, 0)
		return &SubscriptionStatus{
			Message:         "No subscription found. You can start with the free plan.",
			MaxPosts:        plans[models.FreePlanKey].MaxPosts,
			FreeAvailableAt: &next,
		}, nil
	}

	used, err := s.gigs.CountCreatedBetween(ctx, recruiterID, sub.PeriodStart, sub.PeriodEnd)
	if err != nil {
		return nil, err
	}
	status := &SubscriptionStatus{
		Plan:        &sub.Plan,
		Status:      &sub.Status,
		PeriodStart: &sub.PeriodStart,
		PeriodEnd:   &sub.PeriodEnd,
		UsedPosts:   used,
	}
	if plan, ok := plans[sub.Plan]; ok {
		status.MaxPosts = plan.MaxPosts
	} else {
		status.Message = ReasonPlanMissing
	}

	lastFree, err := s.subs.LatestFree(ctx, recruiterID)
	if err != nil {
		return nil, err
	}
	if lastFree != nil {
		end := lastFree.PeriodEnd
		status.FreeAvailableAt = &end
	}
	return status, nil
}

// Cancel marks subscription id canceled.
func (s *SubscriptionService) Cancel(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, models.SubscriptionCanceled)
}

// Reactivate marks subscription id active whatever its prior status.
func (s *SubscriptionService) Reactivate(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, models.SubscriptionActive)
}

func (s *SubscriptionService) setStatus(ctx context.Context, id int64, status models.SubscriptionStatus) error {
	found, err := s.subs.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !found {
		return NotFoundError("subscription not found")
	}
	s.log.Info("subscription status set by admin", "subscription_id", id, "status", status)
	return nil
}

func (s *SubscriptionService) List(ctx context.Context) ([]models.Subscription, error) {
	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	return subs, nil
}

// Events returns the webhook log for txRef, oldest first.
func (s *SubscriptionService) Events(ctx context.Context, txRef string) ([]models.WebhookEvent, error) {
	if strings.TrimSpace(txRef) == "" {
		return nil, ValidationError("tx_ref is required")
	}
	events, err := s.journal.events.ListByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.WebhookEvent{}
	}
	return events, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
