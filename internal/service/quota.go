package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
)

const (
	ReasonSubscriptionNotActive = "subscription not active"
	ReasonPostLimitReached      = "monthly post limit reached"
	ReasonPlanMissing           = "subscription plan no longer exists"
)

// QuotaDecision is the outcome of a gig posting check.
type QuotaDecision struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	Plan        string    `json:"plan"`
	UsedPosts   int       `json:"usedPosts"`
	MaxPosts    *int      `json:"maxPosts"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	kind Kind
}

// Err converts a denial into a service error.
func (d QuotaDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &Error{Kind: d.kind, Message: d.Reason}
}

// QuotaGate decides whether a recruiter may post another gig in the
// current billing period.
type QuotaGate struct {
	plans   *PlanService
	subs    SubscriptionStore
	gigs    GigStore
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewQuotaGate(plans *PlanService, subs SubscriptionStore, gigs GigStore, clk clock.Clock, m *metrics.Metrics, log *slog.Logger) *QuotaGate {
	return &QuotaGate{plans: plans, subs: subs, gigs: gigs, clock: clk, metrics: m, log: log}
}

// AuthorizeGigPost evaluates the current subscription of the recruiter.
// Without any subscription the free plan applies over the month ending now.
func (g *QuotaGate) AuthorizeGigPost(ctx context.Context, recruiterID int64) (QuotaDecision, error) {
	sub, err := g.subs.Current(ctx, recruiterID)
	if err != nil {
		return QuotaDecision{}, err
	}

	now := g.clock.Now()
	decision := QuotaDecision{Plan: models.FreePlanKey, PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now}
	status := models.SubscriptionActive
	if sub != nil {
		decision.Plan = sub.Plan
		decision.PeriodStart = sub.PeriodStart
		decision.PeriodEnd = sub.PeriodEnd
		status = sub.Status
	}

	if status != models.SubscriptionActive && decision.Plan != models.FreePlanKey {
		return g.deny(recruiterID, decision, KindPaymentRequired, ReasonSubscriptionNotActive), nil
	}

	plans, err := g.plans.LoadPlans(ctx)
	if err != nil {
		return QuotaDecision{}, err
	}
	plan, ok := plans[decision.Plan]
	if !ok {
		return g.deny(recruiterID, decision, KindForbidden, ReasonPlanMissing), nil
	}
	decision.MaxPosts = plan.MaxPosts

	used, err := g.gigs.CountCreatedBetween(ctx, recruiterID, decision.PeriodStart, decision.PeriodEnd)
	if err != nil {
		return QuotaDecision{}, err
	}
	decision.UsedPosts = used

	if !plan.Unbounded() && used >= *plan.MaxPosts {
		return g.deny(recruiterID, decision, KindForbidden, ReasonPostLimitReached), nil
	}

	decision.Allowed = true
	g.metrics.QuotaDecision(true)
	return decision, nil
}

func (g *QuotaGate) deny(recruiterID int64, d QuotaDecision, kind Kind, reason string) QuotaDecision {
	d.Allowed = false
	d.Reason = reason
	d.kind = kind
	g.metrics.QuotaDecision(false)
	g.log.Info("gig post denied", "recruiter_id", recruiterID, "plan", d.Plan, "reason", reason)
	return d
}
