package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/testutil"
	"github.com/digkill/campusgigs/pkg/logger"
)

var fixtureNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	cfg     config.Config
	store   *testutil.Store
	clock   *clock.Fake
	gateway *testutil.Gateway
	mailer  *testutil.Mailer
	archive *testutil.Archive
	tx      *testutil.TxRunner

	plans  *PlanService
	gate   *QuotaGate
	subs   *SubscriptionService
	escrow *EscrowService
	gigs   *GigService
	apps   *ApplicationService
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Config{
		PaymentCurrency:         "MWK",
		FreePlanMaxPost:         3,
		EscrowCallbackURL:       "https://app.test/api/escrow/webhook",
		EscrowReturnURL:         "https://app.test/escrow/done",
		SubscriptionCallbackURL: "https://app.test/api/subscriptions/webhook",
		SubscriptionReturnURL:   "https://app.test/billing",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		cfg:     cfg,
		store:   testutil.NewStore(),
		clock:   clock.NewFake(fixtureNow),
		gateway: &testutil.Gateway{},
		mailer:  &testutil.Mailer{},
		archive: &testutil.Archive{},
		tx:      &testutil.TxRunner{},
	}
	f.store.Now = f.clock.Now

	log := logger.Discard()
	m := metrics.New(prometheus.NewRegistry())
	planStore := testutil.PlanStore{S: f.store}
	subStore := testutil.SubscriptionStore{S: f.store}
	gigStore := testutil.GigStore{S: f.store}
	userStore := testutil.UserStore{S: f.store}
	escrowStore := testutil.EscrowStore{S: f.store}
	eventStore := testutil.WebhookEventStore{S: f.store}

	f.plans = NewPlanService(planStore, cfg.FreePlanMaxPost)
	f.gate = NewQuotaGate(f.plans, subStore, gigStore, f.clock, m, log)
	f.subs = NewSubscriptionService(cfg, SubscriptionDeps{
		Plans:   f.plans,
		Subs:    subStore,
		Gigs:    gigStore,
		Users:   userStore,
		Events:  eventStore,
		Gateway: f.gateway,
		Archive: f.archive,
		Mailer:  f.mailer,
		Metrics: m,
		Clock:   f.clock,
		Log:     log,
	})
	f.escrow = NewEscrowService(cfg, EscrowDeps{
		Escrows: escrowStore,
		Gigs:    gigStore,
		Users:   userStore,
		Events:  eventStore,
		Gateway: f.gateway,
		Archive: f.archive,
		Mailer:  f.mailer,
		Metrics: m,
		Clock:   f.clock,
		Log:     log,
	})
	f.gigs = NewGigService(f.tx, gigStore, userStore, f.gate, f.clock, log)
	f.apps = NewApplicationService(gigStore, escrowStore)
	return f
}

func (f *fixture) recruiter(name string) Actor {
	u := f.store.AddUser(name, models.RoleRecruiter)
	return Actor{UserID: u.ID, Role: u.Role}
}

func (f *fixture) student(name string) Actor {
	u := f.store.AddUser(name, models.RoleStudent)
	return Actor{UserID: u.ID, Role: u.Role}
}

// activeSubscription seeds an active row on plan covering fixtureNow.
func (f *fixture) activeSubscription(recruiterID int64, plan string, status models.SubscriptionStatus) *models.Subscription {
	start := fixtureNow.AddDate(0, 0, -10)
	return f.store.AddSubscription(models.Subscription{
		RecruiterID: recruiterID,
		Plan:        plan,
		TxRef:       "sub_seed_" + plan + "_" + string(status),
		Status:      status,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
		CreatedAt:   start,
	})
}

func (f *fixture) addGigs(recruiterID int64, n int, at time.Time) {
	for i := 0; i < n; i++ {
		f.store.AddGig(recruiterID, at)
	}
}

func webhookBody(txRef, status string) []byte {
	return []byte(`{"event_type":"api.charge.payment","data":{"tx_ref":"` + txRef + `","status":"` + status + `","reference":"PC-REF-1"}}`)
}
