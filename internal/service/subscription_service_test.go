package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/paychangu"
)

func TestSubscribeFreePlan(t *testing.T) {
	f := newFixture(t)
	f.store.AddPlan(models.FreePlanKey, 0, 3)
	r := f.recruiter("ada")

	res, err := f.subs.Subscribe(context.Background(), r.UserID, "free")
	require.NoError(t, err)
	require.NotNil(t, res.Free)
	assert.Nil(t, res.Checkout)
	assert.True(t, res.Free.Free)
	assert.Equal(t, fixtureNow, res.Free.PeriodStart)
	assert.Equal(t, fixtureNow.AddDate(0, 1, 0), res.Free.PeriodEnd)
	assert.True(t, strings.HasPrefix(res.Free.TxRef, "sub_free_"))
	assert.Empty(t, f.gateway.Requests)

	row := f.store.SubscriptionByRef(res.Free.TxRef)
	require.NotNil(t, row)
	assert.Equal(t, models.SubscriptionActive, row.Status)
	assert.Equal(t, models.FreePlanKey, row.Plan)
}

func TestSubscribeUnknownPlan(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")

	_, err := f.subs.Subscribe(context.Background(), r.UserID, "platinum")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, f.store.Subscriptions)
}

func TestSubscribePaidPlanOpensCheckout(t *testing.T) {
	f := newFixture(t)
	f.store.AddPlan("basic", 5000, 10)
	r := f.recruiter("ada")

	res, err := f.subs.Subscribe(context.Background(), r.UserID, "basic")
	require.NoError(t, err)
	require.NotNil(t, res.Checkout)
	assert.True(t, strings.HasPrefix(res.Checkout.TxRef, "sub_"))
	assert.False(t, strings.HasPrefix(res.Checkout.TxRef, "sub_free_"))
	assert.Equal(t, "https://checkout.test/"+res.Checkout.TxRef, res.Checkout.PaymentPageURL)

	require.Len(t, f.gateway.Requests, 1)
	req := f.gateway.Requests[0]
	assert.True(t, decimal.NewFromInt(5000).Equal(req.Amount))
	assert.Equal(t, "MWK", req.Currency)
	assert.Equal(t, res.Checkout.TxRef, req.TxRef)
	assert.Equal(t, f.cfg.SubscriptionCallbackURL, req.CallbackURL)
	assert.Equal(t, f.cfg.SubscriptionReturnURL, req.ReturnURL)
	assert.Equal(t, "Subscription: Basic", req.Title)
	assert.Equal(t, "basic", req.Meta["plan"])
	assert.Equal(t, r.UserID, req.Meta["recruiterId"])

	row := f.store.SubscriptionByRef(res.Checkout.TxRef)
	require.NotNil(t, row)
	assert.Equal(t, models.SubscriptionPending, row.Status)
	assert.Equal(t, fixtureNow, row.PeriodStart)
	assert.Equal(t, fixtureNow.AddDate(0, 1, 0), row.PeriodEnd)
}

func TestStartPaidPeriodGatewayFailureLeavesPendingRow(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	f.gateway.Err = &paychangu.GatewayError{Status: 503, Body: "maintenance"}

	_, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.Error(t, err)
	assert.Equal(t, KindGateway, KindOf(err))
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "payment provider unavailable", svcErr.Message)

	require.Len(t, f.store.Subscriptions, 1)
	assert.Equal(t, models.SubscriptionPending, f.store.Subscriptions[0].Status)
}

func TestApplyWebhookResultRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		want    models.SubscriptionStatus
	}{
		{name: "success", success: true, want: models.SubscriptionActive},
		{name: "failure", success: false, want: models.SubscriptionPastDue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.recruiter("ada")
			checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
			require.NoError(t, err)

			known, applied, err := f.subs.ApplyWebhookResult(context.Background(), checkout.TxRef, tt.success)
			require.NoError(t, err)
			assert.True(t, known)
			assert.True(t, applied)
			assert.Equal(t, tt.want, f.store.SubscriptionByRef(checkout.TxRef).Status)

			known, applied, err = f.subs.ApplyWebhookResult(context.Background(), checkout.TxRef, tt.success)
			require.NoError(t, err)
			assert.True(t, known)
			assert.False(t, applied)
			assert.Equal(t, tt.want, f.store.SubscriptionByRef(checkout.TxRef).Status)
		})
	}
}

func TestApplyWebhookResultRetryAfterFailureActivates(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.NoError(t, err)

	_, _, err = f.subs.ApplyWebhookResult(context.Background(), checkout.TxRef, false)
	require.NoError(t, err)
	_, applied, err := f.subs.ApplyWebhookResult(context.Background(), checkout.TxRef, true)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(checkout.TxRef).Status)
}

func TestHandleWebhookActivatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.NoError(t, err)

	body := webhookBody(checkout.TxRef, "success")
	ack, err := f.subs.HandleWebhook(context.Background(), body, "")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(checkout.TxRef).Status)

	require.Len(t, f.store.Events, 1)
	ev := f.store.Events[0]
	assert.Equal(t, models.WebhookKindSubscription, ev.Kind)
	assert.Equal(t, models.WebhookApplied, ev.Outcome)
	assert.Equal(t, checkout.TxRef, ev.TxRef)
	assert.Equal(t, "success", ev.Status)
	assert.True(t, ev.SignatureValid)
	assert.Equal(t, string(body), ev.Payload)

	assert.Equal(t, []string{string(body)}, f.archive.Bodies["subscription"])

	require.Len(t, f.mailer.Sent, 1)
	assert.Equal(t, []string{"ada@example.com"}, f.mailer.Sent[0].To)
	assert.Contains(t, f.mailer.Sent[0].Body, "basic")
}

func TestHandleWebhookLateFailureDoesNotDowngrade(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.NoError(t, err)

	_, err = f.subs.HandleWebhook(context.Background(), webhookBody(checkout.TxRef, "success"), "")
	require.NoError(t, err)
	ack, err := f.subs.HandleWebhook(context.Background(), webhookBody(checkout.TxRef, "failed"), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(checkout.TxRef).Status)
	require.Len(t, f.store.Events, 2)
	assert.Equal(t, models.WebhookIgnored, f.store.Events[1].Outcome)
	assert.Equal(t, "failed", f.store.Events[1].Status)
	assert.Len(t, f.mailer.Sent, 1)
}

func TestHandleWebhookUnknownReference(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	existing := f.activeSubscription(r.UserID, "basic", models.SubscriptionPending)

	ack, err := f.subs.HandleWebhook(context.Background(), webhookBody("sub_does_not_exist", "success"), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	require.Len(t, f.store.Subscriptions, 1)
	assert.Equal(t, models.SubscriptionPending, f.store.SubscriptionByRef(existing.TxRef).Status)
	require.Len(t, f.store.Events, 1)
	assert.Equal(t, models.WebhookUnknownRef, f.store.Events[0].Outcome)
	assert.Empty(t, f.mailer.Sent)
}

func TestHandleWebhookMissingTxRef(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"data":{"status":"success"}}`, `not json`} {
		_, err := f.subs.HandleWebhook(context.Background(), []byte(body), "")
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Empty(t, f.store.Events)
}

func TestHandleWebhookSignature(t *testing.T) {
	const secret = "whsec"
	f := newFixture(t, func(c *config.Config) { c.PayChanguWebhookSecret = secret })
	r := f.recruiter("ada")
	checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.NoError(t, err)
	body := webhookBody(checkout.TxRef, "success")

	ack, err := f.subs.HandleWebhook(context.Background(), body, "deadbeef")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Equal(t, models.SubscriptionPending, f.store.SubscriptionByRef(checkout.TxRef).Status)
	require.Len(t, f.store.Events, 1)
	assert.False(t, f.store.Events[0].SignatureValid)
	assert.Equal(t, models.WebhookInvalidSignature, f.store.Events[0].Outcome)

	_, err = f.subs.HandleWebhook(context.Background(), body, paychangu.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(checkout.TxRef).Status)
	assert.Equal(t, models.WebhookApplied, f.store.Events[1].Outcome)
}

func TestHandleWebhookArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.archive.Err = errors.New("s3 down")
	r := f.recruiter("ada")
	checkout, err := f.subs.StartPaidPeriod(context.Background(), r.UserID, "basic", decimal.NewFromInt(5000))
	require.NoError(t, err)

	ack, err := f.subs.HandleWebhook(context.Background(), webhookBody(checkout.TxRef, "success"), "")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(checkout.TxRef).Status)
}

func TestCurrentStatusWithoutSubscription(t *testing.T) {
	f := newFixture(t)
	f.store.AddPlan(models.FreePlanKey, 0, 3)
	r := f.recruiter("ada")

	status, err := f.subs.CurrentStatus(context.Background(), r.UserID)
	require.NoError(t, err)
	assert.Nil(t, status.Plan)
	assert.Nil(t, status.Status)
	assert.Nil(t, status.PeriodStart)
	require.NotNil(t, status.MaxPosts)
	assert.Equal(t, 3, *status.MaxPosts)
	require.NotNil(t, status.FreeAvailableAt)
	assert.Equal(t, fixtureNow.AddDate(0, 1, 0), *status.FreeAvailableAt)
	assert.NotEmpty(t, status.Message)
	assert.Empty(t, f.store.Subscriptions)
}

func TestCurrentStatusReportsLatestRowAndLastFreePeriod(t *testing.T) {
	f := newFixture(t)
	f.store.AddPlan(models.FreePlanKey, 0, 3)
	f.store.AddPlan("basic", 5000, 10)
	r := f.recruiter("ada")

	freeStart := fixtureNow.AddDate(0, -2, 0)
	f.store.AddSubscription(models.Subscription{
		RecruiterID: r.UserID,
		Plan:        models.FreePlanKey,
		TxRef:       "sub_free_old",
		Status:      models.SubscriptionActive,
		PeriodStart: freeStart,
		PeriodEnd:   freeStart.AddDate(0, 1, 0),
		CreatedAt:   freeStart,
	})
	paid := f.activeSubscription(r.UserID, "basic", models.SubscriptionActive)
	f.addGigs(r.UserID, 2, paid.PeriodStart.AddDate(0, 0, 2))
	f.addGigs(r.UserID, 1, freeStart.AddDate(0, 0, 1))

	status, err := f.subs.CurrentStatus(context.Background(), r.UserID)
	require.NoError(t, err)
	require.NotNil(t, status.Plan)
	assert.Equal(t, "basic", *status.Plan)
	assert.Equal(t, models.SubscriptionActive, *status.Status)
	assert.Equal(t, paid.PeriodStart, *status.PeriodStart)
	assert.Equal(t, paid.PeriodEnd, *status.PeriodEnd)
	assert.Equal(t, 2, status.UsedPosts)
	require.NotNil(t, status.MaxPosts)
	assert.Equal(t, 10, *status.MaxPosts)
	require.NotNil(t, status.FreeAvailableAt)
	assert.Equal(t, freeStart.AddDate(0, 1, 0), *status.FreeAvailableAt)
}

func TestCancelAndReactivate(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	sub := f.activeSubscription(r.UserID, "basic", models.SubscriptionActive)

	require.NoError(t, f.subs.Cancel(context.Background(), sub.ID))
	assert.Equal(t, models.SubscriptionCanceled, f.store.SubscriptionByRef(sub.TxRef).Status)

	require.NoError(t, f.subs.Reactivate(context.Background(), sub.ID))
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(sub.TxRef).Status)

	require.NoError(t, f.subs.Reactivate(context.Background(), sub.ID))
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(sub.TxRef).Status)
}

func TestCancelUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	sub := f.activeSubscription(r.UserID, "basic", models.SubscriptionActive)

	err := f.subs.Cancel(context.Background(), sub.ID+100)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, models.SubscriptionActive, f.store.SubscriptionByRef(sub.TxRef).Status)

	err = f.subs.Reactivate(context.Background(), sub.ID+100)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListSubscriptionsIncludesRecruiterName(t *testing.T) {
	f := newFixture(t)
	r := f.recruiter("ada")
	f.activeSubscription(r.UserID, "basic", models.SubscriptionActive)

	subs, err := f.subs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ada", subs[0].RecruiterName)

	empty := newFixture(t)
	subs, err = empty.subs.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestWebhookEventsByTxRef(t *testing.T) {
	f := newFixture(t)
	_, err := f.subs.HandleWebhook(context.Background(), webhookBody("sub_x", "success"), "")
	require.NoError(t, err)

	events, err := f.subs.Events(context.Background(), "sub_x")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.WebhookUnknownRef, events[0].Outcome)

	_, err = f.subs.Events(context.Background(), " ")
	assert.Equal(t, KindValidation, KindOf(err))
}
