package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/paychangu"
)

const archiveTimeout = 10 * time.Second

// WebhookAck is the body returned to the provider.
type WebhookAck struct {
	Received bool `json:"received"`
}

// webhookJournal verifies, archives and logs provider callbacks. Failures
// to archive or log are reported but never fail the callback.
type webhookJournal struct {
	secret  string
	events  WebhookEventStore
	archive Archiver
	metrics *metrics.Metrics
	clock   clock.Clock
	log     *slog.Logger
}

func (j *webhookJournal) verify(body []byte, signature string) bool {
	return paychangu.VerifySignature(body, signature, j.secret)
}

func (j *webhookJournal) store(ctx context.Context, kind models.WebhookKind, body []byte) {
	if j.archive == nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if _, err := j.archive.Archive(archiveCtx, string(kind), body); err != nil {
		j.log.Warn("archive webhook payload", "kind", kind, "err", err)
	}
}

func (j *webhookJournal) record(ctx context.Context, kind models.WebhookKind, ev paychangu.Event, body []byte, signatureValid bool, outcome models.WebhookOutcome) {
	j.metrics.WebhookEvent(string(kind), string(outcome))
	event := &models.WebhookEvent{
		Kind:           kind,
		TxRef:          ev.TxRef,
		Status:         ev.Status,
		Payload:        string(body),
		SignatureValid: signatureValid,
		Outcome:        outcome,
		CreatedAt:      j.clock.Now(),
	}
	if err := j.events.Record(ctx, event); err != nil {
		j.log.Error("record webhook event", "kind", kind, "tx_ref", ev.TxRef, "err", err)
	}
	j.log.Info("webhook processed", "kind", kind, "tx_ref", ev.TxRef, "status", ev.Status, "outcome", outcome)
}
