package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

// WebhookEventRepository appends provider callbacks to payment_webhook_events.
type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Record(ctx context.Context, event *models.WebhookEvent) error {
	const query = `
INSERT INTO payment_webhook_events (kind, tx_ref, status, payload, signature_valid, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	valid := 0
	if event.SignatureValid {
		valid = 1
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, event.Kind, event.TxRef, event.Status, event.Payload, valid, event.Outcome, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("webhook event last insert id: %w", err)
	}
	event.ID = id
	return nil
}

func (r *WebhookEventRepository) ListByTxRef(ctx context.Context, txRef string) ([]models.WebhookEvent, error) {
	const query = `
SELECT id, kind, tx_ref, status, payload, signature_valid, outcome, created_at
FROM payment_webhook_events
WHERE tx_ref = ?
ORDER BY created_at ASC, id ASC`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, txRef)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		var valid int
		if err := rows.Scan(&e.ID, &e.Kind, &e.TxRef, &e.Status, &e.Payload, &valid, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		e.SignatureValid = valid != 0
		events = append(events, e)
	}
	return events, rows.Err()
}
