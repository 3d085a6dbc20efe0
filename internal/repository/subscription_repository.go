package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, recruiter_id, plan, order_reference, status, current_period_start, current_period_end, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(&s.ID, &s.RecruiterID, &s.Plan, &s.TxRef, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	const query = `
INSERT INTO subscriptions (recruiter_id, plan, order_reference, status, current_period_start, current_period_end, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, sub.RecruiterID, sub.Plan, sub.TxRef, sub.Status, sub.PeriodStart, sub.PeriodEnd, sub.CreatedAt, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("subscription last insert id: %w", err)
	}
	sub.ID = id
	sub.UpdatedAt = sub.CreatedAt
	return nil
}

// Current returns the most recently created subscription of the recruiter.
// Ties on created_at are broken by id.
func (r *SubscriptionRepository) Current(ctx context.Context, recruiterID int64) (*models.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE recruiter_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`
	return r.getOne(ctx, "current subscription", query, recruiterID)
}

// LatestFree returns the most recent free-plan subscription of the recruiter.
func (r *SubscriptionRepository) LatestFree(ctx context.Context, recruiterID int64) (*models.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE recruiter_id = ? AND plan = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`
	return r.getOne(ctx, "latest free subscription", query, recruiterID, models.FreePlanKey)
}

func (r *SubscriptionRepository) GetByTxRef(ctx context.Context, txRef string) (*models.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE order_reference = ? LIMIT 1`
	return r.getOne(ctx, "subscription by tx_ref", query, txRef)
}

func (r *SubscriptionRepository) getOne(ctx context.Context, what, query string, args ...any) (*models.Subscription, error) {
	s, err := scanSubscription(database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return &s, nil
}

// TransitionByTxRef moves the subscription identified by txRef to status `to`
// only when its current status is one of from. It reports whether a row moved.
func (r *SubscriptionRepository) TransitionByTxRef(ctx context.Context, txRef string, to models.SubscriptionStatus, from ...models.SubscriptionStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition subscription: no source states")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	query := `UPDATE subscriptions SET status = ?, updated_at = NOW(6) WHERE order_reference = ? AND status IN (` + placeholders + `)`
	args := []any{to, txRef}
	for _, st := range from {
		args = append(args, st)
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition subscription rows affected: %w", err)
	}
	return n > 0, nil
}

// SetStatus overwrites the status of subscription id. It reports false when
// no such subscription exists.
func (r *SubscriptionRepository) SetStatus(ctx context.Context, id int64, status models.SubscriptionStatus) (bool, error) {
	const query = `UPDATE subscriptions SET status = ?, updated_at = NOW(6) WHERE id = ?`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		return false, fmt.Errorf("set subscription status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set subscription status rows affected: %w", err)
	}
	return n > 0, nil
}

// ListAll returns every subscription newest first, with the recruiter name.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]models.Subscription, error) {
	const query = `
SELECT s.id, s.recruiter_id, s.plan, s.order_reference, s.status, s.current_period_start, s.current_period_end, s.created_at, s.updated_at, u.name
FROM subscriptions s
JOIN users u ON u.id = s.recruiter_id
ORDER BY s.created_at DESC, s.id DESC`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.RecruiterID, &s.Plan, &s.TxRef, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.CreatedAt, &s.UpdatedAt, &s.RecruiterName); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
