package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

// ApplicationCompleted is the application status that counts towards fee tiers.
const ApplicationCompleted = "Completed"

type GigRepository struct {
	db *sql.DB
}

func NewGigRepository(db *sql.DB) *GigRepository {
	return &GigRepository{db: db}
}

func (r *GigRepository) Create(ctx context.Context, gig *models.Gig) error {
	const query = `
INSERT INTO gigs (recruiter_id, title, description, payment_amount, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	var amount any
	if gig.PaymentAmount != nil {
		amount = *gig.PaymentAmount
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, gig.RecruiterID, gig.Title, gig.Description, amount, gig.Status, gig.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert gig: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("gig last insert id: %w", err)
	}
	gig.ID = id
	return nil
}

func (r *GigRepository) GetByID(ctx context.Context, id int64) (*models.Gig, error) {
	const query = `SELECT id, recruiter_id, title, description, payment_amount, status, created_at FROM gigs WHERE id = ?`
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id)
	var g models.Gig
	var amount decimal.NullDecimal
	if err := row.Scan(&g.ID, &g.RecruiterID, &g.Title, &g.Description, &amount, &g.Status, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get gig: %w", err)
	}
	if amount.Valid {
		g.PaymentAmount = &amount.Decimal
	}
	return &g, nil
}

// CountCreatedBetween counts the recruiter's gigs created within [start, end].
func (r *GigRepository) CountCreatedBetween(ctx context.Context, recruiterID int64, start, end time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM gigs WHERE recruiter_id = ? AND created_at BETWEEN ? AND ?`
	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, recruiterID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count gigs in period: %w", err)
	}
	return count, nil
}

// CountCompletedForRecruiter counts completed applications across all gigs of the recruiter.
func (r *GigRepository) CountCompletedForRecruiter(ctx context.Context, recruiterID int64) (int, error) {
	const query = `
SELECT COUNT(*)
FROM gig_applications ga
JOIN gigs g ON g.id = ga.gig_id
WHERE g.recruiter_id = ? AND ga.status = ?`
	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, recruiterID, ApplicationCompleted).Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed applications: %w", err)
	}
	return count, nil
}

func (r *GigRepository) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	const query = `
SELECT ga.id, ga.gig_id, ga.student_id, g.recruiter_id, ga.status, ga.payment_amount, ga.completed_at
FROM gig_applications ga
JOIN gigs g ON g.id = ga.gig_id
WHERE ga.id = ?`
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id)
	var a models.Application
	var completedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.GigID, &a.StudentID, &a.RecruiterID, &a.Status, &a.PaymentAmount, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return &a, nil
}
