package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

type EscrowRepository struct {
	db *sql.DB
}

func NewEscrowRepository(db *sql.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

const escrowColumns = `id, gig_id, payment_method, order_reference, trans_id, phone, amount, paid, created_at, paid_at`

func scanEscrow(row interface{ Scan(...any) error }) (models.Escrow, error) {
	var e models.Escrow
	var transID, phone sql.NullString
	var paidAt sql.NullTime
	var paid int
	if err := row.Scan(&e.ID, &e.GigID, &e.PaymentMethod, &e.TxRef, &transID, &phone, &e.Amount, &paid, &e.CreatedAt, &paidAt); err != nil {
		return e, err
	}
	e.Paid = paid != 0
	if transID.Valid {
		e.TransID = &transID.String
	}
	if phone.Valid {
		e.Phone = &phone.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		e.PaidAt = &t
	}
	return e, nil
}

func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	const query = `
INSERT INTO escrows (gig_id, payment_method, order_reference, trans_id, phone, amount, paid, created_at)
VALUES (?, ?, ?, NULL, ?, ?, 0, ?)`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, escrow.GigID, escrow.PaymentMethod, escrow.TxRef, nullableString(escrow.Phone), escrow.Amount, escrow.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("escrow last insert id: %w", err)
	}
	escrow.ID = id
	return nil
}

// MarkPaid flips an unpaid escrow to paid. It reports false when no unpaid
// row matched txRef, which covers both unknown and already paid references.
func (r *EscrowRepository) MarkPaid(ctx context.Context, txRef string, transID *string) (bool, error) {
	const query = `
UPDATE escrows
SET paid = 1, paid_at = NOW(), trans_id = COALESCE(?, trans_id)
WHERE order_reference = ? AND paid = 0`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, nullableString(transID), txRef)
	if err != nil {
		return false, fmt.Errorf("mark escrow paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark escrow paid rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *EscrowRepository) GetByRef(ctx context.Context, txRef string) (*models.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE order_reference = ? LIMIT 1`
	e, err := scanEscrow(database.Conn(ctx, r.db).QueryRowContext(ctx, query, txRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	return &e, nil
}

func (r *EscrowRepository) LatestForGig(ctx context.Context, gigID int64) (*models.Escrow, error) {
	const query = `SELECT ` + escrowColumns + ` FROM escrows WHERE gig_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	e, err := scanEscrow(database.Conn(ctx, r.db).QueryRowContext(ctx, query, gigID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest escrow for gig: %w", err)
	}
	return &e, nil
}

func nullableString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
