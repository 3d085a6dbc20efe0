package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/models"
)

const (
	gigStatusOpen     = "open"
	maxGigTitleLength = 255
)

// GigService posts gigs behind the quota gate.
type GigService struct {
	tx    TxRunner
	gigs  GigStore
	users UserStore
	gate  *QuotaGate
	clock clock.Clock
	log   *slog.Logger
}

func NewGigService(tx TxRunner, gigs GigStore, users UserStore, gate *QuotaGate, clk clock.Clock, log *slog.Logger) *GigService {
	return &GigService{tx: tx, gigs: gigs, users: users, gate: gate, clock: clk, log: log}
}

type CreateGigInput struct {
	Title         string
	Description   string
	PaymentAmount *decimal.Decimal
}

// CreateGig inserts a gig for the acting recruiter. The recruiter row is
// locked for the duration of the check and the insert, so concurrent posts
// by the same recruiter are counted one after another.
func (s *GigService) CreateGig(ctx context.Context, actor Actor, in CreateGigInput) (*models.Gig, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, ValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > maxGigTitleLength {
		return nil, ValidationError("title is too long")
	}
	if description == "" {
		return nil, ValidationError("description is required")
	}
	if in.PaymentAmount != nil && in.PaymentAmount.IsNegative() {
		return nil, ValidationError("paymentAmount must not be negative")
	}

	var gig *models.Gig
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		found, err := s.users.LockForUpdate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError("recruiter not found")
		}

		decision, err := s.gate.AuthorizeGigPost(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if err := decision.Err(); err != nil {
			return err
		}

		row := &models.Gig{
			RecruiterID:   actor.UserID,
			Title:         title,
			Description:   description,
			PaymentAmount: in.PaymentAmount,
			Status:        gigStatusOpen,
			CreatedAt:     s.clock.Now(),
		}
		if err := s.gigs.Create(ctx, row); err != nil {
			return err
		}
		gig = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("gig posted", "gig_id", gig.ID, "recruiter_id", gig.RecruiterID)
	return gig, nil
}

// Quota reports the gate decision without posting.
func (s *GigService) Quota(ctx context.Context, recruiterID int64) (QuotaDecision, error) {
	return s.gate.AuthorizeGigPost(ctx, recruiterID)
}
