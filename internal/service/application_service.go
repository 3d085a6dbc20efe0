package service

import (
	"context"
	"time"
)

// EscrowSummary is the deposit state attached to a fee view.
type EscrowSummary struct {
	TxRef  string     `json:"tx_ref"`
	Paid   bool       `json:"paid"`
	PaidAt *time.Time `json:"paid_at"`
}

// ApplicationFees is the fee breakdown of one application.
type ApplicationFees struct {
	ApplicationID int64          `json:"applicationId"`
	GigID         int64          `json:"gigId"`
	Fees          FeeBreakdown   `json:"fees"`
	Escrow        *EscrowSummary `json:"escrow"`
}

type ApplicationService struct {
	gigs    GigStore
	escrows EscrowStore
}

func NewApplicationService(gigs GigStore, escrows EscrowStore) *ApplicationService {
	return &ApplicationService{gigs: gigs, escrows: escrows}
}

// Fees computes the fee split for an application. Only the applying
// student, the gig's recruiter or an admin may read it.
func (s *ApplicationService) Fees(ctx context.Context, actor Actor, applicationID int64) (*ApplicationFees, error) {
	app, err := s.gigs.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, NotFoundError("application not found")
	}
	if !actor.IsAdmin() && actor.UserID != app.StudentID && actor.UserID != app.RecruiterID {
		return nil, ForbiddenError("not a party to this application")
	}

	completed, err := s.gigs.CountCompletedForRecruiter(ctx, app.RecruiterID)
	if err != nil {
		return nil, err
	}

	out := &ApplicationFees{
		ApplicationID: app.ID,
		GigID:         app.GigID,
		Fees:          ComputeFees(app.PaymentAmount, completed),
	}

	escrow, err := s.escrows.LatestForGig(ctx, app.GigID)
	if err != nil {
		return nil, err
	}
	if escrow != nil {
		out.Escrow = &EscrowSummary{TxRef: escrow.TxRef, Paid: escrow.Paid, PaidAt: escrow.PaidAt}
	}
	return out, nil
}
