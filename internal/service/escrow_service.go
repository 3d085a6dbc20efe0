package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/internal/metrics"
	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/notify"
	"github.com/digkill/campusgigs/internal/paychangu"
)

const txRefPrefixEscrow = "escrow_"

// EscrowService is the per-gig deposit ledger. tx_ref is the idempotency key
// for every paid transition.
type EscrowService struct {
	cfg     config.Config
	escrows EscrowStore
	gigs    GigStore
	users   UserStore
	gateway Gateway
	mailer  notify.Mailer
	metrics *metrics.Metrics
	clock   clock.Clock
	log     *slog.Logger
	journal *webhookJournal
}

type EscrowDeps struct {
	Escrows EscrowStore
	Gigs    GigStore
	Users   UserStore
	Events  WebhookEventStore
	Gateway Gateway
	Archive Archiver
	Mailer  notify.Mailer
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Log     *slog.Logger
}

func NewEscrowService(cfg config.Config, deps EscrowDeps) *EscrowService {
	return &EscrowService{
		cfg:     cfg,
		escrows: deps.Escrows,
		gigs:    deps.Gigs,
		users:   deps.Users,
		gateway: deps.Gateway,
		mailer:  deps.Mailer,
		metrics: deps.Metrics,
		clock:   deps.Clock,
		log:     deps.Log,
		journal: &webhookJournal{
			secret:  cfg.PayChanguWebhookSecret,
			events:  deps.Events,
			archive: deps.Archive,
			metrics: deps.Metrics,
			clock:   deps.Clock,
			log:     deps.Log,
		},
	}
}

type DepositInput struct {
	GigID         int64
	Amount        decimal.Decimal
	PaymentMethod models.PaymentMethod
	Phone         string
}

// OpenDeposit inserts a pending escrow row for txRef.
func (s *EscrowService) OpenDeposit(ctx context.Context, gigID int64, method models.PaymentMethod, txRef string, phone *string, amount decimal.Decimal) error {
	escrow := &models.Escrow{
		GigID:         gigID,
		PaymentMethod: method,
		TxRef:         txRef,
		Amount:        amount,
		CreatedAt:     s.clock.Now(),
	}
	if method == models.PaymentMethodMobile {
		escrow.Phone = phone
	}
	if err := s.escrows.Create(ctx, escrow); err != nil {
		return fmt.Errorf("open deposit: %w", err)
	}
	return nil
}

// InitiateDeposit records a pending escrow for the gig and opens a hosted
// checkout for it. A gateway failure leaves the pending row in place.
func (s *EscrowService) InitiateDeposit(ctx context.Context, actor Actor, in DepositInput) (*CheckoutResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ValidationError("amount must be positive")
	}
	switch in.PaymentMethod {
	case models.PaymentMethodCard:
	case models.PaymentMethodMobile:
		if strings.TrimSpace(in.Phone) == "" {
			return nil, ValidationError("phone is required for mobile payments")
		}
	default:
		return nil, ValidationError("paymentMethod must be card or mobile")
	}

	gig, err := s.gigs.GetByID(ctx, in.GigID)
	if err != nil {
		return nil, err
	}
	if gig == nil {
		return nil, NotFoundError("gig not found")
	}
	if gig.RecruiterID != actor.UserID && !actor.IsAdmin() {
		return nil, ForbiddenError("gig belongs to another recruiter")
	}

	txRef := txRefPrefixEscrow + uuid.NewString()
	phone := strings.TrimSpace(in.Phone)
	if err := s.OpenDeposit(ctx, gig.ID, in.PaymentMethod, txRef, &phone, in.Amount); err != nil {
		return nil, err
	}

	url, err := s.gateway.InitiateCheckout(ctx, paychangu.CheckoutRequest{
		Amount:      in.Amount,
		Currency:    s.cfg.PaymentCurrency,
		TxRef:       txRef,
		CallbackURL: s.cfg.EscrowCallbackURL,
		ReturnURL:   s.cfg.EscrowReturnURL,
		Title:       "Escrow Deposit",
		Meta:        map[string]any{"gigId": gig.ID},
	})
	s.metrics.CheckoutInitiated(metrics.PurposeEscrow, err)
	if err != nil {
		s.log.Error("escrow checkout failed", "gig_id", gig.ID, "tx_ref", txRef, "err", err)
		return nil, GatewayFailure(err)
	}
	return &CheckoutResult{PaymentPageURL: url, TxRef: txRef}, nil
}

// MarkPaid flips the escrow to paid once. A second call reports
// updated=false and leaves paid_at untouched; an unknown txRef is NotFound.
func (s *EscrowService) MarkPaid(ctx context.Context, txRef string, transID *string) (bool, error) {
	updated, err := s.escrows.MarkPaid(ctx, txRef, transID)
	if err != nil {
		return false, err
	}
	if updated {
		s.log.Info("escrow marked paid", "tx_ref", txRef)
		return true, nil
	}
	existing, err := s.escrows.GetByRef(ctx, txRef)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, NotFoundError("escrow record not found")
	}
	return false, nil
}

// ReleaseResult is returned by Release.
type ReleaseResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	OrderReference string `json:"order_reference"`
	Updated        bool   `json:"updated"`
}

// Release confirms payment of the escrow on behalf of the gig's recruiter.
func (s *EscrowService) Release(ctx context.Context, actor Actor, txRef string) (*ReleaseResult, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, ValidationError("tx_ref is required")
	}
	escrow, err := s.escrows.GetByRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, NotFoundError("escrow record not found")
	}
	if !actor.IsAdmin() {
		if err := s.ensureGigOwner(ctx, actor, escrow.GigID); err != nil {
			return nil, err
		}
	}

	updated, err := s.MarkPaid(ctx, txRef, nil)
	if err != nil {
		return nil, err
	}
	if updated {
		s.notifyPaid(ctx, txRef)
	}
	return &ReleaseResult{
		Success:        true,
		Message:        "Escrow released successfully",
		OrderReference: txRef,
		Updated:        updated,
	}, nil
}

// GetByRef returns the escrow for txRef.
func (s *EscrowService) GetByRef(ctx context.Context, txRef string) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if escrow == nil {
		return nil, NotFoundError("escrow not found")
	}
	return escrow, nil
}

// HandleWebhook marks the escrow paid on a successful provider callback.
// Other statuses, unknown references and bad signatures are acknowledged.
func (s *EscrowService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookAck, error) {
	ev := paychangu.ParseEvent(body)
	s.journal.store(ctx, models.WebhookKindEscrow, body)
	if ev.TxRef == "" {
		s.log.Warn("escrow webhook without tx_ref")
		return nil, ValidationError("tx_ref is required")
	}
	if !s.journal.verify(body, signature) {
		s.journal.record(ctx, models.WebhookKindEscrow, ev, body, false, models.WebhookInvalidSignature)
		return &WebhookAck{Received: true}, nil
	}

	if !ev.Succeeded() {
		existing, err := s.escrows.GetByRef(ctx, ev.TxRef)
		if err != nil {
			return nil, err
		}
		outcome := models.WebhookIgnored
		if existing == nil {
			outcome = models.WebhookUnknownRef
		}
		s.journal.record(ctx, models.WebhookKindEscrow, ev, body, true, outcome)
		return &WebhookAck{Received: true}, nil
	}

	var transID *string
	if ev.TransID != "" {
		transID = &ev.TransID
	}
	updated, err := s.MarkPaid(ctx, ev.TxRef, transID)
	switch {
	case KindOf(err) == KindNotFound:
		s.journal.record(ctx, models.WebhookKindEscrow, ev, body, true, models.WebhookUnknownRef)
		return &WebhookAck{Received: true}, nil
	case err != nil:
		return nil, err
	case !updated:
		s.journal.record(ctx, models.WebhookKindEscrow, ev, body, true, models.WebhookIgnored)
		return &WebhookAck{Received: true}, nil
	}
	s.journal.record(ctx, models.WebhookKindEscrow, ev, body, true, models.WebhookApplied)
	s.notifyPaid(ctx, ev.TxRef)
	return &WebhookAck{Received: true}, nil
}

func (s *EscrowService) ensureGigOwner(ctx context.Context, actor Actor, gigID int64) error {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return err
	}
	if gig == nil {
		return NotFoundError("gig not found")
	}
	if gig.RecruiterID != actor.UserID {
		return ForbiddenError("gig belongs to another recruiter")
	}
	return nil
}

func (s *EscrowService) notifyPaid(ctx context.Context, txRef string) {
	escrow, err := s.escrows.GetByRef(ctx, txRef)
	if err != nil || escrow == nil {
		s.log.Warn("load paid escrow", "tx_ref", txRef, "err", err)
		return
	}
	gig, err := s.gigs.GetByID(ctx, escrow.GigID)
	if err != nil || gig == nil {
		s.log.Warn("load gig for mail", "gig_id", escrow.GigID, "err", err)
		return
	}
	user, err := s.users.GetByID(ctx, gig.RecruiterID)
	if err != nil || user == nil {
		s.log.Warn("load recruiter for mail", "recruiter_id", gig.RecruiterID, "err", err)
		return
	}
	body, err := notify.Render(notify.TemplateEscrowPaid, map[string]any{
		"Name":     user.Name,
		"Amount":   escrow.Amount.StringFixed(2),
		"Currency": s.cfg.PaymentCurrency,
		"GigTitle": gig.Title,
		"TxRef":    escrow.TxRef,
	})
	if err != nil {
		s.log.Error("render escrow mail", "err", err)
		return
	}
	if err := s.mailer.Send(ctx, []string{user.Email}, "Escrow deposit received", body); err != nil {
		s.log.Warn("send escrow mail", "recruiter_id", user.ID, "err", err)
	}
}
