package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/paychangu"
	"github.com/digkill/campusgigs/internal/service"
)

type escrowRequest struct {
	GigID         int64           `json:"gigId" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=card mobile"`
	Phone         string          `json:"phone" validate:"required_if=PaymentMethod mobile"`
}

type releaseRequest struct {
	TxRef string `json:"tx_ref" validate:"required"`
}

type subscribeRequest struct {
	Plan string `json:"plan" validate:"required"`
}

type gigRequest struct {
	Title         string           `json:"title" validate:"required,max=255"`
	Description   string           `json:"description" validate:"required"`
	PaymentAmount *decimal.Decimal `json:"paymentAmount"`
}

func (s *Server) handleInitiateEscrow(w http.ResponseWriter, r *http.Request) {
	var req escrowRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := ActorFrom(r.Context())
	res, err := s.escrow.InitiateDeposit(r.Context(), actor, service.DepositInput{
		GigID:         req.GigID,
		Amount:        req.Amount,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Phone:         req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := ActorFrom(r.Context())
	res, err := s.escrow.Release(r.Context(), actor, req.TxRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	escrow, err := s.escrow.GetByRef(r.Context(), chi.URLParam(r, "tx_ref"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, escrow)
}

func (s *Server) handleEscrowWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, r, service.ValidationError("read body error"))
		return
	}
	ack, err := s.escrow.HandleWebhook(r.Context(), body, r.Header.Get(paychangu.SignatureHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := ActorFrom(r.Context())
	res, err := s.subs.Subscribe(r.Context(), actor.UserID, strings.ToLower(req.Plan))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Free != nil {
		s.writeJSON(w, http.StatusOK, res.Free)
		return
	}
	s.writeJSON(w, http.StatusOK, res.Checkout)
}

func (s *Server) handleSubscriptionWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, r, service.ValidationError("read body error"))
		return
	}
	ack, err := s.subs.HandleWebhook(r.Context(), body, r.Header.Get(paychangu.SignatureHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	status, err := s.subs.CurrentStatus(r.Context(), actor.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	var req gigRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := ActorFrom(r.Context())
	gig, err := s.gigs.CreateGig(r.Context(), actor, service.CreateGigInput{
		Title:         req.Title,
		Description:   req.Description,
		PaymentAmount: req.PaymentAmount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, gig)
}

func (s *Server) handleGigQuota(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	decision, err := s.gigs.Quota(r.Context(), actor.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleApplicationFees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := ActorFrom(r.Context())
	fees, err := s.applications.Fees(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fees)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}
