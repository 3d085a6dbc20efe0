package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/service"
)

type planRequest struct {
	Key      string          `json:"key" validate:"required"`
	Label    string          `json:"label" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	MaxPosts *int            `json:"max_posts" validate:"omitempty,gte=0"`
}

// planUpdateRequest keeps max_posts raw so an explicit null can be told
// apart from an omitted field.
type planUpdateRequest struct {
	Key      *string          `json:"key"`
	Label    *string          `json:"label"`
	Price    *decimal.Decimal `json:"price"`
	MaxPosts json.RawMessage  `json:"max_posts"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.plans.Create(r.Context(), service.CreatePlanInput{
		Key:      req.Key,
		Label:    req.Label,
		Price:    req.Price,
		MaxPosts: req.MaxPosts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.plans.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req planUpdateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	input := service.UpdatePlanInput{Key: req.Key, Label: req.Label, Price: req.Price}
	switch raw := string(req.MaxPosts); raw {
	case "":
	case "null":
		input.ClearMaxPosts = true
	default:
		var maxPosts int
		if err := json.Unmarshal(req.MaxPosts, &maxPosts); err != nil {
			s.writeError(w, r, service.ValidationError("max_posts must be an integer or null"))
			return
		}
		input.MaxPosts = &maxPosts
	}
	plan, err := s.plans.Update(r.Context(), id, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.plans.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, subs)
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.subs.Cancel(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.subs.Reactivate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleWebhookEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.subs.Events(r.Context(), r.URL.Query().Get("tx_ref"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}
