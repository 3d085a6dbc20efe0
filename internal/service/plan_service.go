package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

var planKeyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// PlanService is the plan registry. Reads always hit the store so admin
// edits apply to the next quota check.
type PlanService struct {
	repo         PlanStore
	freeMaxPosts int
}

type CreatePlanInput struct {
	Key      string
	Label    string
	Price    decimal.Decimal
	MaxPosts *int
}

type UpdatePlanInput struct {
	Key      *string
	Label    *string
	Price    *decimal.Decimal
	MaxPosts *int
	// ClearMaxPosts makes the plan unbounded.
	ClearMaxPosts bool
}

// NewPlanService wires the registry. freeMaxPosts seeds the free plan; zero
// or less seeds it unbounded.
func NewPlanService(repo PlanStore, freeMaxPosts int) *PlanService {
	return &PlanService{repo: repo, freeMaxPosts: freeMaxPosts}
}

// EnsureFreePlan inserts the free plan when the registry lacks it.
func (s *PlanService) EnsureFreePlan(ctx context.Context) error {
	plan, err := s.repo.GetByKey(ctx, models.FreePlanKey)
	if err != nil {
		return err
	}
	if plan != nil {
		return nil
	}
	free := s.freePlan()
	if _, err := s.repo.Create(ctx, &free); err != nil {
		if database.IsDuplicateKey(err) {
			return nil
		}
		return fmt.Errorf("create free plan: %w", err)
	}
	return nil
}

// freePlan is the configured free tier. A zero limit means unbounded.
func (s *PlanService) freePlan() models.Plan {
	free := models.Plan{
		Key:   models.FreePlanKey,
		Label: "Free",
		Price: decimal.Zero,
	}
	if s.freeMaxPosts > 0 {
		maxPosts := s.freeMaxPosts
		free.MaxPosts = &maxPosts
	}
	return free
}

// LoadPlans returns the registry keyed by plan key. The free plan is always
// present: when no row exists it is synthesized from the configured limit.
func (s *PlanService) LoadPlans(ctx context.Context) (map[string]models.Plan, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Plan, len(plans)+1)
	for _, p := range plans {
		out[p.Key] = p
	}
	if _, ok := out[models.FreePlanKey]; !ok {
		out[models.FreePlanKey] = s.freePlan()
	}
	return out, nil
}

func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	return plans, nil
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	plan := models.Plan{
		Key:      strings.TrimSpace(input.Key),
		Label:    strings.TrimSpace(input.Label),
		Price:    input.Price,
		MaxPosts: input.MaxPosts,
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, &plan)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ConflictError("plan key %q already exists", plan.Key)
		}
		return nil, err
	}
	return created, nil
}

func (s *PlanService) Update(ctx context.Context, id int64, input UpdatePlanInput) (*models.Plan, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, NotFoundError("plan not found")
	}
	if input.Key != nil {
		existing.Key = strings.TrimSpace(*input.Key)
	}
	if input.Label != nil {
		existing.Label = strings.TrimSpace(*input.Label)
	}
	if input.Price != nil {
		existing.Price = *input.Price
	}
	if input.ClearMaxPosts {
		existing.MaxPosts = nil
	} else if input.MaxPosts != nil {
		maxPosts := *input.MaxPosts
		existing.MaxPosts = &maxPosts
	}
	if err := validatePlan(*existing); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ConflictError("plan key %q already exists", existing.Key)
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a plan. Subscriptions that still name its key stop resolving.
func (s *PlanService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("plan not found")
	}
	return nil
}

func (s *PlanService) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, NotFoundError("plan not found")
	}
	return plan, nil
}

func validatePlan(p models.Plan) error {
	if !planKeyPattern.MatchString(p.Key) {
		return ValidationError("plan key must match [a-z0-9_]+")
	}
	if p.Label == "" {
		return ValidationError("label is required")
	}
	if p.Price.IsNegative() {
		return ValidationError("price must not be negative")
	}
	if p.MaxPosts != nil && *p.MaxPosts < 0 {
		return ValidationError("max_posts must not be negative")
	}
	return nil
}
