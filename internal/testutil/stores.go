// Package testutil holds in-memory stand-ins for the MySQL repositories and
// outbound collaborators, for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/campusgigs/internal/models"
)

// duplicateKey mimics the driver error for unique-key violations.
func duplicateKey(what string) error {
	return fmt.Errorf("insert %s: %w", what, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
}

// Store is an in-memory database shared by the fake repositories.
type Store struct {
	mu            sync.Mutex
	nextID        int64
	Users         map[int64]*models.User
	Plans         map[int64]*models.Plan
	Escrows       map[string]*models.Escrow
	Subscriptions []*models.Subscription
	Gigs          []*models.Gig
	Applications  map[int64]*models.Application
	Events        []models.WebhookEvent
	Locks         []int64

	// Now stamps rows the services leave unstamped.
	Now func() time.Time
	// Err, when set, is returned by every store call.
	Err error
}

func NewStore() *Store {
	return &Store{
		Users:        map[int64]*models.User{},
		Plans:        map[int64]*models.Plan{},
		Escrows:      map[string]*models.Escrow{},
		Applications: map[int64]*models.Application{},
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser seeds a user and returns it.
func (s *Store) AddUser(name string, role models.Role) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.id(), Name: name, Email: fmt.Sprintf("%s@example.com", name), Role: role, CreatedAt: s.Now()}
	s.Users[u.ID] = u
	return u
}

// AddPlan seeds a plan. A negative maxPosts seeds it unbounded.
func (s *Store) AddPlan(key string, price int64, maxPosts int) *models.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Plan{ID: s.id(), Key: key, Label: key, CreatedAt: s.Now(), UpdatedAt: s.Now()}
	p.Price = decimalFromInt(price)
	if maxPosts >= 0 {
		mp := maxPosts
		p.MaxPosts = &mp
	}
	s.Plans[p.ID] = p
	return p
}

// AddGig seeds a gig created at the given time.
func (s *Store) AddGig(recruiterID int64, createdAt time.Time) *models.Gig {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &models.Gig{ID: s.id(), RecruiterID: recruiterID, Title: "gig", Description: "seeded", Status: "open", CreatedAt: createdAt}
	s.Gigs = append(s.Gigs, g)
	return g
}

// AddApplication seeds an application on gig.
func (s *Store) AddApplication(gig *models.Gig, studentID int64, status string, amount int64) *models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &models.Application{ID: s.id(), GigID: gig.ID, StudentID: studentID, RecruiterID: gig.RecruiterID, Status: status, PaymentAmount: decimalFromInt(amount)}
	s.Applications[a.ID] = a
	return a
}

// AddSubscription seeds a subscription row as-is.
func (s *Store) AddSubscription(sub models.Subscription) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.id()
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}
	row := sub
	s.Subscriptions = append(s.Subscriptions, &row)
	return &row
}

// SubscriptionByRef returns a copy of the row with txRef, or nil.
func (s *Store) SubscriptionByRef(txRef string) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.Subscriptions {
		if sub.TxRef == txRef {
			cp := *sub
			return &cp
		}
	}
	return nil
}

// PlanStore implements the plan repository.
type PlanStore struct{ S *Store }

func (r PlanStore) List(ctx context.Context) ([]models.Plan, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	var out []models.Plan
	for _, p := range r.S.Plans {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r PlanStore) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	p, ok := r.S.Plans[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r PlanStore) GetByKey(ctx context.Context, key string) (*models.Plan, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	for _, p := range r.S.Plans {
		if p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r PlanStore) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	for _, p := range r.S.Plans {
		if p.Key == plan.Key {
			return nil, duplicateKey("plan")
		}
	}
	row := *plan
	row.ID = r.S.id()
	row.CreatedAt, row.UpdatedAt = r.S.Now(), r.S.Now()
	r.S.Plans[row.ID] = &row
	cp := row
	return &cp, nil
}

func (r PlanStore) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	for id, p := range r.S.Plans {
		if p.Key == plan.Key && id != plan.ID {
			return nil, duplicateKey("plan")
		}
	}
	existing, ok := r.S.Plans[plan.ID]
	if !ok {
		return nil, nil
	}
	row := *plan
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = r.S.Now()
	r.S.Plans[plan.ID] = &row
	cp := row
	return &cp, nil
}

func (r PlanStore) Delete(ctx context.Context, id int64) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return false, r.S.Err
	}
	if _, ok := r.S.Plans[id]; !ok {
		return false, nil
	}
	delete(r.S.Plans, id)
	return true, nil
}

// EscrowStore implements the escrow repository.
type EscrowStore struct{ S *Store }

func (r EscrowStore) Create(ctx context.Context, escrow *models.Escrow) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return r.S.Err
	}
	if _, ok := r.S.Escrows[escrow.TxRef]; ok {
		return duplicateKey("escrow")
	}
	escrow.ID = r.S.id()
	row := *escrow
	r.S.Escrows[escrow.TxRef] = &row
	return nil
}

func (r EscrowStore) MarkPaid(ctx context.Context, txRef string, transID *string) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return false, r.S.Err
	}
	e, ok := r.S.Escrows[txRef]
	if !ok || e.Paid {
		return false, nil
	}
	now := r.S.Now()
	e.Paid = true
	e.PaidAt = &now
	if transID != nil && *transID != "" {
		id := *transID
		e.TransID = &id
	}
	return true, nil
}

func (r EscrowStore) GetByRef(ctx context.Context, txRef string) (*models.Escrow, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	e, ok := r.S.Escrows[txRef]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r EscrowStore) LatestForGig(ctx context.Context, gigID int64) (*models.Escrow, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	var latest *models.Escrow
	for _, e := range r.S.Escrows {
		if e.GigID != gigID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) || (e.CreatedAt.Equal(latest.CreatedAt) && e.ID > latest.ID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// SubscriptionStore implements the subscription repository.
type SubscriptionStore struct{ S *Store }

func (r SubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return r.S.Err
	}
	for _, existing := range r.S.Subscriptions {
		if existing.TxRef == sub.TxRef {
			return duplicateKey("subscription")
		}
	}
	sub.ID = r.S.id()
	sub.UpdatedAt = sub.CreatedAt
	row := *sub
	r.S.Subscriptions = append(r.S.Subscriptions, &row)
	return nil
}

func (r SubscriptionStore) latest(recruiterID int64, match func(*models.Subscription) bool) *models.Subscription {
	var latest *models.Subscription
	for _, s := range r.S.Subscriptions {
		if s.RecruiterID != recruiterID || !match(s) {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) || (s.CreatedAt.Equal(latest.CreatedAt) && s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (r SubscriptionStore) Current(ctx context.Context, recruiterID int64) (*models.Subscription, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	return r.latest(recruiterID, func(*models.Subscription) bool { return true }), nil
}

func (r SubscriptionStore) LatestFree(ctx context.Context, recruiterID int64) (*models.Subscription, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	return r.latest(recruiterID, func(s *models.Subscription) bool { return s.Plan == models.FreePlanKey }), nil
}

func (r SubscriptionStore) GetByTxRef(ctx context.Context, txRef string) (*models.Subscription, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	for _, s := range r.S.Subscriptions {
		if s.TxRef == txRef {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r SubscriptionStore) TransitionByTxRef(ctx context.Context, txRef string, to models.SubscriptionStatus, from ...models.SubscriptionStatus) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return false, r.S.Err
	}
	if len(from) == 0 {
		return false, fmt.Errorf("transition subscription: no source states")
	}
	for _, s := range r.S.Subscriptions {
		if s.TxRef != txRef {
			continue
		}
		for _, st := range from {
			if s.Status == st {
				s.Status = to
				s.UpdatedAt = r.S.Now()
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (r SubscriptionStore) SetStatus(ctx context.Context, id int64, status models.SubscriptionStatus) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return false, r.S.Err
	}
	for _, s := range r.S.Subscriptions {
		if s.ID == id {
			s.Status = status
			s.UpdatedAt = r.S.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r SubscriptionStore) ListAll(ctx context.Context) ([]models.Subscription, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	var out []models.Subscription
	for _, s := range r.S.Subscriptions {
		row := *s
		if u, ok := r.S.Users[s.RecruiterID]; ok {
			row.RecruiterName = u.Name
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GigStore implements the gig and application repository.
type GigStore struct{ S *Store }

func (r GigStore) Create(ctx context.Context, gig *models.Gig) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return r.S.Err
	}
	gig.ID = r.S.id()
	row := *gig
	r.S.Gigs = append(r.S.Gigs, &row)
	return nil
}

func (r GigStore) GetByID(ctx context.Context, id int64) (*models.Gig, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	for _, g := range r.S.Gigs {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (r GigStore) CountCreatedBetween(ctx context.Context, recruiterID int64, start, end time.Time) (int, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return 0, r.S.Err
	}
	count := 0
	for _, g := range r.S.Gigs {
		if g.RecruiterID == recruiterID && !g.CreatedAt.Before(start) && !g.CreatedAt.After(end) {
			count++
		}
	}
	return count, nil
}

func (r GigStore) CountCompletedForRecruiter(ctx context.Context, recruiterID int64) (int, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return 0, r.S.Err
	}
	count := 0
	for _, a := range r.S.Applications {
		if a.RecruiterID == recruiterID && a.Status == "Completed" {
			count++
		}
	}
	return count, nil
}

func (r GigStore) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	a, ok := r.S.Applications[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// UserStore implements the user repository. LockForUpdate records the id.
type UserStore struct{ S *Store }

func (r UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	u, ok := r.S.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r UserStore) LockForUpdate(ctx context.Context, id int64) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return false, r.S.Err
	}
	if _, ok := r.S.Users[id]; !ok {
		return false, nil
	}
	r.S.Locks = append(r.S.Locks, id)
	return true, nil
}

// WebhookEventStore implements the webhook event log.
type WebhookEventStore struct{ S *Store }

func (r WebhookEventStore) Record(ctx context.Context, event *models.WebhookEvent) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return r.S.Err
	}
	event.ID = r.S.id()
	r.S.Events = append(r.S.Events, *event)
	return nil
}

func (r WebhookEventStore) ListByTxRef(ctx context.Context, txRef string) ([]models.WebhookEvent, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if r.S.Err != nil {
		return nil, r.S.Err
	}
	var out []models.WebhookEvent
	for _, e := range r.S.Events {
		if e.TxRef == txRef {
			out = append(out, e)
		}
	}
	return out, nil
}

// TxRunner runs fn directly and counts how often a transaction was opened.
type TxRunner struct {
	mu    sync.Mutex
	Calls int
}

func (t *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()
	return fn(ctx)
}
