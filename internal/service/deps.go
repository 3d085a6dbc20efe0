package service

import (
	"context"
	"time"

	"github.com/digkill/campusgigs/internal/models"
	"github.com/digkill/campusgigs/internal/paychangu"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID int64
	Role   models.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type PlanStore interface {
	List(ctx context.Context) ([]models.Plan, error)
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	GetByKey(ctx context.Context, key string) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type EscrowStore interface {
	Create(ctx context.Context, escrow *models.Escrow) error
	MarkPaid(ctx context.Context, txRef string, transID *string) (bool, error)
	GetByRef(ctx context.Context, txRef string) (*models.Escrow, error)
	LatestForGig(ctx context.Context, gigID int64) (*models.Escrow, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Current(ctx context.Context, recruiterID int64) (*models.Subscription, error)
	LatestFree(ctx context.Context, recruiterID int64) (*models.Subscription, error)
	GetByTxRef(ctx context.Context, txRef string) (*models.Subscription, error)
	TransitionByTxRef(ctx context.Context, txRef string, to models.SubscriptionStatus, from ...models.SubscriptionStatus) (bool, error)
	SetStatus(ctx context.Context, id int64, status models.SubscriptionStatus) (bool, error)
	ListAll(ctx context.Context) ([]models.Subscription, error)
}

type GigStore interface {
	Create(ctx context.Context, gig *models.Gig) error
	GetByID(ctx context.Context, id int64) (*models.Gig, error)
	CountCreatedBetween(ctx context.Context, recruiterID int64, start, end time.Time) (int, error)
	CountCompletedForRecruiter(ctx context.Context, recruiterID int64) (int, error)
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	LockForUpdate(ctx context.Context, id int64) (bool, error)
}

type WebhookEventStore interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
	ListByTxRef(ctx context.Context, txRef string) ([]models.WebhookEvent, error)
}

// TxRunner scopes fn to one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	InitiateCheckout(ctx context.Context, req paychangu.CheckoutRequest) (string, error)
}

// Archiver keeps a copy of raw webhook payloads.
type Archiver interface {
	Archive(ctx context.Context, kind string, body []byte) (string, error)
}

// CheckoutResult is returned when a payer must be redirected to the provider.
type CheckoutResult struct {
	PaymentPageURL string `json:"paymentPageUrl"`
	TxRef          string `json:"tx_ref"`
}
