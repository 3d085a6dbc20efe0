package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// FreePlanKey is the plan every recruiter falls back to.
const FreePlanKey = "free"

type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodMobile PaymentMethod = "mobile"
)

type WebhookKind string

const (
	WebhookKindSubscription WebhookKind = "subscription"
	WebhookKindEscrow       WebhookKind = "escrow"
)

type WebhookOutcome string

const (
	WebhookApplied          WebhookOutcome = "applied"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookUnknownRef       WebhookOutcome = "unknown_ref"
	WebhookInvalidSignature WebhookOutcome = "invalid_signature"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Plan is a pricing/quota tier. A nil MaxPosts means unbounded.
type Plan struct {
	ID        int64           `json:"id"`
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Price     decimal.Decimal `json:"price"`
	MaxPosts  *int            `json:"max_posts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p Plan) Unbounded() bool {
	return p.MaxPosts == nil
}

type Escrow struct {
	ID            int64           `json:"id"`
	GigID         int64           `json:"gig_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TxRef         string          `json:"tx_ref"`
	TransID       *string         `json:"trans_id"`
	Phone         *string         `json:"phone"`
	Amount        decimal.Decimal `json:"amount"`
	Paid          bool            `json:"paid"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at"`
}

type Subscription struct {
	ID            int64              `json:"id"`
	RecruiterID   int64              `json:"recruiter_id"`
	Plan          string             `json:"plan"`
	TxRef         string             `json:"tx_ref"`
	Status        SubscriptionStatus `json:"status"`
	PeriodStart   time.Time          `json:"current_period_start"`
	PeriodEnd     time.Time          `json:"current_period_end"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	RecruiterName string             `json:"recruiter_name,omitempty"`
}

type Gig struct {
	ID            int64            `json:"id"`
	RecruiterID   int64            `json:"recruiter_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Application is the slice of a gig application needed for fee computation.
type Application struct {
	ID            int64           `json:"id"`
	GigID         int64           `json:"gig_id"`
	StudentID     int64           `json:"student_id"`
	RecruiterID   int64           `json:"recruiter_id"`
	Status        string          `json:"status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

// WebhookEvent is one append-only entry of the provider callback log.
type WebhookEvent struct {
	ID             int64          `json:"id"`
	Kind           WebhookKind    `json:"kind"`
	TxRef          string         `json:"tx_ref"`
	Status         string         `json:"status"`
	Payload        string         `json:"payload"`
	SignatureValid bool           `json:"signature_valid"`
	Outcome        WebhookOutcome `json:"outcome"`
	CreatedAt      time.Time      `json:"created_at"`
}
