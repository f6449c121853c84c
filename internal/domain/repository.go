package domain

import (
	"context"
	"time"
)

// EntitlementStore persists per-user entitlements. Every mutation is serialized
// per user so concurrent consumes, restores and resets stay linearizable.
type EntitlementStore interface {
	Get(ctx context.Context, userID string) (*Entitlement, error)
	CreateDefault(ctx context.Context, userID string, now time.Time) (*Entitlement, error)
	// ApplyPlanChange sets the plan and refills credits. A key that was already
	// applied returns the current state with applied=false.
	ApplyPlanChange(ctx context.Context, userID string, plan Plan, key string, now time.Time) (ent *Entitlement, applied bool, err error)
	TryConsume(ctx context.Context, userID string, amount int, now time.Time) (int, error)
	Restore(ctx context.Context, userID string, amount int, now time.Time) (int, error)
	ResetDue(ctx context.Context, now time.Time) (int, error)
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	UserID string
	Status PaymentStatus
	Limit  int
}

// PaymentMutation edits a locked payment record. Returning an error aborts the write.
type PaymentMutation func(p *Payment) error

// PaymentRepository persists payment records. Mutate and Approve run the
// mutation against a locked copy and persist it only if the mutation succeeds.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]Payment, error)
	Mutate(ctx context.Context, id string, fn PaymentMutation) (*Payment, error)
	// Approve runs fn and applies the requested plan to the owner's entitlement
	// with the payment id as idempotency key, committing both or neither.
	Approve(ctx context.Context, id string, fn PaymentMutation, now time.Time) (*Payment, *Entitlement, error)
	// ClaimForVerification leases pending records that carry supporting text
	// and have not been verified yet.
	ClaimForVerification(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]Payment, error)
}
