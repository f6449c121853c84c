package domain

import (
	"fmt"
	"time"
)

// ResetPeriod is the interval between quota refills.
const ResetPeriod = 24 * time.Hour

// Entitlement is the per-user record of plan and remaining daily credits.
type Entitlement struct {
	UserID           string
	Plan             Plan
	CreditsRemaining int
	ResetAt          time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewEntitlement builds the default free-plan entitlement for a newly seen user.
func NewEntitlement(userID string, now time.Time) Entitlement {
	now = now.UTC()
	return Entitlement{
		UserID:           userID,
		Plan:             PlanFree,
		CreditsRemaining: PlanFree.DailyLimit(),
		ResetAt:          NextReset(now),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NextReset returns the first UTC midnight strictly after now.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(ResetPeriod)
}

// DailyLimit returns the quota of the current plan.
func (e Entitlement) DailyLimit() int {
	return e.Plan.DailyLimit()
}

// Unlimited reports whether the entitlement is never metered.
func (e Entitlement) Unlimited() bool {
	return e.Plan.IsUnlimited()
}

// Remaining returns the balance shown to clients; Unlimited for unmetered plans.
func (e Entitlement) Remaining() int {
	if e.Unlimited() {
		return Unlimited
	}
	return e.CreditsRemaining
}

// Consume decrements the balance by amount. It leaves the entitlement untouched
// and returns ErrExhausted when the balance is insufficient.
func (e *Entitlement) Consume(amount int, now time.Time) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	if e.Unlimited() {
		return Unlimited, nil
	}
	if e.CreditsRemaining < amount {
		return e.CreditsRemaining, ErrExhausted
	}
	e.CreditsRemaining -= amount
	e.touch(now)
	return e.CreditsRemaining, nil
}

// Restore adds amount back to the current balance, capped at the daily limit.
func (e *Entitlement) Restore(amount int, now time.Time) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("restore amount must be positive, got %d", amount)
	}
	if e.Unlimited() {
		return Unlimited, nil
	}
	next := e.CreditsRemaining + amount
	if limit := e.DailyLimit(); next > limit {
		next = limit
	}
	if next != e.CreditsRemaining {
		e.CreditsRemaining = next
		e.touch(now)
	}
	return e.CreditsRemaining, nil
}

// ApplyPlan switches the plan and refills the balance to the new limit.
func (e *Entitlement) ApplyPlan(plan Plan, now time.Time) {
	e.Plan = plan
	e.CreditsRemaining = fullBalance(plan)
	e.touch(now)
}

// Refill restores the full quota and advances ResetAt by exactly one period.
func (e *Entitlement) Refill(now time.Time) {
	e.CreditsRemaining = fullBalance(e.Plan)
	e.ResetAt = e.ResetAt.Add(ResetPeriod)
	e.touch(now)
}

// DueForReset reports whether the refill boundary has passed.
func (e Entitlement) DueForReset(now time.Time) bool {
	return !e.ResetAt.After(now)
}

func (e *Entitlement) touch(now time.Time) {
	e.Version++
	e.UpdatedAt = now.UTC()
}

func fullBalance(p Plan) int {
	if p.IsUnlimited() {
		return 0
	}
	return p.DailyLimit()
}
