package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"guru/internal/domain"
)

// Payments is the payment repository view over a Store.
type Payments struct {
	s *Store
}

var _ domain.PaymentRepository = (*Payments)(nil)

func (s *Store) Payments() *Payments {
	return &Payments{s: s}
}

func (r *Payments) Create(ctx context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; ok {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	r.s.payments[p.ID] = &paymentEntry{p: clonePayment(*p)}
	return nil
}

func (r *Payments) Get(ctx context.Context, id string) (*domain.Payment, error) {
	e, err := r.s.payment(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := clonePayment(e.p)
	return &out, nil
}

func (r *Payments) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	r.s.mu.RLock()
	entries := make([]*paymentEntry, 0, len(r.s.payments))
	for _, e := range r.s.payments {
		entries = append(entries, e)
	}
	r.s.mu.RUnlock()

	out := make([]domain.Payment, 0)
	for _, e := range entries {
		e.mu.Lock()
		p := clonePayment(e.p)
		e.mu.Unlock()
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Payments) Mutate(ctx context.Context, id string, fn domain.PaymentMutation) (*domain.Payment, error) {
	e, err := r.s.payment(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	work := clonePayment(e.p)
	if err := fn(&work); err != nil {
		return nil, err
	}
	e.p = work
	out := clonePayment(work)
	return &out, nil
}

func (r *Payments) Approve(ctx context.Context, id string, fn domain.PaymentMutation, now time.Time) (*domain.Payment, *domain.Entitlement, error) {
	pe, err := r.s.payment(id)
	if err != nil {
		return nil, nil, err
	}
	pe.mu.Lock()
	defer pe.mu.Unlock()

	work := clonePayment(pe.p)
	if err := fn(&work); err != nil {
		return nil, nil, err
	}
	ee, err := r.s.entitlement(work.UserID)
	if err != nil {
		return nil, nil, err
	}
	ee.mu.Lock()
	ee.applyLocked(work.RequestedPlan, work.ID, now)
	ent := ee.ent
	ee.mu.Unlock()

	pe.p = work
	out := clonePayment(work)
	return &out, &ent, nil
}

func (r *Payments) ClaimForVerification(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]domain.Payment, error) {
	candidates, err := r.List(ctx, domain.PaymentFilter{Status: domain.PaymentPending})
	if err != nil {
		return nil, err
	}
	// oldest first
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })

	out := make([]domain.Payment, 0, limit)
	for _, c := range candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		e, err := r.s.payment(c.ID)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if e.p.Status == domain.PaymentPending && e.p.SupportingText != "" && e.p.VerifiedAt == nil && !now.Before(e.claimedTill) {
			e.claimedTill = now.Add(lease)
			out = append(out, clonePayment(e.p))
		}
		e.mu.Unlock()
	}
	return out, nil
}

func clonePayment(p domain.Payment) domain.Payment {
	if p.VerificationConfidence != nil {
		c := *p.VerificationConfidence
		p.VerificationConfidence = &c
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		p.VerifiedAt = &t
	}
	if p.DecidedAt != nil {
		t := *p.DecidedAt
		p.DecidedAt = &t
	}
	return p
}
