package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guru/internal/domain"
)

// Store keeps entitlements and payment records in process. Each user and each
// payment has its own lock; when both are held the payment lock is taken first.
// Store itself is the entitlement store; Payments returns the payment view.
type Store struct {
	mu           sync.RWMutex
	entitlements map[string]*entitlementEntry
	payments     map[string]*paymentEntry
}

type entitlementEntry struct {
	mu      sync.Mutex
	ent     domain.Entitlement
	applied map[string]struct{}
}

type paymentEntry struct {
	mu          sync.Mutex
	p           domain.Payment
	claimedTill time.Time
}

func NewStore() *Store {
	return &Store{
		entitlements: make(map[string]*entitlementEntry),
		payments:     make(map[string]*paymentEntry),
	}
}

var _ domain.EntitlementStore = (*Store)(nil)

func (s *Store) entitlement(userID string) (*entitlementEntry, error) {
	s.mu.RLock()
	e, ok := s.entitlements[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entitlement %s: %w", userID, domain.ErrNotFound)
	}
	return e, nil
}

func (s *Store) payment(id string) (*paymentEntry, error) {
	s.mu.RLock()
	e, ok := s.payments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	e, err := s.entitlement(userID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.ent
	return &out, nil
}

func (s *Store) CreateDefault(ctx context.Context, userID string, now time.Time) (*domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entitlements[userID]; ok {
		return nil, fmt.Errorf("entitlement %s: %w", userID, domain.ErrAlreadyExists)
	}
	ent := domain.NewEntitlement(userID, now)
	s.entitlements[userID] = &entitlementEntry{ent: ent, applied: make(map[string]struct{})}
	return &ent, nil
}

func (s *Store) ApplyPlanChange(ctx context.Context, userID string, plan domain.Plan, key string, now time.Time) (*domain.Entitlement, bool, error) {
	e, err := s.entitlement(userID)
	if err != nil {
		return nil, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	applied := e.applyLocked(plan, key, now)
	out := e.ent
	return &out, applied, nil
}

func (e *entitlementEntry) applyLocked(plan domain.Plan, key string, now time.Time) bool {
	if _, seen := e.applied[key]; seen {
		return false
	}
	e.ent.ApplyPlan(plan, now)
	e.applied[key] = struct{}{}
	return true
}

func (s *Store) TryConsume(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	e, err := s.entitlement(userID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ent.Consume(amount, now)
}

func (s *Store) Restore(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	e, err := s.entitlement(userID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ent.Restore(amount, now)
}

func (s *Store) ResetDue(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	entries := make([]*entitlementEntry, 0, len(s.entitlements))
	for _, e := range s.entitlements {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e.mu.Lock()
		if e.ent.DueForReset(now) {
			e.ent.Refill(now)
			n++
		}
		e.mu.Unlock()
	}
	return n, nil
}
