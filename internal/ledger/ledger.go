// Package ledger owns per-user credit balances: lazy creation, atomic
// consumption, bounded refunds, idempotent plan changes and the daily reset.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"guru/internal/domain"
	"guru/internal/infra"
)

// Service wraps an EntitlementStore with validation, logging and metrics.
type Service struct {
	store  domain.EntitlementStore
	logger zerolog.Logger
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store domain.EntitlementStore, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "ledger").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is the client-facing view of an entitlement.
type Snapshot struct {
	Plan           domain.Plan `json:"plan"`
	PlanTitle      string      `json:"plan_title"`
	DailyLimit     int         `json:"daily_limit"`
	CreditsLeft    int         `json:"credits_left"`
	Unlimited      bool        `json:"unlimited"`
	ResetAt        time.Time   `json:"reset_at"`
	LowCredit      bool        `json:"low_credit"`
	RecommendedFor domain.Plan `json:"recommended_upgrade,omitempty"`
}

// GetOrCreate returns the entitlement, creating the free default on first sight.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	ent, err := s.store.Get(ctx, userID)
	if err == nil {
		return ent, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	ent, err = s.store.CreateDefault(ctx, userID, s.now())
	if errors.Is(err, domain.ErrAlreadyExists) {
		return s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Msg("entitlement created")
	return ent, nil
}

// Consume atomically takes amount credits. Unlimited plans always succeed and
// report domain.Unlimited.
func (s *Service) Consume(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 1 {
		return 0, fmt.Errorf("consume amount must be at least 1, got %d", amount)
	}
	ent, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	remaining, err := s.store.TryConsume(ctx, userID, amount, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrExhausted) {
			infra.CreditExhausted.Inc()
			s.logger.Debug().Str("user_id", userID).Int("remaining", remaining).Msg("credits exhausted")
		}
		return remaining, err
	}
	infra.CreditsConsumed.WithLabelValues(string(ent.Plan)).Add(float64(amount))
	return remaining, nil
}

// Restore returns amount credits, never exceeding the plan limit.
func (s *Service) Restore(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 1 {
		return 0, fmt.Errorf("restore amount must be at least 1, got %d", amount)
	}
	if err := validUser(userID); err != nil {
		return 0, err
	}
	remaining, err := s.store.Restore(ctx, userID, amount, s.now())
	if err != nil {
		return 0, err
	}
	infra.CreditsRefunded.Add(float64(amount))
	s.logger.Debug().Str("user_id", userID).Int("amount", amount).Int("remaining", remaining).Msg("credits restored")
	return remaining, nil
}

// ApplyPlanChange switches the plan once per key.
func (s *Service) ApplyPlanChange(ctx context.Context, userID string, plan domain.Plan, key string) (*domain.Entitlement, bool, error) {
	if !plan.Valid() {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, plan)
	}
	if strings.TrimSpace(key) == "" {
		return nil, false, errors.New("idempotency key is required")
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, false, err
	}
	ent, applied, err := s.store.ApplyPlanChange(ctx, userID, plan, key, s.now())
	if err != nil {
		return nil, false, err
	}
	ev := s.logger.Info()
	if !applied {
		ev = s.logger.Debug()
	}
	ev.Str("user_id", userID).Str("plan", string(plan)).Str("key", key).Bool("applied", applied).Msg("plan change")
	return ent, applied, nil
}

// ResetDaily refills every entitlement whose reset boundary has passed.
func (s *Service) ResetDaily(ctx context.Context) (int, error) {
	n, err := s.store.ResetDue(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("reset due entitlements: %w", err)
	}
	if n > 0 {
		infra.EntitlementsReset.Add(float64(n))
		s.logger.Info().Int("count", n).Msg("daily credits reset")
	}
	return n, nil
}

// RunScheduler calls ResetDaily every interval until ctx is cancelled.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.ResetDaily(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("reset scheduler")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Snapshot returns the view shown on the account page.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	ent, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(*ent), nil
}

// NewSnapshot builds the view model for an entitlement.
func NewSnapshot(ent domain.Entitlement) Snapshot {
	snap := Snapshot{
		Plan:        ent.Plan,
		PlanTitle:   ent.Plan.Title(),
		DailyLimit:  ent.DailyLimit(),
		CreditsLeft: ent.Remaining(),
		Unlimited:   ent.Unlimited(),
		ResetAt:     ent.ResetAt,
	}
	if !snap.Unlimited {
		snap.LowCredit = snap.DailyLimit > domain.LowCreditThreshold && ent.CreditsRemaining <= domain.LowCreditThreshold
		snap.RecommendedFor = domain.PlanGenius
		if ent.Plan == domain.PlanFree {
			snap.RecommendedFor = domain.PlanScholar
		}
	}
	return snap
}

func validUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: missing user id", domain.ErrUnauthorized)
	}
	return nil
}
