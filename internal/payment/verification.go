package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"guru/internal/domain"
	"guru/internal/infra"
)

// RunVerification runs the configured automated verifier.
func (m *Manager) RunVerification(ctx context.Context, id string) (*domain.Payment, error) {
	if m.verifier == nil {
		return nil, fmt.Errorf("%w: no verifier configured", domain.ErrVerifierUnavailable)
	}
	return m.RunVerificationWith(ctx, id, m.verifier)
}

// RunVerificationWith judges the record with v and persists the verdict. The
// verifier runs outside the record lock; the state is re-checked on write.
func (m *Manager) RunVerificationWith(ctx context.Context, id string, v domain.Verifier) (*domain.Payment, error) {
	current, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: payment %s is already %s", domain.ErrInvalidState, id, current.Status)
	}

	verdict, err := v.Verify(ctx, domain.VerifyRequest{
		PaymentID:      current.ID,
		SlipReference:  current.SlipReference,
		SupportingText: current.SupportingText,
		Amount:         current.Amount,
		RequestedPlan:  current.RequestedPlan,
	})
	if errors.Is(err, domain.ErrMissingEvidence) {
		infra.Verifications.WithLabelValues(v.Name(), "no_evidence").Inc()
		return nil, fmt.Errorf("payment %s: %w", id, err)
	}
	if err != nil {
		infra.Verifications.WithLabelValues(v.Name(), "unavailable").Inc()
		m.logger.Warn().Err(err).Str("payment_id", id).Str("verifier", v.Name()).Msg("verification failed")
		if errors.Is(err, domain.ErrVerifierUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}

	updated, err := m.repo.Mutate(ctx, id, func(p *domain.Payment) error {
		return p.RecordVerdict(verdict, v.Name(), m.now())
	})
	if err != nil {
		return nil, err
	}

	outcome := "no_match"
	if verdict.IsMatch {
		outcome = "match"
	}
	infra.Verifications.WithLabelValues(v.Name(), outcome).Inc()
	if updated.Status != current.Status {
		infra.Payments.WithLabelValues(string(updated.Status)).Inc()
	}
	m.logger.Info().
		Str("payment_id", id).
		Str("verifier", v.Name()).
		Bool("is_match", verdict.IsMatch).
		Int("confidence", verdict.ClampedConfidence()).
		Str("status", string(updated.Status)).
		Msg("verification recorded")
	return updated, nil
}

// RetryPolicy bounds VerifyWithRetry.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used by the worker.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 10 * time.Second}
}

// VerifyWithRetry retries RunVerification while the verifier is unavailable.
func (m *Manager) VerifyWithRetry(ctx context.Context, id string, policy RetryPolicy) (*domain.Payment, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	tries := policy.MaxTries
	if tries == 0 {
		tries = 1
	}
	op := func() (*domain.Payment, error) {
		p, err := m.RunVerification(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrVerifierUnavailable) {
			return nil, backoff.Permanent(err)
		}
		return p, err
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// Decide applies an operator decision. Approval grants the plan and marks the
// record approved in one atomic step.
func (m *Manager) Decide(ctx context.Context, id string, decision domain.Decision, operatorID string) (*domain.Payment, error) {
	now := m.now()
	mutate := func(p *domain.Payment) error {
		return p.Decide(decision, operatorID, now)
	}

	var (
		p   *domain.Payment
		ent *domain.Entitlement
		err error
	)
	switch decision {
	case domain.DecisionApprove:
		p, ent, err = m.repo.Approve(ctx, id, mutate, now)
	case domain.DecisionReject:
		p, err = m.repo.Mutate(ctx, id, mutate)
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			m.logger.Warn().Err(err).Str("payment_id", id).Str("operator_id", operatorID).Msg("decision refused")
		}
		return nil, err
	}

	infra.Payments.WithLabelValues(string(p.Status)).Inc()
	ev := m.logger.Info().
		Str("payment_id", id).
		Str("user_id", p.UserID).
		Str("operator_id", operatorID).
		Str("status", string(p.Status))
	if ent != nil {
		ev = ev.Str("plan", string(ent.Plan)).Int("credits", ent.Remaining())
	}
	ev.Msg("payment decided")
	return p, nil
}

// ProcessPending claims unverified records and verifies each with retries.
// It returns how many records were verified.
func (m *Manager) ProcessPending(ctx context.Context, batch int, policy RetryPolicy) (int, error) {
	if m.verifier == nil {
		return 0, nil
	}
	if batch <= 0 {
		batch = 10
	}
	lease := 2 * time.Minute
	claimed, err := m.repo.ClaimForVerification(ctx, batch, lease, m.now())
	if err != nil {
		return 0, fmt.Errorf("claim payments: %w", err)
	}
	done := 0
	for _, p := range claimed {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := m.VerifyWithRetry(ctx, p.ID, policy); err != nil {
			m.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("automated verification skipped")
			continue
		}
		done++
	}
	return done, nil
}

// RunWorker polls for pending records until ctx is cancelled.
func (m *Manager) RunWorker(ctx context.Context, interval time.Duration, batch int, policy RetryPolicy) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := m.ProcessPending(ctx, batch, policy); err != nil && ctx.Err() == nil {
			m.logger.Error().Err(err).Msg("verification worker")
		} else if n > 0 {
			m.logger.Info().Int("count", n).Msg("payments verified")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
