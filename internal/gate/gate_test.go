package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guru/internal/adapter/memory"
	"guru/internal/domain"
	"guru/internal/ledger"
)

type providerFunc func(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error)

type countingProvider struct {
	calls atomic.Int32
	fn    providerFunc
}

func (p *countingProvider) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	p.calls.Add(1)
	return p.fn(ctx, req)
}

func answering(text string) *countingProvider {
	return &countingProvider{fn: func(_ context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
		return domain.AnswerResult{Answer: text, SessionID: "sess-" + req.UserID, Status: domain.AnswerStatusSuccess}, nil
	}}
}

func newGate(t *testing.T, p domain.AnswerProvider, timeout time.Duration) (*Gate, *ledger.Service) {
	t.Helper()
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	svc := ledger.NewService(memory.NewStore(), zerolog.Nop(), ledger.WithClock(func() time.Time { return now }))
	g := New(Config{Ledger: svc, Provider: p, Timeout: timeout, Logger: zerolog.Nop(), Now: func() time.Time { return now }})
	return g, svc
}

func remaining(t *testing.T, svc *ledger.Service, userID string) int {
	t.Helper()
	ent, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	return ent.CreditsRemaining
}

func TestAskFreeQuotaThenNoCredits(t *testing.T) {
	p := answering("photosynthesis uses light")
	g, svc := newGate(t, p, time.Second)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		resp, err := g.Ask(ctx, ChatRequest{UserID: "u1", Message: "what is photosynthesis?", Medium: "english"})
		require.NoError(t, err)
		assert.Equal(t, domain.AnswerStatusSuccess, resp.Status)
		assert.Equal(t, want, resp.CreditsLeft)
		assert.Equal(t, "sess-u1", resp.SessionID)
	}

	resp, err := g.Ask(ctx, ChatRequest{UserID: "u1", Message: "one more", Medium: "sinhala"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusNoCredits, resp.Status)
	assert.Equal(t, NoCreditsMessage(domain.MediumSinhala), resp.Answer)
	assert.Equal(t, 0, resp.CreditsLeft)
	assert.EqualValues(t, 3, p.calls.Load(), "provider must not be called once exhausted")
	assert.Equal(t, 0, remaining(t, svc, "u1"))
}

func TestAskProviderFailureRefunds(t *testing.T) {
	p := &countingProvider{fn: func(context.Context, domain.AnswerRequest) (domain.AnswerResult, error) {
		return domain.AnswerResult{}, errors.New("upstream 500")
	}}
	g, svc := newGate(t, p, time.Second)

	resp, err := g.Ask(context.Background(), ChatRequest{UserID: "u2", Message: "hi"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, domain.AnswerStatusError, resp.Status)
	assert.Equal(t, FailureMessage(""), resp.Answer)
	assert.Equal(t, 3, resp.CreditsLeft)
	assert.Equal(t, 3, remaining(t, svc, "u2"))
}

func TestAskLastCreditSurvivesProviderFailure(t *testing.T) {
	var failed atomic.Bool
	p := &countingProvider{fn: func(_ context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
		if failed.CompareAndSwap(false, true) {
			return domain.AnswerResult{}, errors.New("upstream 500")
		}
		return domain.AnswerResult{Answer: "ok", Status: domain.AnswerStatusSuccess}, nil
	}}
	g, svc := newGate(t, p, time.Second)
	ctx := context.Background()
	_, err := svc.Consume(ctx, "u11", 2)
	require.NoError(t, err)
	require.Equal(t, 1, remaining(t, svc, "u11"))

	resp, err := g.Ask(ctx, ChatRequest{UserID: "u11", Message: "q"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, 1, resp.CreditsLeft)
	assert.Equal(t, 1, remaining(t, svc, "u11"))

	resp, err = g.Ask(ctx, ChatRequest{UserID: "u11", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusSuccess, resp.Status)
	assert.Equal(t, 0, resp.CreditsLeft)
	assert.Equal(t, 0, remaining(t, svc, "u11"))
}

func TestAskProviderNoCreditsIsRefundedSuccess(t *testing.T) {
	p := &countingProvider{fn: func(context.Context, domain.AnswerRequest) (domain.AnswerResult, error) {
		return domain.AnswerResult{Status: domain.AnswerStatusNoCredits}, nil
	}}
	g, svc := newGate(t, p, time.Second)

	resp, err := g.Ask(context.Background(), ChatRequest{UserID: "u3", Message: "hi", Medium: "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusNoCredits, resp.Status)
	assert.Equal(t, NoCreditsMessage(domain.MediumEnglish), resp.Answer)
	assert.Equal(t, 3, remaining(t, svc, "u3"))
}

func TestAskTimeoutRefunds(t *testing.T) {
	p := &countingProvider{fn: func(ctx context.Context, _ domain.AnswerRequest) (domain.AnswerResult, error) {
		<-ctx.Done()
		return domain.AnswerResult{}, ctx.Err()
	}}
	g, svc := newGate(t, p, 20*time.Millisecond)

	_, err := g.Ask(context.Background(), ChatRequest{UserID: "u4", Message: "slow"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, 3, remaining(t, svc, "u4"))
}

func TestAskLowCreditWarning(t *testing.T) {
	g, svc := newGate(t, answering("ok"), time.Second)
	ctx := context.Background()
	_, applied, err := svc.ApplyPlanChange(ctx, "u5", domain.PlanScholar, "pay-1")
	require.NoError(t, err)
	require.True(t, applied)
	for i := 0; i < 89; i++ {
		_, err := svc.Consume(ctx, "u5", 1)
		require.NoError(t, err)
	}

	resp, err := g.Ask(ctx, ChatRequest{UserID: "u5", Message: "q", Medium: "english"})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.CreditsLeft)
	assert.Contains(t, resp.Warning, "10")

	resp, err = g.Ask(ctx, ChatRequest{UserID: "u5", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, 9, resp.CreditsLeft)
	assert.Empty(t, resp.Warning)
}

func TestAskGeniusIsUnmetered(t *testing.T) {
	p := answering("ok")
	g, svc := newGate(t, p, time.Second)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "u6", domain.PlanGenius, "pay-2")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		resp, err := g.Ask(ctx, ChatRequest{UserID: "u6", Message: "q"})
		require.NoError(t, err)
		assert.Equal(t, domain.Unlimited, resp.CreditsLeft)
	}
	assert.EqualValues(t, 20, p.calls.Load())
}

func TestCompleteUnlimitedReportsNoRefund(t *testing.T) {
	g, svc := newGate(t, answering("ok"), time.Second)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "u12", domain.PlanGenius, "pay-3")
	require.NoError(t, err)

	res, err := g.BeginMessage(ctx, "u12")
	require.NoError(t, err)
	require.True(t, res.Unlimited())
	s, err := g.Complete(ctx, res, ProviderResult{Err: errors.New("boom")})
	require.NoError(t, err)
	assert.False(t, s.Refunded)
	assert.Equal(t, domain.Unlimited, s.Remaining)
}

func TestAskRejectsBlankMessage(t *testing.T) {
	p := answering("ok")
	g, svc := newGate(t, p, time.Second)
	_, err := g.Ask(context.Background(), ChatRequest{UserID: "u7", Message: "  "})
	require.Error(t, err)
	assert.Zero(t, p.calls.Load())
	assert.Equal(t, 3, remaining(t, svc, "u7"))
}

func TestCompleteSettlesOnce(t *testing.T) {
	g, svc := newGate(t, answering("ok"), time.Second)
	ctx := context.Background()

	res, err := g.BeginMessage(ctx, "u8")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
	assert.NotEmpty(t, res.ID)

	s, err := g.Complete(ctx, res, ProviderResult{Err: errors.New("boom")})
	require.NoError(t, err)
	assert.True(t, s.Refunded)
	assert.Equal(t, 3, s.Remaining)

	_, err = g.Complete(ctx, res, ProviderResult{Err: errors.New("boom")})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 3, remaining(t, svc, "u8"))
}

func TestCompleteRefundsAfterCancellation(t *testing.T) {
	g, svc := newGate(t, answering("ok"), time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	res, err := g.BeginMessage(ctx, "u9")
	require.NoError(t, err)
	cancel()

	s, err := g.Complete(ctx, res, ProviderResult{Status: domain.AnswerStatusSuccess})
	require.NoError(t, err)
	assert.True(t, s.Refunded)
	assert.Equal(t, 3, remaining(t, svc, "u9"))
}

func TestConcurrentCompleteRefundsOnce(t *testing.T) {
	g, svc := newGate(t, answering("ok"), time.Second)
	ctx := context.Background()
	res, err := g.BeginMessage(ctx, "u10")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, "u10", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var refunds atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s, err := g.Complete(ctx, res, ProviderResult{Err: errors.New("x")}); err == nil && s.Refunded {
				refunds.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, refunds.Load())
	assert.Equal(t, 2, remaining(t, svc, "u10"))
}

func TestBeginMessageExhausted(t *testing.T) {
	g, _ := newGate(t, answering("ok"), time.Second)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := g.BeginMessage(ctx, "u11")
		require.NoError(t, err)
	}
	_, err := g.BeginMessage(ctx, "u11")
	assert.ErrorIs(t, err, ErrCreditsExhausted)
	assert.ErrorIs(t, err, domain.ErrExhausted)
}
