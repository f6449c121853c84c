package ledger

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
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*Service, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)}
	return NewService(memory.NewStore(), zerolog.Nop(), WithClock(c.Now)), c
}

func TestGetOrCreateDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ent, err := svc.GetOrCreate(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, ent.Plan)
	assert.Equal(t, 3, ent.CreditsRemaining)
	assert.Equal(t, time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC), ent.ResetAt)

	again, err := svc.GetOrCreate(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, ent.Version, again.Version)

	_, err = svc.GetOrCreate(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestConcurrentGetOrCreateSingleRecord(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetOrCreate(ctx, "student-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	remaining, err := svc.Consume(ctx, "student-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestFreeUserFourthMessageExhausted(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for want := 2; want >= 0; want-- {
		got, err := svc.Consume(ctx, "student-1", 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := svc.Consume(ctx, "student-1", 1)
	assert.ErrorIs(t, err, domain.ErrExhausted)
}

func TestConsumeRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Consume(context.Background(), "student-1", 0)
	assert.Error(t, err)
}

func TestConcurrentConsumeExactlyLimit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "student-1", domain.PlanScholar, "grant-1")
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Consume(ctx, "student-1", 1); err == nil {
				ok.Add(1)
			} else if !errors.Is(err, domain.ErrExhausted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, ok.Load())
}

func TestGeniusUnlimited(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "student-1", domain.PlanGenius, "grant-1")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		got, err := svc.Consume(ctx, "student-1", 1)
		require.NoError(t, err)
		require.Equal(t, domain.Unlimited, got)
	}
}

func TestRestoreCappedAtLimit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "student-1", domain.PlanScholar, "grant-1")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, "student-1", 1)
	require.NoError(t, err)

	got, err := svc.Restore(ctx, "student-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}

func TestApplyPlanChangeIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ent, applied, err := svc.ApplyPlanChange(ctx, "student-1", domain.PlanScholar, "pay-42")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 100, ent.CreditsRemaining)

	_, err = svc.Consume(ctx, "student-1", 10)
	require.NoError(t, err)

	ent, applied, err = svc.ApplyPlanChange(ctx, "student-1", domain.PlanScholar, "pay-42")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 90, ent.CreditsRemaining)

	_, _, err = svc.ApplyPlanChange(ctx, "student-1", domain.Plan("platinum"), "pay-43")
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
}

func TestResetDailyRefillsAndAdvances(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()
	_, err := svc.Consume(ctx, "student-1", 3)
	require.NoError(t, err)

	n, err := svc.ResetDaily(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(9 * time.Hour)
	n, err = svc.ResetDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ent, err := svc.GetOrCreate(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, ent.CreditsRemaining)
	assert.Equal(t, time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), ent.ResetAt)
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunScheduler(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSnapshotLowCredit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.ApplyPlanChange(ctx, "student-1", domain.PlanScholar, "grant-1")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, "student-1", 90)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.CreditsLeft)
	assert.True(t, snap.LowCredit)
	assert.Equal(t, domain.PlanGenius, snap.RecommendedFor)

	genius := NewSnapshot(domain.Entitlement{Plan: domain.PlanGenius})
	assert.True(t, genius.Unlimited)
	assert.Equal(t, domain.Unlimited, genius.CreditsLeft)
	assert.False(t, genius.LowCredit)
}
