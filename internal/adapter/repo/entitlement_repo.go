package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"guru/internal/domain"
	"guru/internal/infra"
	"guru/internal/sqlinline"
)

// EntitlementRepositoryPG implements domain.EntitlementStore backed by PostgreSQL.
// Consume, restore and reset are single conditional updates, so the row lock
// taken by each statement serializes them per user.
type EntitlementRepositoryPG struct {
	sql infra.TxRunner
}

// NewEntitlementRepository creates a new EntitlementRepositoryPG.
func NewEntitlementRepository(sql infra.TxRunner) *EntitlementRepositoryPG {
	return &EntitlementRepositoryPG{sql: sql}
}

var _ domain.EntitlementStore = (*EntitlementRepositoryPG)(nil)

// Get fetches the entitlement of a user.
func (r *EntitlementRepositoryPG) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	return scanEntitlement(r.sql.QueryRow(ctx, sqlinline.QSelectEntitlement, userID))
}

// CreateDefault inserts the free-plan entitlement for a new user.
func (r *EntitlementRepositoryPG) CreateDefault(ctx context.Context, userID string, now time.Time) (*domain.Entitlement, error) {
	ent := domain.NewEntitlement(userID, now)
	row := r.sql.QueryRow(ctx, sqlinline.QInsertEntitlement,
		ent.UserID,
		string(ent.Plan),
		ent.DailyLimit(),
		ent.CreditsRemaining,
		ent.ResetAt,
		ent.CreatedAt,
	)
	out, err := scanEntitlement(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("entitlement %s: %w", userID, domain.ErrAlreadyExists)
	}
	return out, err
}

// TryConsume decrements credits only when the balance covers amount.
func (r *EntitlementRepositoryPG) TryConsume(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	var limit, remaining int
	err := r.sql.QueryRow(ctx, sqlinline.QConsumeCredits, userID, amount, now.UTC()).Scan(&limit, &remaining)
	if err == nil {
		if limit < 0 {
			return domain.Unlimited, nil
		}
		return remaining, nil
	}
	if !infra.IsNoRows(err) {
		return 0, err
	}
	ent, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return ent.CreditsRemaining, domain.ErrExhausted
}

// Restore adds amount back, capped at the plan limit.
func (r *EntitlementRepositoryPG) Restore(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("restore amount must be positive, got %d", amount)
	}
	var limit, remaining int
	if err := r.sql.QueryRow(ctx, sqlinline.QRestoreCredits, userID, amount, now.UTC()).Scan(&limit, &remaining); err != nil {
		if infra.IsNoRows(err) {
			return 0, fmt.Errorf("entitlement %s: %w", userID, domain.ErrNotFound)
		}
		return 0, err
	}
	if limit < 0 {
		return domain.Unlimited, nil
	}
	return remaining, nil
}

// ResetDue refills every entitlement whose reset boundary has passed.
func (r *EntitlementRepositoryPG) ResetDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QResetDueEntitlements, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ApplyPlanChange records key and switches the plan inside one transaction.
func (r *EntitlementRepositoryPG) ApplyPlanChange(ctx context.Context, userID string, plan domain.Plan, key string, now time.Time) (*domain.Entitlement, bool, error) {
	var (
		out     *domain.Entitlement
		applied bool
	)
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		var err error
		out, applied, err = applyPlanChange(ctx, tx, userID, plan, key, now)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}

func applyPlanChange(ctx context.Context, tx infra.SQLExecutor, userID string, plan domain.Plan, key string, now time.Time) (*domain.Entitlement, bool, error) {
	current, err := scanEntitlement(tx.QueryRow(ctx, sqlinline.QSelectEntitlementForUpdate, userID))
	if err != nil {
		return nil, false, err
	}

	var granted string
	if err := tx.QueryRow(ctx, sqlinline.QInsertEntitlementGrant, key, userID, string(plan), now.UTC()).Scan(&granted); err != nil {
		if infra.IsNoRows(err) {
			return current, false, nil
		}
		return nil, false, err
	}

	next := *current
	next.ApplyPlan(plan, now)
	row := tx.QueryRow(ctx, sqlinline.QApplyEntitlementPlan,
		userID,
		string(next.Plan),
		next.DailyLimit(),
		next.CreditsRemaining,
		next.UpdatedAt,
	)
	updated, err := scanEntitlement(row)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func scanEntitlement(row pgx.Row) (*domain.Entitlement, error) {
	var (
		e    domain.Entitlement
		plan string
	)
	if err := row.Scan(&e.UserID, &plan, &e.CreditsRemaining, &e.ResetAt, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e.Plan = domain.Plan(plan)
	return &e, nil
}
