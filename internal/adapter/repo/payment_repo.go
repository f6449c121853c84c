package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"guru/internal/domain"
	"guru/internal/infra"
	"guru/internal/sqlinline"
)

// PaymentRepositoryPG implements domain.PaymentRepository backed by PostgreSQL.
type PaymentRepositoryPG struct {
	sql infra.TxRunner
}

// NewPaymentRepository creates a new PaymentRepositoryPG.
func NewPaymentRepository(sql infra.TxRunner) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{sql: sql}
}

var _ domain.PaymentRepository = (*PaymentRepositoryPG)(nil)

// Create inserts a new payment record.
func (r *PaymentRepositoryPG) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertPayment,
		p.ID,
		p.UserID,
		string(p.RequestedPlan),
		p.Amount,
		p.SlipReference,
		p.WhatsAppContact,
		p.SupportingText,
		string(p.Status),
		p.CreatedAt,
	)
	return err
}

// Get fetches a payment by id.
func (r *PaymentRepositoryPG) Get(ctx context.Context, id string) (*domain.Payment, error) {
	if err := checkPaymentID(id); err != nil {
		return nil, err
	}
	return scanPayment(r.sql.QueryRow(ctx, sqlinline.QSelectPayment, id))
}

// List returns payments newest first.
func (r *PaymentRepositoryPG) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListPayments, filter.UserID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// Mutate locks the record, applies fn and persists the result.
func (r *PaymentRepositoryPG) Mutate(ctx context.Context, id string, fn domain.PaymentMutation) (*domain.Payment, error) {
	if err := checkPaymentID(id); err != nil {
		return nil, err
	}
	var out *domain.Payment
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		p, err := scanPayment(tx.QueryRow(ctx, sqlinline.QSelectPaymentForUpdate, id))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := updatePayment(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve applies fn, grants the requested plan and persists both in one transaction.
func (r *PaymentRepositoryPG) Approve(ctx context.Context, id string, fn domain.PaymentMutation, now time.Time) (*domain.Payment, *domain.Entitlement, error) {
	if err := checkPaymentID(id); err != nil {
		return nil, nil, err
	}
	var (
		payment *domain.Payment
		ent     *domain.Entitlement
	)
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		p, err := scanPayment(tx.QueryRow(ctx, sqlinline.QSelectPaymentForUpdate, id))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		e, _, err := applyPlanChange(ctx, tx, p.UserID, p.RequestedPlan, p.ID, now)
		if err != nil {
			return fmt.Errorf("grant plan for payment %s: %w", p.ID, err)
		}
		if err := updatePayment(ctx, tx, p); err != nil {
			return err
		}
		payment, ent = p, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, ent, nil
}

// ClaimForVerification leases unverified pending payments for the worker.
func (r *PaymentRepositoryPG) ClaimForVerification(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]domain.Payment, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QClaimPaymentsForVerification, limit, now.UTC(), int(lease.Seconds()))
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// ids are uuid columns; anything else cannot exist.
func checkPaymentID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func updatePayment(ctx context.Context, tx infra.SQLExecutor, p *domain.Payment) error {
	tag, err := tx.Exec(ctx, sqlinline.QUpdatePayment,
		p.ID,
		p.SupportingText,
		string(p.Status),
		p.VerificationConfidence,
		p.VerificationReason,
		p.VerifiedBy,
		p.DecidedBy,
		p.VerifiedAt,
		p.DecidedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	items := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p            domain.Payment
		plan, status string
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &plan, &p.Amount, &p.SlipReference, &p.WhatsAppContact, &p.SupportingText, &status,
		&p.VerificationConfidence, &p.VerificationReason, &p.VerifiedBy, &p.DecidedBy, &p.CreatedAt, &p.VerifiedAt, &p.DecidedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.RequestedPlan = domain.Plan(plan)
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
