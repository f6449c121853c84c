package repo

import (
	"context"
	"errors"
	"testing"

	"guru/internal/domain"
	"guru/internal/sqlinline"
)

func TestMutateAbortsOnError(t *testing.T) {
	f := newFakeRunner()
	_, err := NewPaymentRepository(f).Mutate(context.Background(), testPaymentID, func(p *domain.Payment) error { return nil })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.called(sqlinline.QUpdatePayment) != 0 {
		t.Fatalf("missing payment must not be updated")
	}
}

func TestApproveRollsBackOnMutationError(t *testing.T) {
	f := newFakeRunner()
	f.push(sqlinline.QSelectPaymentForUpdate, paymentRow(testPaymentID, domain.PaymentPending))
	repo := NewPaymentRepository(f)
	boom := errors.New("boom")
	_, _, err := repo.Approve(context.Background(), testPaymentID, func(p *domain.Payment) error { return boom }, now)
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if f.called(sqlinline.QInsertEntitlementGrant) != 0 || f.called(sqlinline.QUpdatePayment) != 0 {
		t.Fatalf("no writes expected after failure")
	}
}

func paymentRow(id string, status domain.PaymentStatus) fakeRow {
	return fakeRow{values: []any{
		id, "u1", string(domain.PlanScholar), int64(499), "https://cdn/slip.png", "+94771234567", "", string(status),
		nil, "", "", "", now, nil, nil,
	}}
}

func TestApproveGrantsPlanAndPersists(t *testing.T) {
	f := newFakeRunner()
	f.push(sqlinline.QSelectPaymentForUpdate, paymentRow(testPaymentID, domain.PaymentMatched))
	f.push(sqlinline.QSelectEntitlementForUpdate, entRow("u1", domain.PlanFree, 0))
	f.push(sqlinline.QInsertEntitlementGrant, fakeRow{values: []any{testPaymentID}})
	f.push(sqlinline.QApplyEntitlementPlan, entRow("u1", domain.PlanScholar, 100))

	p, ent, err := NewPaymentRepository(f).Approve(context.Background(), testPaymentID, func(p *domain.Payment) error {
		return p.Decide(domain.DecisionApprove, "op-1", now)
	}, now)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if p.Status != domain.PaymentApproved || ent.CreditsRemaining != 100 {
		t.Fatalf("payment=%+v ent=%+v", p, ent)
	}
	if f.called(sqlinline.QUpdatePayment) != 1 || f.txs != 1 {
		t.Fatalf("expected one payment update in one tx, got updates=%d txs=%d", f.called(sqlinline.QUpdatePayment), f.txs)
	}
	for _, c := range f.calls {
		if c.query == sqlinline.QInsertEntitlementGrant && c.args[0] != testPaymentID {
			t.Fatalf("grant key = %v, want payment id", c.args[0])
		}
	}
}

const (
	testPaymentID  = "5b1d5f7e-2c43-4c8e-9a6b-0f2d3c4e5a61"
	otherPaymentID = "7c2e6a8f-3d54-4d9f-8b7c-1a3e4d5f6b72"
)

func TestNonUUIDPaymentIsNotFound(t *testing.T) {
	f := newFakeRunner()
	repo := NewPaymentRepository(f)
	if _, err := repo.Get(context.Background(), "../etc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if _, _, err := repo.Approve(context.Background(), "nope", func(*domain.Payment) error { return nil }, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Approve: expected ErrNotFound, got %v", err)
	}
	if len(f.calls) != 0 || f.txs != 0 {
		t.Fatalf("no queries expected for malformed ids")
	}
}
