// Package payment moves uploaded bank slips through verification and grants
// the purchased plan on approval.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guru/internal/domain"
	"guru/internal/infra"
	"guru/internal/storage"
)

// EntitlementEnsurer creates the owner's entitlement before a payment references it.
type EntitlementEnsurer interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Entitlement, error)
}

// Manager implements the payment record workflow.
type Manager struct {
	repo     domain.PaymentRepository
	ledger   EntitlementEnsurer
	blobs    storage.BlobStore
	prices   domain.PriceList
	verifier domain.Verifier
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Config wires a Manager.
type Config struct {
	Repo     domain.PaymentRepository
	Ledger   EntitlementEnsurer
	Blobs    storage.BlobStore
	Prices   domain.PriceList
	Verifier domain.Verifier
	Logger   zerolog.Logger
	Now      func() time.Time
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		repo:     cfg.Repo,
		ledger:   cfg.Ledger,
		blobs:    cfg.Blobs,
		prices:   cfg.Prices,
		verifier: cfg.Verifier,
		logger:   cfg.Logger.With().Str("component", "payment").Logger(),
		now:      cfg.Now,
		newID:    func() string { return uuid.NewString() },
	}
	if m.prices == nil {
		m.prices = domain.DefaultPrices()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Prices exposes the active price list.
func (m *Manager) Prices() domain.PriceList { return m.prices }

// SubmitRequest describes a new slip submission.
type SubmitRequest struct {
	UserID          string
	Plan            string
	Amount          int64
	SlipReference   string
	WhatsAppContact string
	SupportingText  string
}

// Submit creates a pending payment record.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*domain.Payment, error) {
	plan, err := m.validateClaim(req.UserID, req.Plan, req.Amount, req.WhatsAppContact)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SlipReference) == "" {
		return nil, domain.ErrInvalidReference
	}
	if _, err := m.ledger.GetOrCreate(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("ensure entitlement: %w", err)
	}
	p := &domain.Payment{
		ID:              m.newID(),
		UserID:          req.UserID,
		RequestedPlan:   plan,
		Amount:          req.Amount,
		SlipReference:   strings.TrimSpace(req.SlipReference),
		WhatsAppContact: NormalizeContact(req.WhatsAppContact),
		SupportingText:  strings.TrimSpace(req.SupportingText),
		Status:          domain.PaymentPending,
		CreatedAt:       m.now().UTC(),
	}
	if err := m.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	infra.Payments.WithLabelValues(string(p.Status)).Inc()
	m.logger.Info().
		Str("payment_id", p.ID).
		Str("user_id", p.UserID).
		Str("plan", string(p.RequestedPlan)).
		Int64("amount", p.Amount).
		Msg("payment submitted")
	return p, nil
}

func (m *Manager) validateClaim(userID, planName string, amount int64, contact string) (domain.Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: missing user id", domain.ErrUnauthorized)
	}
	plan, err := domain.ParsePlan(planName)
	if err != nil {
		return "", err
	}
	if !m.prices.Matches(plan, amount) {
		price, ok := m.prices.Price(plan)
		if !ok {
			return "", fmt.Errorf("%w: plan %s cannot be purchased", domain.ErrInvalidAmount, plan)
		}
		return "", fmt.Errorf("%w: %s costs Rs.%d, got Rs.%d", domain.ErrInvalidAmount, plan.Title(), price, amount)
	}
	if NormalizeContact(contact) == "" {
		return "", domain.ErrInvalidContact
	}
	return plan, nil
}

// SubmitUploadRequest carries slip bytes instead of a stored reference.
type SubmitUploadRequest struct {
	UserID          string
	Plan            string
	Amount          int64
	WhatsAppContact string
	SupportingText  string
	Slip            []byte
}

// SubmitUpload validates the claim, stores the slip and submits the record.
func (m *Manager) SubmitUpload(ctx context.Context, req SubmitUploadRequest) (*domain.Payment, error) {
	if m.blobs == nil {
		return nil, errors.New("blob store not configured")
	}
	if _, err := m.validateClaim(req.UserID, req.Plan, req.Amount, req.WhatsAppContact); err != nil {
		return nil, err
	}
	contentType, ext, err := storage.DetectSlipType(req.Slip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	key := SlipPrefix(req.UserID) + uuid.NewString() + ext
	url, err := m.blobs.Upload(ctx, key, req.Slip, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload slip: %w", err)
	}
	return m.Submit(ctx, SubmitRequest{
		UserID:          req.UserID,
		Plan:            req.Plan,
		Amount:          req.Amount,
		SlipReference:   url,
		WhatsAppContact: req.WhatsAppContact,
		SupportingText:  req.SupportingText,
	})
}

// AttachEvidence stores supporting text (usually the bank SMS) on a non-terminal record.
func (m *Manager) AttachEvidence(ctx context.Context, id, text string) (*domain.Payment, error) {
	text = strings.TrimSpace(text)
	p, err := m.repo.Mutate(ctx, id, func(p *domain.Payment) error {
		if p.Status.Terminal() {
			return fmt.Errorf("%w: payment %s is already %s", domain.ErrInvalidState, p.ID, p.Status)
		}
		p.SupportingText = text
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug().Str("payment_id", id).Msg("evidence attached")
	return p, nil
}

// Get returns a payment record.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return m.repo.Get(ctx, id)
}

// List returns records for the operator queue, newest first.
func (m *Manager) List(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	return m.repo.List(ctx, domain.PaymentFilter{Status: status, Limit: clampLimit(limit)})
}

// History returns a user's records, newest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", domain.ErrUnauthorized)
	}
	return m.repo.List(ctx, domain.PaymentFilter{UserID: userID, Limit: clampLimit(limit)})
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// SlipPrefix is the blob key prefix under which a user's slips are stored.
func SlipPrefix(userID string) string {
	return "slips/" + safeSegment(userID) + "/"
}

func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

// NormalizeContact keeps digits and a leading plus; local Sri Lankan numbers
// (07XXXXXXXX) are rewritten to +94. Returns "" for anything too short.
func NormalizeContact(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "0") && len(out) == 10 {
		out = "+94" + out[1:]
	}
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 9 || len(digits) > 15 {
		return ""
	}
	return out
}
