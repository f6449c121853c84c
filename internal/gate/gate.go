// Package gate decides whether a chat message may proceed and settles the
// reserved credit once the answer provider has replied.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guru/internal/domain"
	"guru/internal/infra"
)

// ErrCreditsExhausted is returned by BeginMessage when the user has no credit left.
var ErrCreditsExhausted = fmt.Errorf("session gate: %w", domain.ErrExhausted)

// Ledger is the subset of the credit ledger the gate needs.
type Ledger interface {
	Consume(ctx context.Context, userID string, amount int) (int, error)
	Restore(ctx context.Context, userID string, amount int) (int, error)
}

// Reservation is one credit taken ahead of an answer provider call.
type Reservation struct {
	ID        string
	UserID    string
	Amount    int
	Remaining int
	CreatedAt time.Time

	settled atomic.Bool
}

// Unlimited reports whether the reservation did not meter a credit.
func (r *Reservation) Unlimited() bool { return r.Remaining == domain.Unlimited }

// ProviderResult is the outcome of the answer provider call.
type ProviderResult struct {
	Status string
	Err    error
}

// Settlement reports how a reservation was closed.
type Settlement struct {
	Refunded  bool
	Remaining int
}

// Gate implements reserve, call and settle around the answer provider.
type Gate struct {
	ledger   Ledger
	provider domain.AnswerProvider
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// Config wires a Gate.
type Config struct {
	Ledger   Ledger
	Provider domain.AnswerProvider
	Timeout  time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

func New(cfg Config) *Gate {
	g := &Gate{
		ledger:   cfg.Ledger,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With().Str("component", "gate").Logger(),
		now:      cfg.Now,
	}
	if g.timeout <= 0 {
		g.timeout = 60 * time.Second
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// BeginMessage reserves one credit for userID.
func (g *Gate) BeginMessage(ctx context.Context, userID string) (*Reservation, error) {
	remaining, err := g.ledger.Consume(ctx, userID, 1)
	if err != nil {
		if errors.Is(err, domain.ErrExhausted) {
			return nil, ErrCreditsExhausted
		}
		return nil, err
	}
	return &Reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    1,
		Remaining: remaining,
		CreatedAt: g.now().UTC(),
	}, nil
}

// Complete settles a reservation exactly once. A provider error, a
// cancellation or a no_credits reply refunds the credit. Unlimited
// reservations spent nothing, so they never report a refund.
func (g *Gate) Complete(ctx context.Context, res *Reservation, result ProviderResult) (Settlement, error) {
	if res == nil {
		return Settlement{}, errors.New("session gate: nil reservation")
	}
	if !res.settled.CompareAndSwap(false, true) {
		return Settlement{}, fmt.Errorf("%w: reservation %s already settled", domain.ErrInvalidState, res.ID)
	}
	if !needsRefund(ctx, result) {
		return Settlement{Remaining: res.Remaining}, nil
	}
	if res.Unlimited() {
		return Settlement{Remaining: domain.Unlimited}, nil
	}
	// the refund must land even when the request context is already gone
	remaining, err := g.ledger.Restore(context.WithoutCancel(ctx), res.UserID, res.Amount)
	if err != nil {
		g.logger.Error().Err(err).Str("user_id", res.UserID).Str("reservation_id", res.ID).Msg("refund failed")
		return Settlement{}, fmt.Errorf("refund reservation %s: %w", res.ID, err)
	}
	g.logger.Info().Str("user_id", res.UserID).Str("reservation_id", res.ID).Int("remaining", remaining).Msg("credit refunded")
	return Settlement{Refunded: true, Remaining: remaining}, nil
}

func needsRefund(ctx context.Context, result ProviderResult) bool {
	if result.Err != nil || ctx.Err() != nil {
		return true
	}
	return result.Status == domain.AnswerStatusNoCredits || result.Status == domain.AnswerStatusError
}

// ChatRequest is one student message.
type ChatRequest struct {
	UserID    string
	SessionID string
	Message   string
	Subject   string
	Grade     string
	Medium    string
}

// ChatResponse is returned to the chat UI.
type ChatResponse struct {
	SessionID   string `json:"session_id,omitempty"`
	Answer      string `json:"answer"`
	ImageURL    string `json:"image_url,omitempty"`
	CreditsLeft int    `json:"credits_left"`
	Status      string `json:"status"`
	Warning     string `json:"warning,omitempty"`
}

// Ask runs reserve, call and settle for one message. Exhausted users receive
// the no_credits system message as a successful response.
func (g *Gate) Ask(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{}, errors.New("message is required")
	}
	res, err := g.BeginMessage(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrExhausted) {
			return ChatResponse{
				SessionID:   req.SessionID,
				Answer:      NoCreditsMessage(req.Medium),
				CreditsLeft: 0,
				Status:      domain.AnswerStatusNoCredits,
			}, nil
		}
		return ChatResponse{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	started := time.Now()
	answer, callErr := g.provider.Answer(callCtx, domain.AnswerRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Subject:   req.Subject,
		Grade:     req.Grade,
		Medium:    req.Medium,
	})
	cancel()
	status := answer.Status
	if callErr != nil {
		status = domain.AnswerStatusError
	}
	infra.AnswerLatency.WithLabelValues(statusLabel(status)).Observe(time.Since(started).Seconds())

	settlement, err := g.Complete(ctx, res, ProviderResult{Status: answer.Status, Err: callErr})
	if err != nil {
		return ChatResponse{}, err
	}

	switch {
	case callErr != nil || ctx.Err() != nil:
		cause := callErr
		if cause == nil {
			cause = ctx.Err()
		}
		g.logger.Warn().Err(cause).Str("user_id", req.UserID).Msg("answer provider failed")
		return ChatResponse{
			SessionID:   req.SessionID,
			Answer:      FailureMessage(req.Medium),
			CreditsLeft: settlement.Remaining,
			Status:      domain.AnswerStatusError,
		}, fmt.Errorf("%w: %v", domain.ErrProviderFailure, cause)
	case answer.Status == domain.AnswerStatusNoCredits:
		return ChatResponse{
			SessionID:   coalesce(answer.SessionID, req.SessionID),
			Answer:      NoCreditsMessage(req.Medium),
			CreditsLeft: settlement.Remaining,
			Status:      domain.AnswerStatusNoCredits,
		}, nil
	case answer.Status == domain.AnswerStatusError:
		return ChatResponse{
			SessionID:   coalesce(answer.SessionID, req.SessionID),
			Answer:      FailureMessage(req.Medium),
			CreditsLeft: settlement.Remaining,
			Status:      domain.AnswerStatusError,
		}, fmt.Errorf("%w: provider reported error", domain.ErrProviderFailure)
	}

	resp := ChatResponse{
		SessionID:   coalesce(answer.SessionID, req.SessionID),
		Answer:      answer.Answer,
		ImageURL:    answer.ImageURL,
		CreditsLeft: settlement.Remaining,
		Status:      domain.AnswerStatusSuccess,
	}
	if settlement.Remaining == domain.LowCreditThreshold {
		resp.Warning = LowCreditMessage(req.Medium, settlement.Remaining)
	}
	return resp, nil
}

func statusLabel(status string) string {
	switch status {
	case domain.AnswerStatusNoCredits, domain.AnswerStatusError:
		return status
	}
	return domain.AnswerStatusSuccess
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
