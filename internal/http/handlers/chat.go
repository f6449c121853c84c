package handlers

import (
	"errors"
	"net/http"

	"guru/internal/domain"
	"guru/internal/gate"
	"guru/internal/middleware"
)

type chatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	Subject   string `json:"subject" validate:"omitempty,max=64"`
	Grade     string `json:"grade" validate:"omitempty,max=32"`
	Medium    string `json:"medium" validate:"omitempty,oneof=sinhala english tamil si en ta"`
}

// Chat spends one credit on a tutoring question.
func (a *App) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req) {
		return
	}
	medium := domain.NormalizeMedium(req.Medium)
	if medium == "" {
		medium = middleware.MediumFromContext(r.Context())
	}
	resp, err := a.Gate.Ask(r.Context(), gate.ChatRequest{
		UserID:    a.currentUserID(r),
		SessionID: req.SessionID,
		Message:   req.Message,
		Subject:   req.Subject,
		Grade:     req.Grade,
		Medium:    medium,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderFailure) {
			a.json(w, http.StatusBadGateway, resp)
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, resp)
}

// Entitlement returns the caller's plan and remaining credits.
func (a *App) Entitlement(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Ledger.Snapshot(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}
