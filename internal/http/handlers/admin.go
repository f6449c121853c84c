package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"guru/internal/domain"
	"guru/internal/verifier"
)

// AdminPayments lists the review queue, optionally filtered by status.
func (a *App) AdminPayments(w http.ResponseWriter, r *http.Request) {
	var status domain.PaymentStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := domain.ParsePaymentStatus(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown status")
			return
		}
		status = st
	}
	items, err := a.Payments.List(r.Context(), status, queryLimit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toPaymentDTOs(items)})
}

type operatorVerdict struct {
	IsMatch    bool   `json:"is_match"`
	Confidence int    `json:"confidence" validate:"min=0,max=100"`
	Reason     string `json:"reason" validate:"max=500"`
}

type verifyRequest struct {
	SMSText string           `json:"sms_text" validate:"omitempty,max=2000"`
	Verdict *operatorVerdict `json:"verdict"`
}

// AdminVerify optionally stores SMS text, then runs the automated verifier or
// records the operator's own verdict.
func (a *App) AdminVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !a.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(req.SMSText) != "" {
		if _, err := a.Payments.AttachEvidence(r.Context(), id, req.SMSText); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	var (
		p   *domain.Payment
		err error
	)
	if req.Verdict != nil {
		p, err = a.Payments.RunVerificationWith(r.Context(), id, verifier.Operator{
			OperatorID: a.currentUserID(r),
			Verdict: domain.Verdict{
				IsMatch:    req.Verdict.IsMatch,
				Confidence: req.Verdict.Confidence,
				Reason:     req.Verdict.Reason,
			},
		})
	} else {
		p, err = a.Payments.RunVerification(r.Context(), id)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPaymentDTO(p))
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// AdminDecision approves or rejects a payment. Approval grants the plan.
func (a *App) AdminDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !a.decode(w, r, &req) {
		return
	}
	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	p, err := a.Payments.Decide(r.Context(), chi.URLParam(r, "id"), decision, a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPaymentDTO(p))
}
