package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"guru/internal/domain"
	"guru/internal/payment"
	"guru/internal/storage"
)

type paymentDTO struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	Plan                   string     `json:"plan"`
	Amount                 int64      `json:"amount"`
	SlipURL                string     `json:"slip_url"`
	WhatsApp               string     `json:"whatsapp"`
	SMSText                string     `json:"sms_text,omitempty"`
	Status                 string     `json:"status"`
	VerificationConfidence *int       `json:"verification_confidence,omitempty"`
	VerificationReason     string     `json:"verification_reason,omitempty"`
	VerifiedBy             string     `json:"verified_by,omitempty"`
	DecidedBy              string     `json:"decided_by,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	VerifiedAt             *time.Time `json:"verified_at,omitempty"`
	DecidedAt              *time.Time `json:"decided_at,omitempty"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:                     p.ID,
		UserID:                 p.UserID,
		Plan:                   string(p.RequestedPlan),
		Amount:                 p.Amount,
		SlipURL:                p.SlipReference,
		WhatsApp:               p.WhatsAppContact,
		SMSText:                p.SupportingText,
		Status:                 string(p.Status),
		VerificationConfidence: p.VerificationConfidence,
		VerificationReason:     p.VerificationReason,
		VerifiedBy:             p.VerifiedBy,
		DecidedBy:              p.DecidedBy,
		CreatedAt:              p.CreatedAt,
		VerifiedAt:             p.VerifiedAt,
		DecidedAt:              p.DecidedAt,
	}
}

func toPaymentDTOs(items []domain.Payment) []paymentDTO {
	out := make([]paymentDTO, 0, len(items))
	for i := range items {
		out = append(out, toPaymentDTO(&items[i]))
	}
	return out
}

type submitPaymentForm struct {
	Plan     string `validate:"required,oneof=scholar genius"`
	Amount   int64  `validate:"required,gt=0"`
	WhatsApp string `validate:"required,max=32"`
	SMSText  string `validate:"omitempty,max=2000"`
}

// PaymentsCreate accepts a multipart slip upload: plan, amount, whatsapp,
// optional sms_text and the slip file.
func (a *App) PaymentsCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxSlipBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxSlipBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("amount")), 10, 64)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "amount must be a whole number of rupees")
		return
	}
	form := submitPaymentForm{
		Plan:     strings.ToLower(strings.TrimSpace(r.FormValue("plan"))),
		Amount:   amount,
		WhatsApp: strings.TrimSpace(r.FormValue("whatsapp")),
		SMSText:  r.FormValue("sms_text"),
	}
	if err := a.validator().Struct(form); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", validationMessage(err))
		return
	}
	file, _, err := r.FormFile("slip")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "slip file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxSlipBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "could not read slip")
		return
	}
	if len(data) > storage.MaxSlipBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "slip exceeds 8MB")
		return
	}

	p, err := a.Payments.SubmitUpload(r.Context(), payment.SubmitUploadRequest{
		UserID:          a.currentUserID(r),
		Plan:            form.Plan,
		Amount:          form.Amount,
		WhatsAppContact: form.WhatsApp,
		SupportingText:  form.SMSText,
		Slip:            data,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toPaymentDTO(p))
}

// PaymentsHistory lists the caller's submissions, newest first.
func (a *App) PaymentsHistory(w http.ResponseWriter, r *http.Request) {
	items, err := a.Payments.History(r.Context(), a.currentUserID(r), queryLimit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toPaymentDTOs(items)})
}

// PaymentGet returns one of the caller's submissions.
func (a *App) PaymentGet(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ownedPayment(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toPaymentDTO(p))
}

type evidenceRequest struct {
	SMSText string `json:"sms_text" validate:"required,max=2000"`
}

// PaymentEvidence attaches the bank SMS to the caller's submission.
func (a *App) PaymentEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if !a.decode(w, r, &req) {
		return
	}
	p, ok := a.ownedPayment(w, r)
	if !ok {
		return
	}
	updated, err := a.Payments.AttachEvidence(r.Context(), p.ID, req.SMSText)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPaymentDTO(updated))
}

// ownedPayment loads the {id} record and hides records of other users.
func (a *App) ownedPayment(w http.ResponseWriter, r *http.Request) (*domain.Payment, bool) {
	p, err := a.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && p.UserID != a.currentUserID(r) {
		err = domain.ErrNotFound
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.fail(w, r, err)
			return nil, false
		}
		a.error(w, http.StatusNotFound, "not_found", "payment not found")
		return nil, false
	}
	return p, true
}
