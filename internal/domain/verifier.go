package domain

import "context"

// VerifyRequest carries the evidence a verifier judges.
type VerifyRequest struct {
	PaymentID      string
	SlipReference  string
	SupportingText string
	Amount         int64
	RequestedPlan  Plan
}

// Verdict is the outcome of a verification run.
type Verdict struct {
	IsMatch    bool   `json:"is_match"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// ClampedConfidence bounds the confidence to 0..100.
func (v Verdict) ClampedConfidence() int {
	switch {
	case v.Confidence < 0:
		return 0
	case v.Confidence > 100:
		return 100
	}
	return v.Confidence
}

// Verifier judges whether submitted evidence matches a claimed payment.
// Transport failures must wrap ErrVerifierUnavailable.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, req VerifyRequest) (Verdict, error)
}
