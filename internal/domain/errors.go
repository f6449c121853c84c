package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrExhausted           = errors.New("credits exhausted")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidReference    = errors.New("invalid slip reference")
	ErrInvalidPlan         = errors.New("unsupported plan")
	ErrInvalidContact      = errors.New("invalid whatsapp contact")
	ErrVerifierUnavailable = errors.New("verifier unavailable")
	ErrProviderFailure     = errors.New("provider failure")
	ErrMissingEvidence     = errors.New("missing payment evidence")
)
