package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus enumerates verification workflow states.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentMatched  PaymentStatus = "matched"
	PaymentRejected PaymentStatus = "rejected"
	PaymentApproved PaymentStatus = "approved"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentMatched, PaymentRejected, PaymentApproved},
	PaymentMatched: {PaymentMatched, PaymentApproved, PaymentRejected},
}

// ParsePaymentStatus normalizes a status filter value.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PaymentPending, PaymentMatched, PaymentRejected, PaymentApproved:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentApproved || s == PaymentRejected
}

// CanTransition reports whether the state machine allows s -> to.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision is the operator's final verdict on a payment.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision normalizes operator input.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Target returns the payment status a decision leads to.
func (d Decision) Target() PaymentStatus {
	if d == DecisionApprove {
		return PaymentApproved
	}
	return PaymentRejected
}

// Payment tracks one upgrade attempt from slip submission to a final decision.
type Payment struct {
	ID                     string
	UserID                 string
	RequestedPlan          Plan
	Amount                 int64
	SlipReference          string
	WhatsAppContact        string
	SupportingText         string
	Status                 PaymentStatus
	VerificationConfidence *int
	VerificationReason     string
	VerifiedBy             string
	DecidedBy              string
	CreatedAt              time.Time
	VerifiedAt             *time.Time
	DecidedAt              *time.Time
}

// Transition moves the payment to the given status if the state machine allows it.
func (p *Payment) Transition(to PaymentStatus) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: payment %s is already %s", ErrInvalidState, p.ID, p.Status)
	}
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("%w: payment %s cannot move from %s to %s", ErrInvalidState, p.ID, p.Status, to)
	}
	p.Status = to
	return nil
}

// RecordVerdict stores a verifier outcome and advances the status. A pending
// record becomes matched or rejected; a matched record keeps its status and
// only the stored verdict is overwritten.
func (p *Payment) RecordVerdict(v Verdict, verifier string, now time.Time) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: payment %s is already %s", ErrInvalidState, p.ID, p.Status)
	}
	next := p.Status
	if p.Status == PaymentPending {
		next = PaymentRejected
		if v.IsMatch {
			next = PaymentMatched
		}
	}
	if err := p.Transition(next); err != nil {
		return err
	}
	confidence := v.ClampedConfidence()
	at := now.UTC()
	p.VerificationConfidence = &confidence
	p.VerificationReason = v.Reason
	p.VerifiedBy = verifier
	p.VerifiedAt = &at
	if next == PaymentRejected {
		p.DecidedAt = &at
	}
	return nil
}

// Decide applies an operator decision.
func (p *Payment) Decide(d Decision, operatorID string, now time.Time) error {
	if err := p.Transition(d.Target()); err != nil {
		return err
	}
	at := now.UTC()
	p.DecidedBy = operatorID
	p.DecidedAt = &at
	return nil
}
