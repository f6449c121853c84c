package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CreditsConsumed counts successful credit reservations by plan.
	CreditsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guru_credits_consumed_total",
		Help: "Credits consumed by chat messages, by plan",
	}, []string{"plan"})

	// CreditsRefunded counts compensating restores after failed or cancelled answers.
	CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guru_credits_refunded_total",
		Help: "Credits restored after provider failure or cancellation",
	})

	// CreditExhausted counts messages refused for lack of credit.
	CreditExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guru_credit_exhausted_total",
		Help: "Chat messages refused because the daily quota was used up",
	})

	// EntitlementsReset counts refills performed by the reset scheduler.
	EntitlementsReset = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guru_entitlements_reset_total",
		Help: "Entitlements refilled by the daily reset",
	})

	// Payments counts payment records entering each status.
	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guru_payments_total",
		Help: "Payment records by resulting status",
	}, []string{"status"})

	// Verifications counts verifier runs by verifier and outcome.
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guru_verifications_total",
		Help: "Verification runs by verifier and outcome",
	}, []string{"verifier", "outcome"})

	// AnswerLatency tracks answer provider call duration.
	AnswerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guru_answer_provider_seconds",
		Help:    "Answer provider latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
	}, []string{"status"})
)
