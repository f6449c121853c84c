package domain

import (
	"context"
	"strings"
)

// AnswerStatus values returned by the answer provider.
const (
	AnswerStatusSuccess   = "success"
	AnswerStatusNoCredits = "no_credits"
	AnswerStatusError     = "error"
)

// AnswerRequest is a single tutoring question.
type AnswerRequest struct {
	UserID    string
	SessionID string
	Message   string
	Subject   string
	Grade     string
	Medium    string
}

// AnswerResult is the provider's reply.
type AnswerResult struct {
	Answer    string
	ImageURL  string
	SessionID string
	Status    string
}

// AnswerProvider generates tutoring answers. It is consumed as an opaque service.
type AnswerProvider interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error)
}

// Mediums of instruction accepted by the chat.
const (
	MediumSinhala = "sinhala"
	MediumEnglish = "english"
	MediumTamil   = "tamil"
)

// NormalizeMedium maps loose input ("si", "Sinhala", "ta") to a medium, or "".
func NormalizeMedium(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "si", "sin", "sinhala":
		return MediumSinhala
	case "ta", "tam", "tamil":
		return MediumTamil
	case "en", "eng", "english":
		return MediumEnglish
	}
	return ""
}
