package answer

import (
	"context"
	"fmt"
	"strings"

	"guru/internal/domain"
)

// Static returns a canned reply. Used in development and tests.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (Static) Answer(_ context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	subject := coalesce(req.Subject, "your subject")
	return domain.AnswerResult{
		Answer:    fmt.Sprintf("Here is a short note on %s: %s", subject, strings.TrimSpace(req.Message)),
		SessionID: sessionOrNew(req.SessionID),
		Status:    domain.AnswerStatusSuccess,
	}, nil
}

var _ domain.AnswerProvider = Static{}
