// Package verifier decides whether payment evidence matches a claimed transfer.
package verifier

import (
	"context"
	"strings"

	"guru/internal/domain"
)

// Operator records a verdict an operator reached by reading the bank SMS.
type Operator struct {
	OperatorID string
	Verdict    domain.Verdict
}

func (o Operator) Name() string {
	id := strings.TrimSpace(o.OperatorID)
	if id == "" {
		id = "unknown"
	}
	return "operator:" + id
}

func (o Operator) Verify(ctx context.Context, req domain.VerifyRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, err
	}
	v := o.Verdict
	v.Confidence = v.ClampedConfidence()
	if strings.TrimSpace(v.Reason) == "" {
		if v.IsMatch {
			v.Reason = "confirmed by operator"
		} else {
			v.Reason = "rejected by operator"
		}
	}
	return v, nil
}

var _ domain.Verifier = Operator{}
