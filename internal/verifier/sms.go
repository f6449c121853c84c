package verifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"guru/internal/domain"
)

// DefaultMatchThreshold is the confidence at or above which a verdict is a match.
const DefaultMatchThreshold = 70

var (
	amountPattern  = regexp.MustCompile(`(?i)(?:rs\.?|lkr)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	creditKeywords = []string{"credited", "credit", "received", "deposit"}
	debitKeywords  = []string{"debited", "withdrawn", "reversed"}
)

// SMSMatcher scores a pasted bank SMS against the claimed payment.
type SMSMatcher struct {
	// AccountSuffix is the tail of the receiving account number, e.g. "4567".
	AccountSuffix string
	Threshold     int
}

func NewSMSMatcher(accountSuffix string, threshold int) *SMSMatcher {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultMatchThreshold
	}
	return &SMSMatcher{AccountSuffix: strings.TrimSpace(accountSuffix), Threshold: threshold}
}

func (m *SMSMatcher) Name() string { return "sms" }

func (m *SMSMatcher) Verify(ctx context.Context, req domain.VerifyRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, err
	}
	text := normalizeSMS(req.SupportingText)
	if text == "" {
		return domain.Verdict{}, fmt.Errorf("%w: no bank sms supplied", domain.ErrMissingEvidence)
	}

	var (
		score   int
		debit   bool
		reasons []string
	)
	amounts := extractAmounts(text)
	switch {
	case containsAmount(amounts, req.Amount):
		score += 60
		reasons = append(reasons, fmt.Sprintf("amount Rs.%d found", req.Amount))
	case len(amounts) > 0:
		reasons = append(reasons, fmt.Sprintf("amount mismatch: expected Rs.%d", req.Amount))
	default:
		reasons = append(reasons, "no amount in sms")
	}

	switch {
	case containsAny(text, debitKeywords):
		debit = true
		reasons = append(reasons, "sms describes a debit")
	case containsAny(text, creditKeywords):
		score += 20
		reasons = append(reasons, "credit keyword present")
	}

	if m.AccountSuffix != "" {
		if strings.Contains(text, strings.ToLower(m.AccountSuffix)) {
			score += 20
			reasons = append(reasons, "receiving account matched")
		}
	} else {
		score += 10
	}

	if debit {
		score = max(score-50, 0)
	}

	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return domain.Verdict{
		IsMatch:    score >= threshold,
		Confidence: score,
		Reason:     strings.Join(reasons, "; "),
	}, nil
}

func normalizeSMS(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func extractAmounts(text string) []int64 {
	var out []int64
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		if dot := strings.IndexByte(raw, '.'); dot >= 0 {
			if cents := strings.Trim(raw[dot+1:], "0"); cents != "" {
				continue
			}
			raw = raw[:dot]
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsAmount(amounts []int64, want int64) bool {
	for _, a := range amounts {
		if a == want {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

var _ domain.Verifier = (*SMSMatcher)(nil)
