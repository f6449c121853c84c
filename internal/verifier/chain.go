package verifier

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"guru/internal/domain"
)

// Chain uses Primary and falls back when it is unavailable.
type Chain struct {
	Primary  domain.Verifier
	Fallback domain.Verifier
	Logger   zerolog.Logger
}

func (c *Chain) Name() string {
	return c.Primary.Name() + "+" + c.Fallback.Name()
}

func (c *Chain) Verify(ctx context.Context, req domain.VerifyRequest) (domain.Verdict, error) {
	v, err := c.Primary.Verify(ctx, req)
	if err == nil || !errors.Is(err, domain.ErrVerifierUnavailable) || ctx.Err() != nil {
		return v, err
	}
	c.Logger.Info().Err(err).Str("payment_id", req.PaymentID).Str("fallback", c.Fallback.Name()).Msg("verifier fallback")
	return c.Fallback.Verify(ctx, req)
}

var _ domain.Verifier = (*Chain)(nil)

// Options selects the automated verifier.
type Options struct {
	Kind           string
	AccountSuffix  string
	MatchThreshold int
	LLM            LLMOptions
	Logger         zerolog.Logger
}

// New builds the automated verifier named by opts.Kind (sms, llm or chain).
// Without an API key llm and chain degrade to the SMS matcher.
func New(opts Options) domain.Verifier {
	sms := NewSMSMatcher(opts.AccountSuffix, opts.MatchThreshold)
	if opts.Kind == "sms" || opts.Kind == "" {
		return sms
	}
	opts.LLM.Logger = opts.Logger
	llm, err := NewLLM(opts.LLM)
	if err != nil {
		opts.Logger.Warn().Err(err).Str("verifier", opts.Kind).Msg("llm verifier unavailable, using sms matcher")
		return sms
	}
	if opts.Kind == "llm" {
		return llm
	}
	return &Chain{Primary: llm, Fallback: sms, Logger: opts.Logger}
}
