package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"guru/internal/domain"
)

const llmSystemPrompt = `You check Sri Lankan bank transfer notifications for a tutoring subscription.
Given the expected payment and the bank SMS text, decide whether the SMS confirms that exact amount was credited.
Reply with JSON only: {"is_match": bool, "confidence": 0-100, "reason": "short explanation"}.`

// LLMOptions configures the OpenAI-backed verifier.
type LLMOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	Logger       zerolog.Logger
}

// LLM asks a chat-completion model to compare the SMS with the claim.
type LLM struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

func NewLLM(opts LLMOptions) (*LLM, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.OrgID = strings.TrimSpace(opts.Organization)
	return newLLMWithConfig(cfg, opts.Model, opts.Logger), nil
}

func newLLMWithConfig(cfg openai.ClientConfig, model string, logger zerolog.Logger) *LLM {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	return &LLM{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}
}

func (l *LLM) Name() string { return "llm" }

type llmPayload struct {
	IsMatch    bool   `json:"is_match"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

func (l *LLM) Verify(ctx context.Context, req domain.VerifyRequest) (domain.Verdict, error) {
	if strings.TrimSpace(req.SupportingText) == "" {
		return domain.Verdict{}, fmt.Errorf("%w: no bank sms supplied", domain.ErrMissingEvidence)
	}
	user := fmt.Sprintf("Expected amount: Rs.%d\nPlan: %s\nSlip: %s\nBank SMS:\n%s",
		req.Amount, req.RequestedPlan.Title(), req.SlipReference, req.SupportingText)

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("payment_id", req.PaymentID).Msg("llm verifier call failed")
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: no choices", domain.ErrVerifierUnavailable)
	}
	var out llmPayload
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &out); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: decode verdict: %v", domain.ErrVerifierUnavailable, err)
	}
	v := domain.Verdict{IsMatch: out.IsMatch, Confidence: out.Confidence, Reason: strings.TrimSpace(out.Reason)}
	v.Confidence = v.ClampedConfidence()
	return v, nil
}

func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

var _ domain.Verifier = (*LLM)(nil)
