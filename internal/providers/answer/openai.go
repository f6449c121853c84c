package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"guru/internal/domain"
)

const tutorPersona = `You are an expert Sri Lankan O/L tutor.
Be friendly and explain clearly like a teacher.
For concepts: define first, break the idea into components with bullet points, then conclude.
For lists: keep the exact order from the syllabus.
If you refer to a textbook figure, name it (for example "See Figure 4.5").`

// OpenAIOptions configures the chat-completion tutor.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
}

// OpenAI answers questions with a chat-completion model.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.OrgID = strings.TrimSpace(opts.Organization)
	return newOpenAIWithConfig(cfg, opts.Model), nil
}

func newOpenAIWithConfig(cfg openai.ClientConfig, model string) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: tutorPersona},
			{Role: openai.ChatMessageRoleUser, Content: buildTutorPrompt(req)},
		},
	})
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnswerResult{}, errors.New("openai returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return domain.AnswerResult{}, errors.New("openai returned an empty answer")
	}
	return domain.AnswerResult{
		Answer:    text,
		SessionID: sessionOrNew(req.SessionID),
		Status:    domain.AnswerStatusSuccess,
	}, nil
}

func buildTutorPrompt(req domain.AnswerRequest) string {
	var b strings.Builder
	b.WriteString("SETTINGS:\n")
	fmt.Fprintf(&b, "- Subject: %s\n", coalesce(req.Subject, "General"))
	if req.Grade != "" {
		fmt.Fprintf(&b, "- Grade: %s\n", req.Grade)
	}
	medium := coalesce(req.Medium, "sinhala")
	fmt.Fprintf(&b, "- Medium: %s (answer in this language only)\n\n", medium)
	fmt.Fprintf(&b, "QUESTION: %s\n", strings.TrimSpace(req.Message))
	return b.String()
}

func sessionOrNew(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

var _ domain.AnswerProvider = (*OpenAI)(nil)
