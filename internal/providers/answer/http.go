package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guru/internal/domain"
)

const httpDefaultTimeout = 60 * time.Second

// HTTPOptions configures the external tutor backend client.
type HTTPOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// HTTPClient forwards questions to an external tutor backend over JSON.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

type httpAskRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Subject   string `json:"subject,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Medium    string `json:"medium,omitempty"`
}

type httpAskResponse struct {
	SessionID string  `json:"session_id"`
	Answer    string  `json:"answer"`
	ImageURL  *string `json:"image_url"`
	Status    string  `json:"status"`
}

func NewHTTPClient(opts HTTPOptions) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("answer base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: httpDefaultTimeout}
	}
	return &HTTPClient{baseURL: baseURL, token: strings.TrimSpace(opts.Token), client: client}, nil
}

func (c *HTTPClient) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(httpAskRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Subject:   req.Subject,
		Grade:     req.Grade,
		Medium:    req.Medium,
	}); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("encode answer request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", &buf)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("build answer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("answer backend: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AnswerResult{}, fmt.Errorf("answer backend status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out httpAskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("decode answer response: %w", err)
	}
	result := domain.AnswerResult{
		Answer:    out.Answer,
		SessionID: coalesce(out.SessionID, req.SessionID),
		Status:    coalesce(out.Status, domain.AnswerStatusSuccess),
	}
	if out.ImageURL != nil {
		result.ImageURL = *out.ImageURL
	}
	if result.Status == domain.AnswerStatusSuccess && strings.TrimSpace(result.Answer) == "" {
		return domain.AnswerResult{}, errors.New("answer backend returned an empty answer")
	}
	return result, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ domain.AnswerProvider = (*HTTPClient)(nil)
