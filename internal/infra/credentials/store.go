package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"guru/internal/infra"
	"guru/internal/sqlinline"
)

// Providers whose API keys can be stored in the database instead of the environment.
const (
	ProviderOpenAI = "openai"
	ProviderAnswer = "answer"
)

var knownProviders = map[string]struct{}{
	ProviderOpenAI: {},
	ProviderAnswer: {},
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Set stores the key for a known provider.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := knownProviders[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New(provider + " api key is required")
	}
	return s.upsert(ctx, provider, key, nil)
}

// Resolve prefers the stored key and falls back to the configured one.
func Resolve(ctx context.Context, s *Store, provider, fallback string) string {
	if s == nil {
		return fallback
	}
	key, err := s.Token(ctx, provider)
	if err != nil || key == "" {
		return fallback
	}
	return key
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
