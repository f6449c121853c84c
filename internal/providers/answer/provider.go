// Package answer holds the tutoring answer providers behind domain.AnswerProvider.
package answer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"guru/internal/domain"
)

// Options selects and configures a provider.
type Options struct {
	Kind       string
	BaseURL    string
	Token      string
	OpenAI     OpenAIOptions
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// New builds the provider named by opts.Kind ("http", "openai" or "static").
// An openai provider without a key degrades to static.
func New(opts Options) (domain.AnswerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "http":
		return NewHTTPClient(HTTPOptions{BaseURL: opts.BaseURL, Token: opts.Token, HTTPClient: opts.HTTPClient})
	case "openai":
		if strings.TrimSpace(opts.OpenAI.APIKey) == "" {
			opts.Logger.Warn().Msg("openai answer provider has no api key, using static answers")
			return NewStatic(), nil
		}
		return NewOpenAI(opts.OpenAI)
	case "", "static":
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", opts.Kind)
	}
}
