// Package bootstrap wires the ledger, payment and chat services from config so
// the API, the worker and guructl run the same stack.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"guru/internal/adapter/memory"
	"guru/internal/adapter/repo"
	"guru/internal/domain"
	"guru/internal/gate"
	"guru/internal/infra"
	"guru/internal/infra/credentials"
	"guru/internal/infra/geoip"
	"guru/internal/ledger"
	"guru/internal/payment"
	"guru/internal/providers/answer"
	"guru/internal/storage"
	"guru/internal/verifier"
	"guru/migrations"
)

// Services is the assembled application.
type Services struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	Pool        *pgxpool.Pool
	Credentials *credentials.Store
	Ledger      *ledger.Service
	Payments    *payment.Manager
	Gate        *gate.Gate
	GeoIP       *geoip.Resolver

	entitlements domain.EntitlementStore
	payments     domain.PaymentRepository
}

// Open builds every service. Close must be called when done.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg, Logger: logger}
	if err := s.openStores(ctx); err != nil {
		return nil, err
	}

	prices, err := infra.LoadPriceList(cfg.PlanCatalogPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	blobs, err := storage.Open(ctx, storage.Options{
		Driver:    cfg.BlobDriver,
		FSRoot:    cfg.BlobFSRoot,
		BaseURL:   cfg.StorageBaseURL,
		S3Bucket:  cfg.BlobS3Bucket,
		S3Region:  cfg.BlobS3Region,
		S3Server:  cfg.BlobS3Endpoint,
		PathStyle: cfg.BlobS3PathStyle,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	openAIKey := credentials.Resolve(ctx, s.Credentials, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	openAI := answer.OpenAIOptions{APIKey: openAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL, Organization: cfg.OpenAIOrg}

	s.Ledger = ledger.NewService(s.entitlements, logger)
	s.Payments = payment.NewManager(payment.Config{
		Repo:   s.payments,
		Ledger: s.Ledger,
		Blobs:  blobs,
		Prices: prices,
		Verifier: verifier.New(verifier.Options{
			Kind:           cfg.Verifier,
			AccountSuffix:  cfg.VerifierAccount,
			MatchThreshold: cfg.MatchThreshold,
			LLM:            verifier.LLMOptions{APIKey: openAI.APIKey, Model: openAI.Model, BaseURL: openAI.BaseURL, Organization: openAI.Organization},
			Logger:         logger,
		}),
		Logger: logger,
	})

	provider, err := answer.New(answer.Options{
		Kind:       cfg.AnswerProvider,
		BaseURL:    cfg.AnswerBaseURL,
		Token:      credentials.Resolve(ctx, s.Credentials, credentials.ProviderAnswer, ""),
		OpenAI:     openAI,
		HTTPClient: &http.Client{Timeout: cfg.AnswerTimeout},
		Logger:     logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Gate = gate.New(gate.Config{Ledger: s.Ledger, Provider: provider, Timeout: cfg.AnswerTimeout, Logger: logger})

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	s.GeoIP = geo
	return s, nil
}

func (s *Services) openStores(ctx context.Context) error {
	if s.Config.StoreDriver != "postgres" {
		store := memory.NewStore()
		s.entitlements = store
		s.payments = store.Payments()
		s.Logger.Warn().Msg("using in-memory store; data is lost on restart")
		return nil
	}
	pool, err := infra.NewDBPool(ctx, s.Config, s.Logger)
	if err != nil {
		return err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	runner := infra.NewSQLRunner(pool, s.Logger)
	s.Pool = pool
	s.Credentials = credentials.NewStore(runner)
	s.entitlements = repo.NewEntitlementRepository(runner)
	s.payments = repo.NewPaymentRepository(runner)
	return nil
}

// Durable reports whether state survives a restart.
func (s *Services) Durable() bool { return s.Pool != nil }

// Ready pings the database when one is configured.
func (s *Services) Ready(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

func (s *Services) Close() {
	if s.GeoIP != nil {
		_ = s.GeoIP.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// RetryPolicy is the verification retry policy from config.
func (s *Services) RetryPolicy() payment.RetryPolicy {
	policy := payment.DefaultRetryPolicy()
	if s.Config.VerifyRetries > 0 {
		policy.MaxTries = uint(s.Config.VerifyRetries)
	}
	return policy
}
