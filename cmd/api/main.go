package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"guru/internal/bootstrap"
	"guru/internal/http/handlers"
	httpapi "guru/internal/http/httpapi"
	"guru/internal/infra"
	"guru/internal/infra/geoip"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start services")
	}
	defer svc.Close()

	// Without Postgres there is no separate worker process, so the API runs
	// the reset scheduler and verification loop itself.
	if !svc.Durable() {
		go func() {
			if err := svc.Ledger.RunScheduler(ctx, cfg.ResetInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("reset scheduler stopped")
			}
		}()
		go func() {
			if err := svc.Payments.RunWorker(ctx, cfg.VerifyPoll, cfg.VerifyBatch, svc.RetryPolicy()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("verification worker stopped")
			}
		}()
	}

	app := handlers.NewApp(svc.Gate, svc.Ledger, svc.Payments, logger)
	app.Ready = svc.Ready

	opts := httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultMedium:   cfg.DefaultMedium,
		CountryLookup:   geoip.LookupFunc(svc.GeoIP),
		Logger:          logger,
	}
	if cfg.BlobDriver == "fs" {
		opts.FilesRoot = cfg.BlobFSRoot
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts), logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
