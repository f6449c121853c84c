package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"guru/internal/bootstrap"
	"guru/internal/infra"
)

// The worker runs the daily credit reset and automated payment verification
// against Postgres. Several replicas may run at once: resets are conditional
// updates and verification claims rows with a lease.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to start services")
	}
	defer svc.Close()
	if !svc.Durable() {
		logger.Warn().Msg("worker: in-memory store is not shared with the API; set DATABASE_URL")
	}

	logger.Info().
		Dur("reset_interval", cfg.ResetInterval).
		Dur("verify_poll", cfg.VerifyPoll).
		Int("verify_batch", cfg.VerifyBatch).
		Msg("worker: started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Ledger.RunScheduler(gctx, cfg.ResetInterval)
	})
	g.Go(func() error {
		return svc.Payments.RunWorker(gctx, cfg.VerifyPoll, cfg.VerifyBatch, svc.RetryPolicy())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
