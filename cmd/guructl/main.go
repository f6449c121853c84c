// guructl is the operator console: payment review, plan grants, resets and
// stored provider credentials.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"guru/internal/bootstrap"
	"guru/internal/infra"
)

func main() {
	_ = godotenv.Load()

	loadConfig := func() (*infra.Config, error) { return infra.LoadConfig() }
	open := func(ctx context.Context) (*bootstrap.Services, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		logger := infra.NewLogger("cli").With().Str("cmd", "guructl").Logger()
		return bootstrap.Open(ctx, cfg, logger)
	}

	c := &cli{open: open, loadConfig: loadConfig}
	defer c.close()
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		c.close()
		os.Exit(1)
	}
}
