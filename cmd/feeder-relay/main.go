package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aistrack/platform/pkg/common/config"
	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/ingestion"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	logger.Init()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := ingestion.NewRelay(cfg.RelaySourceAddr, cfg.RelayTargetAddr, cfg.RelayRetryDelay)

	logger.Log.WithFields(map[string]interface{}{
		"source": cfg.RelaySourceAddr,
		"target": cfg.RelayTargetAddr,
	}).Info("Feeder Relay started")

	if err := relay.Run(ctx); err != nil {
		logger.Log.WithError(err).Fatal("relay failed")
	}

	logger.Log.WithField("forwarded", relay.Forwarded()).Info("Feeder Relay stopped")
}
