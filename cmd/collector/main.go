package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloudpico-notifier/internal/ble"
	"cloudpico-notifier/internal/collector"
	"cloudpico-notifier/internal/config"
	"cloudpico-notifier/internal/logging"
)

var version = "dev"
var appName = "cloudpico-collector"

func main() {
	cfg, err := config.LoadCollectorFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Base, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	central, err := ble.NewCentral(newAdapter(cfg.BLEAdapter), ble.CentralOptions{
		LocalName:          cfg.LocalName,
		ServiceUUID:        cfg.ServiceUUID,
		CharacteristicUUID: cfg.CharacteristicUUID,
		LinkTimeout:        cfg.LinkTimeout,
	}, logger)
	if err != nil {
		slog.Error("ble setup failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collector.RunApp(ctx, cfg, central, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}
