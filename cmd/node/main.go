package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/bluetooth"

	"cloudpico-notifier/internal/ble"
	"cloudpico-notifier/internal/board/host"
	"cloudpico-notifier/internal/board/periph"
	"cloudpico-notifier/internal/board/sim"
	"cloudpico-notifier/internal/config"
	"cloudpico-notifier/internal/logging"
	"cloudpico-notifier/internal/wake"
)

var version = "dev"
var appName = "cloudpico-node"

// shutdownGrace bounds how long a signal waits for the cycle to reach sleep.
const shutdownGrace = 3 * time.Second

func main() {
	cfg, err := config.LoadNodeFromEnv()
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
		"board", cfg.Board,
		"peripheral", cfg.Peripheral,
		"device_name", cfg.Wake.DeviceName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		time.Sleep(shutdownGrace)
		slog.Warn("shutdown: cycle did not reach sleep, exiting")
		os.Exit(1)
	}()

	devices, cleanup, err := buildDevices(ctx, cfg, logger)
	if err != nil {
		slog.Error("hardware setup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	ctrl, err := wake.NewController(cfg.Wake, devices, wake.WithLogger(logger))
	if err != nil {
		slog.Error("controller setup failed", "err", err)
		os.Exit(1)
	}

	// RunCycle only returns on bootstrap failure; a completed cycle ends in
	// deep sleep, which restarts or exits the process.
	report, err := ctrl.RunCycle()
	if err != nil {
		slog.Error("cycle failed", "err", err, "phase", ctrl.Phase().String())
		os.Exit(1)
	}
	slog.Info("cycle finished", cycleAttrs(report)...)
}

func cycleAttrs(r wake.CycleReport) []any {
	attrs := []any{"outcome", r.Outcome.String(), "attempts", r.Attempts}
	if r.Published {
		attrs = append(attrs, "payload", r.Payload)
	}
	return attrs
}

func buildDevices(ctx context.Context, cfg config.Node, logger *slog.Logger) (wake.Devices, func(), error) {
	cleanup := func() {}
	d := wake.Devices{Power: host.NewPowerManager(ctx, logger)}

	switch cfg.Board {
	case "periph":
		fullScale := physic.ElectricPotential(cfg.ADCFullScaleV * float64(physic.Volt))
		analog, err := periph.OpenAnalog(cfg.I2CBus, cfg.ADS1115Addr, fullScale, logger)
		if err != nil {
			return wake.Devices{}, cleanup, err
		}
		cleanup = func() {
			if err := analog.Close(); err != nil {
				logger.Warn("close adc", "error", err)
			}
		}
		d.Analog = analog
		d.Output = periph.NewOutput(logger)
	default:
		d.Analog = sim.NewAnalog(cfg.SimRaw, cfg.SimJitter, time.Now().UnixNano())
		d.Output = sim.NewOutput(logger)
	}

	switch cfg.Peripheral {
	case "ble":
		d.Peripheral = ble.NewPeripheral(bluetooth.DefaultAdapter, logger)
	default:
		d.Peripheral = sim.NewPeripheral(cfg.SimAttachAfter, logger)
	}
	return d, cleanup, nil
}
