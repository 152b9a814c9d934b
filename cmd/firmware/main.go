//go:build tinygo

package main

import (
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-notifier/internal/ble"
	"cloudpico-notifier/internal/board/pico"
	"cloudpico-notifier/internal/wake"
)

// Set with -ldflags "-X main.deviceName=..." to flash differently named nodes.
var (
	deviceName         = wake.DefaultDeviceName
	serviceUUID        = wake.DefaultServiceUUID
	characteristicUUID = wake.DefaultCharacteristicUUID
)

func main() {
	// USB CDC serial
	machine.Serial.Configure(machine.UARTConfig{})

	// Give the host time to enumerate the USB serial device.
	time.Sleep(1500 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("boot: beverage notifier", "name", deviceName)

	cfg := wake.DefaultConfig()
	cfg.DeviceName = deviceName
	cfg.ServiceUUID = serviceUUID
	cfg.CharacteristicUUID = characteristicUUID
	cfg.SensorPin = pico.SensorPin
	cfg.ADCMax = pico.ADCMax

	ctrl, err := wake.NewController(cfg, wake.Devices{
		Peripheral: ble.NewPeripheral(bluetooth.DefaultAdapter, logger),
		Analog:     pico.NewAnalog(),
		Output:     pico.Output{},
		Power:      &pico.Power{},
	}, wake.WithLogger(logger))
	if err != nil {
		fatal(logger, "controller setup failed", err)
	}

	if _, err := ctrl.RunCycle(); err != nil {
		fatal(logger, "cycle failed", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error("FATAL: "+msg, "error", err)
	for {
		time.Sleep(1 * time.Second)
	}
}
