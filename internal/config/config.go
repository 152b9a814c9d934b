package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloudpico-notifier/internal/wake"
)

// ads1115Max is the largest single-ended ADS1115 conversion.
const ads1115Max = 32767

// Base is shared by every host binary.
type Base struct {
	AppEnv   string
	LogLevel slog.Level
}

type Node struct {
	Base

	// Board selects the analog and indicator hardware: "sim" or "periph".
	Board string
	// Peripheral selects the radio: "ble" (BlueZ) or "sim".
	Peripheral string

	Wake wake.Config

	I2CBus        string
	ADS1115Addr   uint16
	ADCFullScaleV float64

	SimAttachAfter int
	SimRaw         int
	SimJitter      int
}

type Collector struct {
	Base

	BLEAdapter         string
	LocalName          string
	ServiceUUID        string
	CharacteristicUUID string
	LinkTimeout        time.Duration
	StationID          string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	SQLitePath string
	HTTPAddr   string
}

func loadBase() (Base, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Base{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Base{}, err
	}

	return Base{AppEnv: appEnv, LogLevel: level}, nil
}

func LoadNodeFromEnv() (Node, error) {
	base, err := loadBase()
	if err != nil {
		return Node{}, err
	}

	board := envOr("NODE_BOARD", "sim")
	switch board {
	case "sim", "periph":
	default:
		return Node{}, fmt.Errorf("invalid NODE_BOARD %q (allowed: sim, periph)", board)
	}
	peripheral := envOr("NODE_PERIPHERAL", "sim")
	switch peripheral {
	case "sim", "ble":
	default:
		return Node{}, fmt.Errorf("invalid NODE_PERIPHERAL %q (allowed: sim, ble)", peripheral)
	}

	w := wake.DefaultConfig()
	w.DeviceName = envOr("NODE_DEVICE_NAME", w.DeviceName)
	w.ServiceUUID = envOr("NODE_SERVICE_UUID", w.ServiceUUID)
	w.CharacteristicUUID = envOr("NODE_CHARACTERISTIC_UUID", w.CharacteristicUUID)

	if w.AdvertisingBound, err = envInt("NODE_ADVERTISING_BOUND", w.AdvertisingBound); err != nil {
		return Node{}, err
	}
	if w.SampleCount, err = envInt("NODE_SAMPLE_COUNT", w.SampleCount); err != nil {
		return Node{}, err
	}
	if w.SleepDuration, err = envDuration("NODE_SLEEP_DURATION", w.SleepDuration); err != nil {
		return Node{}, err
	}

	addrStr := envOr("ADS1115_ADDRESS", "0x48")
	addr, err := strconv.ParseUint(addrStr, 0, 16)
	if err != nil {
		return Node{}, fmt.Errorf("invalid ADS1115_ADDRESS %q: %w", addrStr, err)
	}
	fullScaleStr := envOr("ADC_FULL_SCALE_V", "4.096")
	fullScale, err := strconv.ParseFloat(fullScaleStr, 64)
	if err != nil || fullScale <= 0 {
		return Node{}, fmt.Errorf("invalid ADC_FULL_SCALE_V %q", fullScaleStr)
	}

	if w.SensorPin, err = envInt("NODE_SENSOR_PIN", w.SensorPin); err != nil {
		return Node{}, err
	}
	if w.IndicatorPin, err = envInt("NODE_INDICATOR_PIN", w.IndicatorPin); err != nil {
		return Node{}, err
	}

	if board == "periph" {
		w.ADCMax = ads1115Max
		w.VRef = fullScale
		if strings.TrimSpace(os.Getenv("NODE_SENSOR_PIN")) == "" {
			w.SensorPin = 0
		}
	}

	n := Node{
		Base:          base,
		Board:         board,
		Peripheral:    peripheral,
		Wake:          w,
		I2CBus:        strings.TrimSpace(os.Getenv("I2C_BUS")),
		ADS1115Addr:   uint16(addr),
		ADCFullScaleV: fullScale,
	}
	if n.SimAttachAfter, err = envInt("SIM_ATTACH_AFTER", 5); err != nil {
		return Node{}, err
	}
	if n.SimRaw, err = envInt("SIM_RAW", 310); err != nil {
		return Node{}, err
	}
	if n.SimJitter, err = envInt("SIM_JITTER", 0); err != nil {
		return Node{}, err
	}

	if err := n.Wake.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

func LoadCollectorFromEnv() (Collector, error) {
	base, err := loadBase()
	if err != nil {
		return Collector{}, err
	}

	c := Collector{
		Base:               base,
		BLEAdapter:         envOr("BLE_ADAPTER", "hci0"),
		LocalName:          envOr("COLLECTOR_LOCAL_NAME", wake.DefaultDeviceName),
		ServiceUUID:        envOr("COLLECTOR_SERVICE_UUID", wake.DefaultServiceUUID),
		CharacteristicUUID: envOr("COLLECTOR_CHARACTERISTIC_UUID", wake.DefaultCharacteristicUUID),
		StationID:          envOr("COLLECTOR_STATION_ID", "beverage"),
		MQTTBroker:         envOr("MQTT_BROKER", "localhost"),
		MQTTClientID:       envOr("MQTT_CLIENT_ID", "cloudpico-collector"),
		MQTTTopicPrefix:    envOr("MQTT_TOPIC_PREFIX", "stations"),
		SQLitePath:         envOr("SQLITE_PATH", "../dev/sqlite/collector.db"),
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
	}

	if c.MQTTPort, err = envInt("MQTT_PORT", 1883); err != nil {
		return Collector{}, err
	}
	if c.LinkTimeout, err = envDuration("COLLECTOR_LINK_TIMEOUT", 2*time.Minute); err != nil {
		return Collector{}, err
	}
	if c.LinkTimeout <= 0 {
		return Collector{}, fmt.Errorf("COLLECTOR_LINK_TIMEOUT must be positive, got %v", c.LinkTimeout)
	}
	return c, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
