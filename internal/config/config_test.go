package config

import (
	"log/slog"
	"testing"
	"time"

	"cloudpico-notifier/internal/board/periph"
	"cloudpico-notifier/internal/wake"
)

var nodeEnv = []string{
	"APP_ENV", "LOG_LEVEL", "NODE_BOARD", "NODE_PERIPHERAL",
	"NODE_DEVICE_NAME", "NODE_SERVICE_UUID", "NODE_CHARACTERISTIC_UUID",
	"NODE_ADVERTISING_BOUND", "NODE_SAMPLE_COUNT", "NODE_SLEEP_DURATION",
	"NODE_SENSOR_PIN", "NODE_INDICATOR_PIN", "ADS1115_ADDRESS", "ADC_FULL_SCALE_V",
	"I2C_BUS", "SIM_ATTACH_AFTER", "SIM_RAW", "SIM_JITTER",
}

var collectorEnv = []string{
	"APP_ENV", "LOG_LEVEL", "BLE_ADAPTER", "COLLECTOR_LOCAL_NAME",
	"COLLECTOR_SERVICE_UUID", "COLLECTOR_CHARACTERISTIC_UUID", "COLLECTOR_STATION_ID",
	"COLLECTOR_LINK_TIMEOUT", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID",
	"MQTT_TOPIC_PREFIX", "SQLITE_PATH", "HTTP_ADDR",
}

func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadNodeFromEnv_Defaults(t *testing.T) {
	clearEnv(t, nodeEnv)

	got, err := LoadNodeFromEnv()
	if err != nil {
		t.Fatalf("LoadNodeFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.Board != "sim" || got.Peripheral != "sim" {
		t.Errorf("Board, Peripheral = %q, %q, want sim, sim", got.Board, got.Peripheral)
	}
	if got.Wake != wake.DefaultConfig() {
		t.Errorf("Wake = %+v, want defaults", got.Wake)
	}
	if got.ADS1115Addr != 0x48 {
		t.Errorf("ADS1115Addr = 0x%X, want 0x48", got.ADS1115Addr)
	}
	if got.SimAttachAfter != 5 || got.SimRaw != 310 {
		t.Errorf("SimAttachAfter, SimRaw = %d, %d, want 5, 310", got.SimAttachAfter, got.SimRaw)
	}
}

func TestLoadNodeFromEnv_Overrides(t *testing.T) {
	clearEnv(t, nodeEnv)
	t.Setenv("NODE_ADVERTISING_BOUND", "30")
	t.Setenv("NODE_SAMPLE_COUNT", " 4 ")
	t.Setenv("NODE_SLEEP_DURATION", "2m")
	t.Setenv("NODE_DEVICE_NAME", "kitchen")

	got, err := LoadNodeFromEnv()
	if err != nil {
		t.Fatalf("LoadNodeFromEnv() error = %v, want nil", err)
	}
	if got.Wake.AdvertisingBound != 30 {
		t.Errorf("AdvertisingBound = %d, want 30", got.Wake.AdvertisingBound)
	}
	if got.Wake.SampleCount != 4 {
		t.Errorf("SampleCount = %d, want 4", got.Wake.SampleCount)
	}
	if got.Wake.SleepDuration != 2*time.Minute {
		t.Errorf("SleepDuration = %v, want 2m", got.Wake.SleepDuration)
	}
	if got.Wake.DeviceName != "kitchen" {
		t.Errorf("DeviceName = %q, want %q", got.Wake.DeviceName, "kitchen")
	}
}

func TestLoadNodeFromEnv_PeriphBoard(t *testing.T) {
	clearEnv(t, nodeEnv)
	t.Setenv("NODE_BOARD", "periph")
	t.Setenv("ADC_FULL_SCALE_V", "2.048")

	got, err := LoadNodeFromEnv()
	if err != nil {
		t.Fatalf("LoadNodeFromEnv() error = %v, want nil", err)
	}
	if got.Wake.ADCMax != periph.ADCMax {
		t.Errorf("ADCMax = %v, want %v", got.Wake.ADCMax, periph.ADCMax)
	}
	if got.Wake.VRef != 2.048 {
		t.Errorf("VRef = %v, want 2.048", got.Wake.VRef)
	}
	if got.Wake.SensorPin != 0 {
		t.Errorf("SensorPin = %d, want 0", got.Wake.SensorPin)
	}
}

func TestLoadNodeFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "app env", key: "APP_ENV", val: "staging"},
		{name: "log level", key: "LOG_LEVEL", val: "loud"},
		{name: "board", key: "NODE_BOARD", val: "arduino"},
		{name: "peripheral", key: "NODE_PERIPHERAL", val: "wifi"},
		{name: "bound not int", key: "NODE_ADVERTISING_BOUND", val: "sixty"},
		{name: "bound zero", key: "NODE_ADVERTISING_BOUND", val: "0"},
		{name: "sleep duration", key: "NODE_SLEEP_DURATION", val: "15"},
		{name: "service uuid", key: "NODE_SERVICE_UUID", val: "nope"},
		{name: "ads address", key: "ADS1115_ADDRESS", val: "0xZZ"},
		{name: "full scale", key: "ADC_FULL_SCALE_V", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, nodeEnv)
			t.Setenv(tt.key, tt.val)

			if _, err := LoadNodeFromEnv(); err == nil {
				t.Fatalf("LoadNodeFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadCollectorFromEnv_Defaults(t *testing.T) {
	clearEnv(t, collectorEnv)

	got, err := LoadCollectorFromEnv()
	if err != nil {
		t.Fatalf("LoadCollectorFromEnv() error = %v, want nil", err)
	}
	if got.MQTTBroker != "localhost" || got.MQTTPort != 1883 {
		t.Errorf("MQTT = %s:%d, want localhost:1883", got.MQTTBroker, got.MQTTPort)
	}
	if got.ServiceUUID != wake.DefaultServiceUUID {
		t.Errorf("ServiceUUID = %q, want %q", got.ServiceUUID, wake.DefaultServiceUUID)
	}
	if got.LinkTimeout != 2*time.Minute {
		t.Errorf("LinkTimeout = %v, want 2m", got.LinkTimeout)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
}

func TestLoadCollectorFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "mqtt port", key: "MQTT_PORT", val: "port"},
		{name: "link timeout", key: "COLLECTOR_LINK_TIMEOUT", val: "soon"},
		{name: "link timeout zero", key: "COLLECTOR_LINK_TIMEOUT", val: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, collectorEnv)
			t.Setenv(tt.key, tt.val)
			if _, err := LoadCollectorFromEnv(); err == nil {
				t.Fatalf("LoadCollectorFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
