package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloudpico-notifier/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestTelemetryTopic(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "stations", want: "stations/beverage/telemetry"},
		{prefix: "/home/kitchen/", want: "home/kitchen/beverage/telemetry"},
		{prefix: "", want: "beverage/telemetry"},
	}
	for _, tt := range tests {
		if got := TelemetryTopic(tt.prefix, "beverage"); got != tt.want {
			t.Errorf("TelemetryTopic(%q) = %q; want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestEncodeTelemetry(t *testing.T) {
	temp := 24.98
	ts := time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	topic, data, err := encodeTelemetry("stations", types.Telemetry{
		StationID:   "beverage",
		DeviceAddr:  "AA:BB",
		Timestamp:   ts,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("encodeTelemetry() error = %v", err)
	}
	if topic != "stations/beverage/telemetry" {
		t.Errorf("topic = %q", topic)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got["temperature_c"] != 24.98 {
		t.Errorf("temperature_c = %v; want 24.98", got["temperature_c"])
	}
	if got["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v; want UTC", got["timestamp"])
	}
	if _, ok := got["rssi"]; ok {
		t.Error("rssi present although unset")
	}
}

func TestEncodeTelemetry_FillsTimestamp(t *testing.T) {
	_, data, err := encodeTelemetry("stations", types.Telemetry{StationID: "s"})
	if err != nil {
		t.Fatalf("encodeTelemetry() error = %v", err)
	}
	var got types.Telemetry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.Timestamp.IsZero() || time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp = %v; want now", got.Timestamp)
	}
}

func TestEncodeTelemetry_NoStation(t *testing.T) {
	if _, _, err := encodeTelemetry("stations", types.Telemetry{}); err == nil {
		t.Fatal("encodeTelemetry() error = nil, want non-nil")
	}
}

func TestPublishTelemetry_NotConnected(t *testing.T) {
	c := NewClient(Options{Broker: "127.0.0.1", Port: 1, ClientID: "t", TopicPrefix: "stations"}, quiet)
	err := c.PublishTelemetry(types.Telemetry{StationID: "s"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishTelemetry() error = %v; want ErrNotConnected", err)
	}
}

func TestConnect_AfterDisconnect(t *testing.T) {
	c := NewClient(Options{Broker: "127.0.0.1", Port: 1, ClientID: "t"}, quiet)
	c.Disconnect()
	c.Disconnect()

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect() after Disconnect error = nil, want non-nil")
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	c := NewClient(Options{Broker: "127.0.0.1", Port: 1, ClientID: "t"}, quiet)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := c.Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v; want context.DeadlineExceeded", err)
	}
}
