package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"cloudpico-notifier/internal/types"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Options configures the broker connection.
type Options struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// Client publishes collector telemetry. It reconnects in the background
// once Connect has succeeded.
type Client struct {
	client    paho.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(o Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// TelemetryTopic is where readings for stationID are published.
func TelemetryTopic(prefix, stationID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return stationID + "/telemetry"
	}
	return prefix + "/" + stationID + "/telemetry"
}

// Connect waits for the first broker connection. It returns early on ctx
// cancellation or Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry the token may stay pending while paho retries.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishTelemetry publishes t at QoS 1 under its station topic.
func (c *Client) PublishTelemetry(t types.Telemetry) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	topic, data, err := encodeTelemetry(c.opts.TopicPrefix, t)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("failed to publish telemetry", "topic", topic, "error", err)
		return fmt.Errorf("publish telemetry: %w", err)
	}

	c.logger.Debug("published telemetry", "topic", topic, "station_id", t.StationID)
	return nil
}

func encodeTelemetry(prefix string, t types.Telemetry) (string, []byte, error) {
	if strings.TrimSpace(t.StationID) == "" {
		return "", nil, fmt.Errorf("station_id is required")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.Timestamp = t.Timestamp.UTC()
	data, err := json.Marshal(t)
	if err != nil {
		return "", nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return TelemetryTopic(prefix, t.StationID), data, nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
