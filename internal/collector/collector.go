// Package collector receives readings from sleeping notifier nodes over BLE,
// stores them in SQLite and relays them to MQTT.
package collector

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cloudpico-notifier/internal/ble"
	"cloudpico-notifier/internal/types"
)

const queueSize = 16

// duplicateWindow is how long an identical value from the same node is
// treated as a repeat of the same notification.
const duplicateWindow = 2 * time.Second

var ErrDuplicate = errors.New("collector: duplicate notification")

// Source delivers node notifications until ctx is done; *ble.Central
// satisfies it.
type Source interface {
	Run(ctx context.Context, onNotify func(ble.Notification)) error
}

type Store interface {
	InsertReading(ctx context.Context, r types.Reading) (int64, error)
	TouchDevice(ctx context.Context, addr, localName string, seen time.Time) error
}

type Uplink interface {
	PublishTelemetry(t types.Telemetry) error
}

type Collector struct {
	stationID string
	store     Store
	uplink    Uplink
	logger    *slog.Logger

	seq     atomic.Int64
	dropped atomic.Int64

	mu   sync.Mutex
	last map[string]lastValue
}

type lastValue struct {
	payload string
	at      time.Time
}

// New returns a collector that tags readings with stationID. uplink may be
// nil to store only.
func New(stationID string, store Store, uplink Uplink, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		stationID: stationID,
		store:     store,
		uplink:    uplink,
		logger:    logger,
		last:      make(map[string]lastValue),
	}
}

// repeated records n and reports whether the same node sent the same value
// within duplicateWindow.
func (c *Collector) repeated(n ble.Notification, at time.Time) bool {
	if n.Address == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.last[n.Address]
	c.last[n.Address] = lastValue{payload: string(n.Value), at: at}
	return ok && prev.payload == string(n.Value) && at.Sub(prev.at) < duplicateWindow && !at.Before(prev.at)
}

// Handle parses, stores and relays one notification. A failed relay is
// logged; the reading is already stored.
func (c *Collector) Handle(ctx context.Context, n ble.Notification) (types.Reading, error) {
	temp, err := ble.ParseReading(n.Value)
	if err != nil {
		c.logger.Warn("collector: dropping notification", "addr", n.Address, "error", err)
		return types.Reading{}, err
	}

	at := n.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	if c.repeated(n, at) {
		c.logger.Debug("collector: duplicate notification", "addr", n.Address, "data", hex.EncodeToString(n.Value))
		return types.Reading{}, ErrDuplicate
	}
	rssi := int(n.RSSI)
	rec := types.Reading{
		StationID:   c.stationID,
		DeviceAddr:  n.Address,
		Time:        at.UTC(),
		Temperature: temp,
		Payload:     string(n.Value),
		RSSI:        &rssi,
	}

	id, err := c.store.InsertReading(ctx, rec)
	if err != nil {
		return types.Reading{}, fmt.Errorf("store reading: %w", err)
	}
	rec.ID = id

	if n.Address != "" {
		if err := c.store.TouchDevice(ctx, n.Address, n.LocalName, rec.Time); err != nil {
			c.logger.Warn("collector: device bookkeeping failed", "addr", n.Address, "error", err)
		}
	}

	seq := int(c.seq.Add(1))
	c.logger.Info("collector: reading stored", "id", id, "addr", n.Address, "temperature_c", temp, "seq", seq)

	if c.uplink != nil {
		err := c.uplink.PublishTelemetry(types.Telemetry{
			StationID:   c.stationID,
			DeviceName:  n.LocalName,
			DeviceAddr:  n.Address,
			Timestamp:   rec.Time,
			Temperature: &temp,
			RSSI:        &rssi,
			Sequence:    &seq,
		})
		if err != nil {
			c.logger.Warn("collector: relay failed", "id", id, "error", err)
		}
	}
	return rec, nil
}

// Run drives src and handles its notifications on a separate goroutine so
// the radio callback never waits on storage or the broker. Notifications
// arriving while the queue is full are dropped. Queued notifications are
// still stored after ctx ends.
func (c *Collector) Run(ctx context.Context, src Source) error {
	queue := make(chan ble.Notification, queueSize)
	handleCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := range queue {
			if _, err := c.Handle(handleCtx, n); err != nil && !errors.Is(err, ble.ErrBadPayload) && !errors.Is(err, ErrDuplicate) {
				c.logger.Error("collector: handle notification", "addr", n.Address, "error", err)
			}
		}
	}()

	var (
		mu     sync.Mutex
		closed bool
	)
	err := src.Run(ctx, func(n ble.Notification) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case queue <- n:
		default:
			c.dropped.Add(1)
			c.logger.Warn("collector: queue full, notification dropped", "addr", n.Address)
		}
	})

	mu.Lock()
	closed = true
	close(queue)
	mu.Unlock()
	wg.Wait()
	return err
}

// Dropped counts notifications lost to a full queue.
func (c *Collector) Dropped() int64 { return c.dropped.Load() }
