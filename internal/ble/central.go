//go:build !tinygo

package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

const defaultLinkTimeout = 2 * time.Minute

// Notification is one characteristic update received from a node.
type Notification struct {
	Address    string
	LocalName  string
	RSSI       int16
	Value      []byte
	ReceivedAt time.Time
}

// Filter selects which advertisers the central connects to. An advertiser
// matches if it carries the local name or the service UUID.
type Filter struct {
	LocalName   string
	ServiceUUID bluetooth.UUID
}

func (f Filter) Match(localName string, hasService bool) bool {
	if f.LocalName != "" && localName == f.LocalName {
		return true
	}
	return hasService
}

type CentralOptions struct {
	LocalName          string
	ServiceUUID        string
	CharacteristicUUID string
	// LinkTimeout bounds how long one connection is held waiting for the
	// node to go to sleep.
	LinkTimeout time.Duration
}

// Central scans for nodes, subscribes to their reading characteristic and
// forwards every notification. Nodes drop the link when they sleep, after
// which scanning resumes.
type Central struct {
	adapter  *bluetooth.Adapter
	filter   Filter
	charUUID bluetooth.UUID
	timeout  time.Duration
	logger   *slog.Logger

	disconnects chan string
}

func NewCentral(adapter *bluetooth.Adapter, opts CentralOptions, logger *slog.Logger) (*Central, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := bluetooth.ParseUUID(opts.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid %q: %w", opts.ServiceUUID, err)
	}
	char, err := bluetooth.ParseUUID(opts.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid %q: %w", opts.CharacteristicUUID, err)
	}
	timeout := opts.LinkTimeout
	if timeout <= 0 {
		timeout = defaultLinkTimeout
	}
	return &Central{
		adapter:     adapter,
		filter:      Filter{LocalName: opts.LocalName, ServiceUUID: svc},
		charUUID:    char,
		timeout:     timeout,
		logger:      logger,
		disconnects: make(chan string, 1),
	}, nil
}

// Run blocks until ctx is done.
func (c *Central) Run(ctx context.Context, onNotify func(Notification)) error {
	c.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		c.handleConnect(device.Address.String(), connected)
	})

	c.logger.Info("ble: enabling adapter")
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		found, err := c.scan(ctx)
		if err != nil {
			return err
		}
		if found == nil {
			return nil
		}

		if err := c.follow(ctx, *found, onNotify); err != nil {
			c.logger.Warn("ble: link failed", "addr", found.Address.String(), "error", err)
		}
	}
}

// handleConnect queues a disconnect for the link being held. Events beyond
// the one buffered slot are dropped.
func (c *Central) handleConnect(addr string, connected bool) {
	if connected {
		return
	}
	select {
	case c.disconnects <- addr:
	default:
	}
}

// scan blocks until a matching advertiser is seen. It returns nil, nil if
// ctx ends first.
func (c *Central) scan(ctx context.Context) (*bluetooth.ScanResult, error) {
	var found *bluetooth.ScanResult

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.adapter.StopScan()
		case <-done:
		}
	}()

	c.logger.Info("ble: scanning", "filter_name", c.filter.LocalName, "filter_service", c.filter.ServiceUUID.String())
	err := c.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if found != nil {
			return
		}
		if !c.filter.Match(r.LocalName(), r.HasServiceUUID(c.filter.ServiceUUID)) {
			return
		}
		res := r
		found = &res
		_ = a.StopScan()
	})

	if ctx.Err() != nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}
	return found, nil
}

func (c *Central) follow(ctx context.Context, r bluetooth.ScanResult, onNotify func(Notification)) error {
	p := peer{addr: r.Address.String(), name: r.LocalName(), rssi: r.RSSI}

	c.logger.Info("ble: connecting", "addr", p.addr, "name", p.name, "rssi", p.rssi)
	device, err := c.adapter.Connect(r.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := device.Disconnect(); err != nil {
			c.logger.Debug("ble: disconnect", "addr", p.addr, "error", err)
		}
	}()

	services, err := device.DiscoverServices([]bluetooth.UUID{c.filter.ServiceUUID})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return errors.New("service not found")
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{c.charUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return errors.New("characteristic not found")
	}

	_, err = c.hold(ctx, p, &chars[0], onNotify)
	return err
}

// readingCharacteristic is the part of a discovered characteristic a link uses.
type readingCharacteristic interface {
	EnableNotifications(callback func(buf []byte)) error
	Read(data []byte) (int, error)
}

type peer struct {
	addr string
	name string
	rssi int16
}

func (p peer) notification(buf []byte) Notification {
	return Notification{
		Address:    p.addr,
		LocalName:  p.name,
		RSSI:       p.rssi,
		Value:      append([]byte(nil), buf...),
		ReceivedAt: time.Now(),
	}
}

type linkEnd int

const (
	linkCancelled linkEnd = iota
	linkDropped
	linkTimedOut
)

// readBufSize fits one value in the default ATT MTU.
const readBufSize = 20

// hold subscribes to the reading characteristic and forwards what the node
// publishes until the peer at p.addr drops, the link times out, or ctx ends.
// The current value is read once after subscribing, since the node may have
// notified before the subscription was in place.
func (c *Central) hold(ctx context.Context, p peer, char readingCharacteristic, onNotify func(Notification)) (linkEnd, error) {
	if onNotify == nil {
		onNotify = func(Notification) {}
	}

	// Disconnects left over from an earlier link belong to that link.
	for drained := false; !drained; {
		select {
		case gone := <-c.disconnects:
			c.logger.Debug("ble: dropped stale disconnect", "addr", gone)
		default:
			drained = true
		}
	}

	err := char.EnableNotifications(func(buf []byte) {
		onNotify(p.notification(buf))
	})
	if err != nil {
		return linkCancelled, fmt.Errorf("enable notifications: %w", err)
	}
	c.logger.Info("ble: subscribed", "addr", p.addr, "characteristic", c.charUUID.String())

	buf := make([]byte, readBufSize)
	n, err := char.Read(buf)
	switch {
	case err != nil:
		c.logger.Debug("ble: initial read", "addr", p.addr, "error", err)
	case n > 0:
		onNotify(p.notification(buf[:n]))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return linkCancelled, nil
		case gone := <-c.disconnects:
			if gone != p.addr {
				c.logger.Debug("ble: ignoring disconnect of other peer", "addr", gone, "holding", p.addr)
				continue
			}
			c.logger.Info("ble: peer disconnected", "addr", gone)
			return linkDropped, nil
		case <-timer.C:
			c.logger.Info("ble: link timeout", "addr", p.addr, "timeout", c.timeout)
			return linkTimedOut, nil
		}
	}
}
