// Package ble adapts tinygo.org/x/bluetooth to the node and the collector.
package ble

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-notifier/internal/wake"
)

const advertisingInterval = 100 * time.Millisecond

// Peripheral is the node side GATT server: one service with one
// read+notify characteristic, advertised by name and service UUID.
type Peripheral struct {
	adapter *bluetooth.Adapter
	logger  *slog.Logger

	mu          sync.Mutex
	listener    wake.SessionListener
	name        string
	serviceUUID bluetooth.UUID
	hasService  bool
	adv         *bluetooth.Advertisement
	advertising bool
}

func NewPeripheral(adapter *bluetooth.Adapter, logger *slog.Logger) *Peripheral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peripheral{adapter: adapter, logger: logger}
}

func (p *Peripheral) SetSessionListener(l wake.SessionListener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// Enable installs the connect handler and enables the adapter. The handler
// has to be in place before Enable on some stacks.
func (p *Peripheral) Enable(name string) error {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()

	p.adapter.SetConnectHandler(p.onConnect)

	p.logger.Info("ble: enabling adapter", "name", name)
	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}
	p.logger.Info("ble: adapter enabled")
	return nil
}

func (p *Peripheral) AddService(svc wake.ServiceConfig) (wake.Characteristic, error) {
	serviceUUID, err := bluetooth.ParseUUID(svc.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid %q: %w", svc.ServiceUUID, err)
	}
	charUUID, err := bluetooth.ParseUUID(svc.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid %q: %w", svc.CharacteristicUUID, err)
	}

	char := &characteristic{}
	// Notify characteristics get their client configuration descriptor from the stack.
	if err := p.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &char.handle,
				UUID:   charUUID,
				Value:  []byte{},
				Flags:  permissions(svc.Properties),
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("add service %s: %w", svc.ServiceUUID, err)
	}

	p.mu.Lock()
	p.serviceUUID = serviceUUID
	p.hasService = true
	p.mu.Unlock()

	p.logger.Info("ble: service registered", "service", serviceUUID.String(), "characteristic", charUUID.String())
	return char, nil
}

// StartAdvertising starts the default advertisement. Repeated calls while
// already advertising are no-ops.
func (p *Peripheral) StartAdvertising() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.advertising {
		return nil
	}
	if p.adv == nil {
		opts := bluetooth.AdvertisementOptions{
			LocalName: p.name,
			Interval:  bluetooth.NewDuration(advertisingInterval),
		}
		if p.hasService {
			opts.ServiceUUIDs = []bluetooth.UUID{p.serviceUUID}
		}
		adv := p.adapter.DefaultAdvertisement()
		if err := adv.Configure(opts); err != nil {
			return fmt.Errorf("adv configure: %w", err)
		}
		p.adv = adv
	}
	if err := p.adv.Start(); err != nil {
		return fmt.Errorf("adv start: %w", err)
	}
	p.advertising = true
	p.logger.Debug("ble: advertising started", "name", p.name)
	return nil
}

// StopAdvertising stops a running advertisement.
func (p *Peripheral) StopAdvertising() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.advertising || p.adv == nil {
		return nil
	}
	p.advertising = false
	return p.adv.Stop()
}

func (p *Peripheral) onConnect(device bluetooth.Device, connected bool) {
	p.mu.Lock()
	l := p.listener
	// Stacks stop advertising on connect; allow the next attempt to restart it.
	p.advertising = false
	p.mu.Unlock()

	if l == nil {
		return
	}
	if connected {
		l.HandleSessionEvent(wake.PeerAttached)
	} else {
		l.HandleSessionEvent(wake.PeerDetached)
	}
}

func permissions(props wake.Property) bluetooth.CharacteristicPermissions {
	var flags bluetooth.CharacteristicPermissions
	if props&wake.PropertyRead != 0 {
		flags |= bluetooth.CharacteristicReadPermission
	}
	if props&wake.PropertyNotify != 0 {
		flags |= bluetooth.CharacteristicNotifyPermission
	}
	return flags
}

type characteristic struct {
	handle bluetooth.Characteristic

	mu    sync.Mutex
	value []byte
}

func (c *characteristic) SetValue(value []byte) error {
	c.mu.Lock()
	c.value = append(c.value[:0], value...)
	c.mu.Unlock()
	return nil
}

// Notify writes the current value through the local handle, which the stack
// forwards to subscribed peers.
func (c *characteristic) Notify() error {
	c.mu.Lock()
	value := append([]byte(nil), c.value...)
	c.mu.Unlock()

	if _, err := c.handle.Write(value); err != nil {
		return fmt.Errorf("characteristic write: %w", err)
	}
	return nil
}
