// Package wake implements one wake cycle of a battery powered sensor node:
// advertise with a timeout, measure and notify if a peer attached, then
// enter deep sleep on a wake timer.
package wake

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrBootstrap = errors.New("wake: bootstrap failed")
	ErrCycleDone = errors.New("wake: cycle already run")
)

// Phase is the controller's position in the wake cycle.
type Phase uint8

const (
	PhaseBooting Phase = iota
	PhaseAdvertising
	PhaseMeasuring
	PhasePublishing
	PhaseSleeping
)

func (p Phase) String() string {
	switch p {
	case PhaseBooting:
		return "booting"
	case PhaseAdvertising:
		return "advertising"
	case PhaseMeasuring:
		return "measuring"
	case PhasePublishing:
		return "publishing"
	case PhaseSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// CycleReport is what RunCycle saw. On hardware it is never observed since
// deep sleep does not return.
type CycleReport struct {
	Outcome   State
	Attempts  int
	Reading   float64
	Payload   string
	Published bool
}

type Option func(*Controller)

// WithSleeper replaces time.Sleep for every in-cycle wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller orchestrates a single wake cycle.
type Controller struct {
	cfg     Config
	devices Devices
	sleep   Sleeper
	logger  *slog.Logger

	mu    sync.Mutex
	ran   bool
	phase Phase
}

// NewController validates cfg and requires every device. Options override
// the sleeper and logger.
func NewController(cfg Config, devices Devices, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if devices.Peripheral == nil || devices.Analog == nil || devices.Output == nil || devices.Power == nil {
		return nil, fmt.Errorf("%w: all devices are required", ErrInvalidConfig)
	}

	c := &Controller{
		cfg:     cfg,
		devices: devices,
		sleep:   time.Sleep,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Phase reports how far the current cycle has progressed.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.logger.Debug("controller: phase", "phase", p.String())
}

// RunCycle performs bootstrap, advertising, the conditional measure and
// notify, and the final sleep. It may be called once. A bootstrap error
// returns before sleep is reached.
func (c *Controller) RunCycle() (CycleReport, error) {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return CycleReport{}, ErrCycleDone
	}
	c.ran = true
	c.mu.Unlock()

	c.setPhase(PhaseBooting)
	indicator := NewIndicator(c.devices.Output, c.cfg.IndicatorPin)
	session := NewSession(c.devices.Peripheral, indicator, c.cfg, c.sleep, c.logger)

	char, err := c.bootstrap(indicator, session)
	if err != nil {
		c.logger.Error("controller: bootstrap failed", "error", err)
		return CycleReport{}, err
	}

	c.setPhase(PhaseAdvertising)
	result, err := session.Advertise()
	if err != nil {
		return CycleReport{}, err
	}

	report := CycleReport{Outcome: result.Outcome, Attempts: result.Attempts}

	if result.Outcome == StateConnected {
		c.setPhase(PhaseMeasuring)
		sampler := NewSampler(c.devices.Analog, c.cfg, c.sleep, c.logger)
		report.Reading = sampler.SampleAverage(c.cfg.SensorPin, c.cfg.SampleCount, c.cfg.SampleInterval)
		c.logger.Info("controller: reading averaged", "celsius", report.Reading, "samples", c.cfg.SampleCount)

		if !session.Connected() {
			c.logger.Warn("controller: peer detached before notify; publishing anyway")
		}

		c.setPhase(PhasePublishing)
		publisher := NewPublisher(char, c.cfg.SettleDelay, c.sleep, c.logger)
		report.Payload = publisher.Publish(report.Reading).String()
		report.Published = true
	}

	c.enterSleep()
	return report, nil
}

func (c *Controller) bootstrap(indicator *Indicator, session *Session) (Characteristic, error) {
	if err := c.devices.Analog.ConfigureInput(c.cfg.SensorPin); err != nil {
		return nil, fmt.Errorf("%w: configure sensor pin %d: %v", ErrBootstrap, c.cfg.SensorPin, err)
	}
	if err := indicator.Configure(); err != nil {
		return nil, fmt.Errorf("%w: configure indicator pin %d: %v", ErrBootstrap, c.cfg.IndicatorPin, err)
	}

	p := c.devices.Peripheral
	p.SetSessionListener(session)
	if err := p.Enable(c.cfg.DeviceName); err != nil {
		return nil, fmt.Errorf("%w: enable radio: %v", ErrBootstrap, err)
	}

	char, err := p.AddService(ServiceConfig{
		ServiceUUID:        c.cfg.ServiceUUID,
		CharacteristicUUID: c.cfg.CharacteristicUUID,
		Properties:         PropertyRead | PropertyNotify,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: add service: %v", ErrBootstrap, err)
	}

	c.logger.Info("controller: peripheral ready",
		"name", c.cfg.DeviceName,
		"service", c.cfg.ServiceUUID,
		"characteristic", c.cfg.CharacteristicUUID,
	)
	return char, nil
}

func (c *Controller) enterSleep() {
	c.setPhase(PhaseSleeping)
	if err := c.devices.Power.EnableTimerWake(c.cfg.SleepDuration); err != nil {
		c.logger.Error("controller: wake timer not programmed", "duration", c.cfg.SleepDuration, "error", err)
	}
	c.logger.Info("controller: entering deep sleep", "duration", c.cfg.SleepDuration)
	c.devices.Power.EnterDeepSleep()
}
