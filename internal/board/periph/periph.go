// Package periph runs the node's analog input and indicator on a Linux board:
// an ADS1115 over I2C for the LM35 and a GPIO line for the LED.
package periph

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// ADCMax is the largest single-ended ADS1115 conversion.
const ADCMax = 32767

const sampleRate = 128 * physic.Hertz

// Init loads the periph host drivers. Safe to call more than once.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// Analog reads ADS1115 single-ended channels 0-3; the node's sensor pin is
// the channel number.
type Analog struct {
	bus       i2c.BusCloser
	dev       *ads1x15.Dev
	fullScale physic.ElectricPotential
	logger    *slog.Logger

	mu   sync.Mutex
	pins map[int]ads1x15.PinADC
}

// OpenAnalog opens the I2C bus ("" for the default bus) and the ADS1115 at
// addr. fullScale is the programmable gain range and must match the node's VRef.
func OpenAnalog(busName string, addr uint16, fullScale physic.ElectricPotential, logger *slog.Logger) (*Analog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ads1115 at 0x%02X: %w", addr, err)
	}
	return &Analog{
		bus:       bus,
		dev:       dev,
		fullScale: fullScale,
		logger:    logger,
		pins:      make(map[int]ads1x15.PinADC),
	}, nil
}

func channel(pin int) (ads1x15.Channel, error) {
	switch pin {
	case 0:
		return ads1x15.Channel0, nil
	case 1:
		return ads1x15.Channel1, nil
	case 2:
		return ads1x15.Channel2, nil
	case 3:
		return ads1x15.Channel3, nil
	default:
		return 0, fmt.Errorf("ads1115 has no channel %d", pin)
	}
}

func (a *Analog) ConfigureInput(pin int) error {
	ch, err := channel(pin)
	if err != nil {
		return err
	}
	p, err := a.dev.PinForChannel(ch, a.fullScale, sampleRate, ads1x15.BestQuality)
	if err != nil {
		return fmt.Errorf("ads1115 channel %d: %w", pin, err)
	}
	a.mu.Lock()
	a.pins[pin] = p
	a.mu.Unlock()
	return nil
}

// ReadRaw returns the raw conversion. Read errors are logged and read as 0.
func (a *Analog) ReadRaw(pin int) int {
	a.mu.Lock()
	p, ok := a.pins[pin]
	a.mu.Unlock()
	if !ok {
		a.logger.Warn("periph: read from unconfigured channel", "pin", pin)
		return 0
	}
	s, err := p.Read()
	if err != nil {
		a.logger.Warn("periph: adc read failed", "pin", pin, "error", err)
		return 0
	}
	return int(s.Raw)
}

func (a *Analog) Close() error {
	a.mu.Lock()
	for pin, p := range a.pins {
		if err := p.Halt(); err != nil {
			a.logger.Warn("periph: halt channel", "pin", pin, "error", err)
		}
	}
	a.pins = map[int]ads1x15.PinADC{}
	a.mu.Unlock()
	return a.bus.Close()
}

// Output drives GPIO lines by BCM number.
type Output struct {
	logger *slog.Logger

	mu   sync.Mutex
	pins map[int]gpio.PinIO
}

func NewOutput(logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default()
	}
	return &Output{logger: logger, pins: make(map[int]gpio.PinIO)}
}

func (o *Output) ConfigureOutput(pin int) error {
	if err := Init(); err != nil {
		return err
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return fmt.Errorf("gpio %d not found", pin)
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio %d out: %w", pin, err)
	}
	o.mu.Lock()
	o.pins[pin] = p
	o.mu.Unlock()
	return nil
}

func (o *Output) WriteLevel(pin int, high bool) {
	o.mu.Lock()
	p, ok := o.pins[pin]
	o.mu.Unlock()
	if !ok {
		o.logger.Warn("periph: write to unconfigured gpio", "pin", pin)
		return
	}
	if err := p.Out(gpio.Level(high)); err != nil {
		o.logger.Warn("periph: gpio write failed", "pin", pin, "error", err)
	}
}
