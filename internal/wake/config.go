package wake

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults for an LM35 on a 12-bit ADC with a 3.3V reference.
const (
	DefaultDeviceName         = "crud.sh::beverage_notifier"
	DefaultServiceUUID        = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	DefaultCharacteristicUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"

	DefaultSensorPin    = 15
	DefaultIndicatorPin = 2

	DefaultAdvertisingBound = 60
	DefaultPollInterval     = time.Second
	DefaultSampleCount      = 10
	DefaultSampleInterval   = 10 * time.Millisecond
	DefaultADCMax           = 4095
	DefaultVRef             = 3.3
	DefaultScale            = 0.01
	DefaultSettleDelay      = 1000 * time.Millisecond
	DefaultSleepDuration    = 15 * time.Second
)

var ErrInvalidConfig = errors.New("wake: invalid config")

// Config holds everything one wake cycle needs. It is passed by value and
// never mutated once the controller is built.
type Config struct {
	DeviceName         string
	ServiceUUID        string
	CharacteristicUUID string

	SensorPin    int
	IndicatorPin int

	// AdvertisingBound is the number of advertising attempts, one per PollInterval.
	AdvertisingBound int
	PollInterval     time.Duration

	SampleCount    int
	SampleInterval time.Duration

	// ADCMax is the full-scale raw value, VRef the matching voltage and
	// Scale the sensor output in volts per degree Celsius.
	ADCMax float64
	VRef   float64
	Scale  float64

	// SettleDelay is how long the radio is given to flush a notification
	// before anything tears the process down.
	SettleDelay   time.Duration
	SleepDuration time.Duration
}

// DefaultConfig returns the shipped node configuration: the sensor on pin 15,
// the indicator on pin 2, a 60 second advertising window and 15 seconds of sleep.
func DefaultConfig() Config {
	return Config{
		DeviceName:         DefaultDeviceName,
		ServiceUUID:        DefaultServiceUUID,
		CharacteristicUUID: DefaultCharacteristicUUID,
		SensorPin:          DefaultSensorPin,
		IndicatorPin:       DefaultIndicatorPin,
		AdvertisingBound:   DefaultAdvertisingBound,
		PollInterval:       DefaultPollInterval,
		SampleCount:        DefaultSampleCount,
		SampleInterval:     DefaultSampleInterval,
		ADCMax:             DefaultADCMax,
		VRef:               DefaultVRef,
		Scale:              DefaultScale,
		SettleDelay:        DefaultSettleDelay,
		SleepDuration:      DefaultSleepDuration,
	}
}

// AdvertisingWindow is the longest the session can spend advertising.
func (c Config) AdvertisingWindow() time.Duration {
	return time.Duration(c.AdvertisingBound) * c.PollInterval
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("%w: device name is empty", ErrInvalidConfig)
	}
	if _, err := uuid.Parse(c.ServiceUUID); err != nil {
		return fmt.Errorf("%w: service uuid %q: %v", ErrInvalidConfig, c.ServiceUUID, err)
	}
	if _, err := uuid.Parse(c.CharacteristicUUID); err != nil {
		return fmt.Errorf("%w: characteristic uuid %q: %v", ErrInvalidConfig, c.CharacteristicUUID, err)
	}
	if c.ServiceUUID == c.CharacteristicUUID {
		return fmt.Errorf("%w: service and characteristic share uuid %q", ErrInvalidConfig, c.ServiceUUID)
	}
	if c.AdvertisingBound < 1 {
		return fmt.Errorf("%w: advertising bound must be at least 1, got %d", ErrInvalidConfig, c.AdvertisingBound)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalidConfig, c.PollInterval)
	}
	if c.SampleCount < 1 {
		return fmt.Errorf("%w: sample count must be at least 1, got %d", ErrInvalidConfig, c.SampleCount)
	}
	if c.ADCMax <= 0 || c.VRef <= 0 || c.Scale <= 0 {
		return fmt.Errorf("%w: adc max, vref and scale must be positive (got %v, %v, %v)", ErrInvalidConfig, c.ADCMax, c.VRef, c.Scale)
	}
	if c.SampleInterval < 0 || c.SettleDelay < 0 || c.SleepDuration < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}
