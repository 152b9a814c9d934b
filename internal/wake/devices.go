package wake

import "time"

// Property is a characteristic capability bit.
type Property uint8

const (
	PropertyRead Property = 1 << iota
	PropertyNotify
)

// ServiceConfig describes the single service and characteristic the node exposes.
type ServiceConfig struct {
	ServiceUUID        string
	CharacteristicUUID string
	Properties         Property
}

// Characteristic is the publish/subscribe slot a peer reads or subscribes to.
type Characteristic interface {
	SetValue(value []byte) error
	// Notify pushes the current value to subscribed peers. Delivery is best-effort.
	Notify() error
}

// Peripheral is the radio stack seen from the wake cycle.
type Peripheral interface {
	Enable(name string) error
	AddService(svc ServiceConfig) (Characteristic, error)
	StartAdvertising() error
	// SetSessionListener registers the receiver of peer attach/detach events.
	// Events may arrive from any goroutine or interrupt context.
	SetSessionListener(l SessionListener)
}

type AnalogInput interface {
	ConfigureInput(pin int) error
	// ReadRaw returns a raw reading, nominally in [0, ADCMax].
	ReadRaw(pin int) int
}

type DigitalOutput interface {
	ConfigureOutput(pin int) error
	WriteLevel(pin int, high bool)
}

type PowerManager interface {
	EnableTimerWake(d time.Duration) error
	// EnterDeepSleep does not return on hardware. Test doubles may return.
	EnterDeepSleep()
}

// Devices groups the collaborators a node is built from.
type Devices struct {
	Peripheral Peripheral
	Analog     AnalogInput
	Output     DigitalOutput
	Power      PowerManager
}

// Sleeper blocks for the given duration.
type Sleeper func(time.Duration)
