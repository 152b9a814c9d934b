//go:build tinygo

// Package pico maps the node's hardware collaborators onto a Raspberry Pi
// Pico 2 W through TinyGo's machine package.
package pico

import (
	"machine"
	"time"
)

// ADCMax is the full scale of machine.ADC.Get, which is 16-bit scaled
// regardless of the converter's native resolution.
const ADCMax = 65535

// SensorPin is GP26 (ADC0); only GP26-GP28 are analog capable.
const SensorPin = 26

type Analog struct {
	adcs map[int]machine.ADC
}

func NewAnalog() *Analog {
	machine.InitADC()
	return &Analog{adcs: make(map[int]machine.ADC)}
}

func (a *Analog) ConfigureInput(pin int) error {
	adc := machine.ADC{Pin: machine.Pin(pin)}
	adc.Configure(machine.ADCConfig{})
	a.adcs[pin] = adc
	return nil
}

func (a *Analog) ReadRaw(pin int) int {
	adc, ok := a.adcs[pin]
	if !ok {
		return 0
	}
	return int(adc.Get())
}

type Output struct{}

func (Output) ConfigureOutput(pin int) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.Pin(pin).Low()
	return nil
}

func (Output) WriteLevel(pin int, high bool) {
	machine.Pin(pin).Set(high)
}

// Power emulates deep sleep: it idles for the wake timer, then resets the
// chip so the next cycle starts from power-on.
type Power struct {
	wake time.Duration
}

func (p *Power) EnableTimerWake(d time.Duration) error {
	p.wake = d
	return nil
}

func (p *Power) EnterDeepSleep() {
	time.Sleep(p.wake)
	machine.CPUReset()
	for {
		time.Sleep(time.Second)
	}
}
