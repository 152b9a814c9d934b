package wake

import (
	"log/slog"
	"time"
)

// Sampler converts raw analog readings into degrees Celsius and averages them.
type Sampler struct {
	input  AnalogInput
	adcMax float64
	vref   float64
	scale  float64
	sleep  Sleeper
	logger *slog.Logger
}

// NewSampler takes the conversion constants from cfg.
func NewSampler(input AnalogInput, cfg Config, sleep Sleeper, logger *slog.Logger) *Sampler {
	if sleep == nil {
		sleep = time.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		input:  input,
		adcMax: cfg.ADCMax,
		vref:   cfg.VRef,
		scale:  cfg.Scale,
		sleep:  sleep,
		logger: logger,
	}
}

// Convert applies temperature = raw * (VRef / ADCMax) / Scale.
func (s *Sampler) Convert(raw int) float64 {
	voltage := float64(raw) * (s.vref / s.adcMax)
	return voltage / s.scale
}

// SampleAverage reads pin count times, interval apart, and returns the plain
// arithmetic mean of the converted readings. Raw values outside [0, ADCMax]
// are used as read.
func (s *Sampler) SampleAverage(pin, count int, interval time.Duration) float64 {
	if count < 1 {
		return 0
	}

	var total float64
	outOfRange := 0
	for i := 0; i < count; i++ {
		raw := s.input.ReadRaw(pin)
		if raw < 0 || float64(raw) > s.adcMax {
			outOfRange++
		}
		total += s.Convert(raw)
		s.sleep(interval)
	}

	if outOfRange > 0 {
		s.logger.Warn("sampler: raw readings outside adc range",
			"pin", pin,
			"count", outOfRange,
			"adc_max", s.adcMax,
		)
	}

	return total / float64(count)
}
