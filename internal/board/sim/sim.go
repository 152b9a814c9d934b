// Package sim provides simulated node hardware for running a wake cycle on a
// machine without a sensor, LED or radio.
package sim

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"cloudpico-notifier/internal/wake"
)

// Analog returns Raw plus uniform jitter in [-Jitter, Jitter].
type Analog struct {
	Raw    int
	Jitter int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAnalog(raw, jitter int, seed int64) *Analog {
	return &Analog{Raw: raw, Jitter: jitter, rnd: rand.New(rand.NewSource(seed))}
}

func (a *Analog) ConfigureInput(pin int) error { return nil }

func (a *Analog) ReadRaw(pin int) int {
	if a.Jitter <= 0 {
		return a.Raw
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Raw + a.rnd.Intn(2*a.Jitter+1) - a.Jitter
}

// Output logs level changes.
type Output struct {
	logger *slog.Logger

	mu     sync.Mutex
	levels map[int]bool
}

func NewOutput(logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default()
	}
	return &Output{logger: logger, levels: make(map[int]bool)}
}

func (o *Output) ConfigureOutput(pin int) error {
	o.mu.Lock()
	o.levels[pin] = false
	o.mu.Unlock()
	return nil
}

func (o *Output) WriteLevel(pin int, high bool) {
	o.mu.Lock()
	changed := o.levels[pin] != high
	o.levels[pin] = high
	o.mu.Unlock()
	if changed {
		o.logger.Info("sim: pin level", "pin", pin, "high", high)
	}
}

func (o *Output) Level(pin int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.levels[pin]
}

// Peripheral pretends a peer attaches after AttachAfter advertising attempts.
// Zero means no peer ever attaches.
type Peripheral struct {
	AttachAfter int
	logger      *slog.Logger

	mu       sync.Mutex
	listener wake.SessionListener
	attempts int
	char     *Characteristic
}

func NewPeripheral(attachAfter int, logger *slog.Logger) *Peripheral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peripheral{AttachAfter: attachAfter, logger: logger}
}

func (p *Peripheral) SetSessionListener(l wake.SessionListener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

func (p *Peripheral) Enable(name string) error {
	p.logger.Info("sim: radio enabled", "name", name)
	return nil
}

func (p *Peripheral) AddService(svc wake.ServiceConfig) (wake.Characteristic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.char = &Characteristic{logger: p.logger}
	p.logger.Info("sim: service registered", "service", svc.ServiceUUID, "characteristic", svc.CharacteristicUUID)
	return p.char, nil
}

func (p *Peripheral) StartAdvertising() error {
	p.mu.Lock()
	p.attempts++
	attach := p.AttachAfter > 0 && p.attempts == p.AttachAfter
	l := p.listener
	p.mu.Unlock()

	if attach && l != nil {
		p.logger.Info("sim: peer attaching", "attempt", p.Attempts())
		l.HandleSessionEvent(wake.PeerAttached)
	}
	return nil
}

func (p *Peripheral) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Characteristic returns the registered characteristic, or nil before AddService.
func (p *Peripheral) Characteristic() *Characteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.char
}

type Characteristic struct {
	logger *slog.Logger

	mu       sync.Mutex
	value    []byte
	notified [][]byte
}

func (c *Characteristic) SetValue(value []byte) error {
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *Characteristic) Notify() error {
	c.mu.Lock()
	v := append([]byte(nil), c.value...)
	c.notified = append(c.notified, v)
	c.mu.Unlock()
	c.logger.Info("sim: notify", "value", string(v))
	return nil
}

// Notified returns every value pushed so far.
func (c *Characteristic) Notified() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.notified))
	for _, v := range c.notified {
		out = append(out, string(v))
	}
	return out
}

// Power records the wake timer and sleep calls and returns immediately.
type Power struct {
	mu     sync.Mutex
	wake   time.Duration
	sleeps int
}

func (p *Power) EnableTimerWake(d time.Duration) error {
	p.mu.Lock()
	p.wake = d
	p.mu.Unlock()
	return nil
}

func (p *Power) EnterDeepSleep() {
	p.mu.Lock()
	p.sleeps++
	p.mu.Unlock()
}

func (p *Power) Wake() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wake
}

func (p *Power) Sleeps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sleeps
}
