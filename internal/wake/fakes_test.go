package wake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder keeps an ordered trace shared by the fakes below.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) index(event string) int {
	for i, e := range r.list() {
		if e == event {
			return i
		}
	}
	return -1
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.list() {
		if e == event {
			n++
		}
	}
	return n
}

type fakeCharacteristic struct {
	rec       *recorder
	values    [][]byte
	notifies  int
	notifyErr error
}

func (c *fakeCharacteristic) SetValue(v []byte) error {
	c.values = append(c.values, append([]byte(nil), v...))
	c.rec.add("set_value:%s", v)
	return nil
}

func (c *fakeCharacteristic) Notify() error {
	c.notifies++
	c.rec.add("notify")
	return c.notifyErr
}

type fakePeripheral struct {
	rec      *recorder
	output   *fakeOutput
	indPin   int
	listener SessionListener
	char     *fakeCharacteristic

	// attachAt fires PeerAttached during the given attempt (1-based); 0 never.
	attachAt int
	// detachAt fires PeerDetached during the given attempt; 0 never.
	detachAt int

	enableErr     error
	addServiceErr error
	advErr        error

	name        string
	service     ServiceConfig
	attempts    int
	levelsOnAdv []bool
}

func newFakePeripheral(rec *recorder, out *fakeOutput, indPin int) *fakePeripheral {
	return &fakePeripheral{
		rec:    rec,
		output: out,
		indPin: indPin,
		char:   &fakeCharacteristic{rec: rec},
	}
}

func (p *fakePeripheral) Enable(name string) error {
	p.name = name
	p.rec.add("enable")
	return p.enableErr
}

func (p *fakePeripheral) AddService(svc ServiceConfig) (Characteristic, error) {
	p.service = svc
	p.rec.add("add_service")
	if p.addServiceErr != nil {
		return nil, p.addServiceErr
	}
	return p.char, nil
}

func (p *fakePeripheral) StartAdvertising() error {
	p.attempts++
	p.rec.add("advertise")
	p.levelsOnAdv = append(p.levelsOnAdv, p.output.level(p.indPin))
	if p.attempts == p.attachAt && p.listener != nil {
		p.listener.HandleSessionEvent(PeerAttached)
	}
	if p.attempts == p.detachAt && p.listener != nil {
		p.listener.HandleSessionEvent(PeerDetached)
	}
	return p.advErr
}

func (p *fakePeripheral) SetSessionListener(l SessionListener) {
	p.listener = l
}

type fakeAnalog struct {
	rec        *recorder
	raws       []int
	reads      int
	configured []int
	configErr  error
}

func (a *fakeAnalog) ConfigureInput(pin int) error {
	a.configured = append(a.configured, pin)
	return a.configErr
}

func (a *fakeAnalog) ReadRaw(pin int) int {
	raw := a.raws[a.reads%len(a.raws)]
	a.reads++
	if a.rec != nil {
		a.rec.add("read")
	}
	return raw
}

type fakeOutput struct {
	mu      sync.Mutex
	levels  map[int]bool
	history map[int][]bool
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{levels: map[int]bool{}, history: map[int][]bool{}}
}

func (o *fakeOutput) ConfigureOutput(pin int) error { return nil }

func (o *fakeOutput) WriteLevel(pin int, high bool) {
	o.mu.Lock()
	o.levels[pin] = high
	o.history[pin] = append(o.history[pin], high)
	o.mu.Unlock()
}

func (o *fakeOutput) level(pin int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.levels[pin]
}

type fakePower struct {
	rec      *recorder
	timers   []time.Duration
	sleeps   int
	timerErr error
}

func (p *fakePower) EnableTimerWake(d time.Duration) error {
	p.timers = append(p.timers, d)
	p.rec.add("timer_wake")
	return p.timerErr
}

func (p *fakePower) EnterDeepSleep() {
	p.sleeps++
	p.rec.add("deep_sleep")
}

// fakeClock records sleeps without blocking.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
}

func (c *fakeClock) countOf(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

func (c *fakeClock) last() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sleeps) == 0 {
		return 0
	}
	return c.sleeps[len(c.sleeps)-1]
}

var errBoom = errors.New("boom")
