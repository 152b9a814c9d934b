// Package host provides the power manager used when a node runs as a Linux
// process. Deep sleep is emulated by waiting out the wake timer and then
// replacing the process image, so every cycle starts from a fresh process.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

type PowerManager struct {
	ctx    context.Context
	logger *slog.Logger

	// restart and exit are swapped out in tests.
	restart func() error
	exit    func(code int)

	mu   sync.Mutex
	wake time.Duration
	set  bool
}

func NewPowerManager(ctx context.Context, logger *slog.Logger) *PowerManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerManager{
		ctx:     ctx,
		logger:  logger,
		restart: reexec,
		exit:    os.Exit,
	}
}

func (p *PowerManager) EnableTimerWake(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("wake timer must not be negative, got %v", d)
	}
	p.mu.Lock()
	p.wake = d
	p.set = true
	p.mu.Unlock()
	return nil
}

// EnterDeepSleep waits for the wake timer and restarts the process. Without a
// programmed timer it waits until ctx ends. A cancelled ctx exits cleanly.
func (p *PowerManager) EnterDeepSleep() {
	p.mu.Lock()
	wake, set := p.wake, p.set
	p.mu.Unlock()

	var timer <-chan time.Time
	if set {
		t := time.NewTimer(wake)
		defer t.Stop()
		timer = t.C
	}

	p.logger.Info("power: sleeping", "wake_after", wake, "timer", set)
	select {
	case <-p.ctx.Done():
		p.logger.Info("power: shutdown while sleeping")
		p.exit(0)
		return
	case <-timer:
	}

	p.logger.Info("power: waking, restarting process")
	if err := p.restart(); err != nil {
		p.logger.Error("power: restart failed", "error", err)
		p.exit(1)
	}
}
