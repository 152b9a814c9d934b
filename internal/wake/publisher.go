package wake

import (
	"log/slog"
	"strconv"
	"time"
)

// ReadingDecimals is the number of fractional digits a published reading carries.
const ReadingDecimals = 2

// NotificationPayload is the text form of one averaged reading.
type NotificationPayload struct {
	text string
}

// NewNotificationPayload formats value with ReadingDecimals fractional digits.
func NewNotificationPayload(value float64) NotificationPayload {
	return NotificationPayload{text: strconv.FormatFloat(value, 'f', ReadingDecimals, 64)}
}

func (p NotificationPayload) String() string { return p.text }

// Bytes returns a fresh copy of the payload.
func (p NotificationPayload) Bytes() []byte { return []byte(p.text) }

// Publisher pushes a reading to the connected peer. It never reports failure
// to its caller.
type Publisher struct {
	char   Characteristic
	settle time.Duration
	sleep  Sleeper
	logger *slog.Logger
}

func NewPublisher(char Characteristic, settle time.Duration, sleep Sleeper, logger *slog.Logger) *Publisher {
	if sleep == nil {
		sleep = time.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{char: char, settle: settle, sleep: sleep, logger: logger}
}

// Publish sets the characteristic value, notifies, and then waits out the
// settle delay so the radio can flush before the caller sleeps.
func (p *Publisher) Publish(value float64) NotificationPayload {
	payload := NewNotificationPayload(value)

	if err := p.char.SetValue(payload.Bytes()); err != nil {
		p.logger.Warn("publisher: set value failed", "payload", payload.String(), "error", err)
	}
	if err := p.char.Notify(); err != nil {
		p.logger.Warn("publisher: notify failed", "payload", payload.String(), "error", err)
	}
	p.logger.Info("publisher: reading notified", "payload", payload.String(), "settle", p.settle)

	p.sleep(p.settle)
	return payload
}
