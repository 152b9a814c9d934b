package wake

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

var ErrSessionUsed = errors.New("wake: session already advertised")

// SessionEvent is a peer lifecycle notification from the radio stack.
type SessionEvent uint8

const (
	PeerAttached SessionEvent = iota + 1
	PeerDetached
)

func (e SessionEvent) String() string {
	switch e {
	case PeerAttached:
		return "attached"
	case PeerDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// SessionListener receives peer lifecycle events. Implementations must be
// safe to call from the radio stack's callback context.
type SessionListener interface {
	HandleSessionEvent(ev SessionEvent)
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(ev SessionEvent)

func (f SessionListenerFunc) HandleSessionEvent(ev SessionEvent) { f(ev) }

type State int32

const (
	StateIdle State = iota
	StateAdvertising
	StateConnected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

type AdvertiseResult struct {
	Outcome  State
	Attempts int
}

// Session runs the bounded advertising window for one wake cycle.
//
// The connection flag is the only state shared with the radio stack. It is
// written by HandleSessionEvent and read once per poll tick.
type Session struct {
	peripheral Peripheral
	indicator  *Indicator
	bound      int
	poll       time.Duration
	sleep      Sleeper
	logger     *slog.Logger

	connected atomic.Bool
	attaches  atomic.Uint32
	state     atomic.Int32
}

// NewSession returns an idle session. It advertises at most once.
func NewSession(p Peripheral, indicator *Indicator, cfg Config, sleep Sleeper, logger *slog.Logger) *Session {
	if sleep == nil {
		sleep = time.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		peripheral: p,
		indicator:  indicator,
		bound:      cfg.AdvertisingBound,
		poll:       cfg.PollInterval,
		sleep:      sleep,
		logger:     logger,
	}
}

// HandleSessionEvent records an attach or detach from the radio stack.
func (s *Session) HandleSessionEvent(ev SessionEvent) {
	switch ev {
	case PeerAttached:
		s.attaches.Add(1)
		s.connected.Store(true)
	case PeerDetached:
		s.connected.Store(false)
	}
}

// Connected reports whether a peer is attached right now.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// State is idle until Advertise runs, then connected or timed out.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Advertise blocks until a peer attaches or the advertising bound is spent.
// The indicator is on for the whole window and off when Advertise returns.
// A timeout is a normal outcome, not an error.
func (s *Session) Advertise() (AdvertiseResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateAdvertising)) {
		return AdvertiseResult{Outcome: s.State()}, ErrSessionUsed
	}

	s.indicator.On()
	s.logger.Info("session: advertising", "bound", s.bound, "poll", s.poll)

	attempts := 0
	for attempts < s.bound {
		if s.connected.Load() {
			break
		}
		if err := s.peripheral.StartAdvertising(); err != nil {
			s.logger.Warn("session: advertising attempt failed", "attempt", attempts+1, "error", err)
		}
		attempts++
		s.sleep(s.poll)
	}

	s.indicator.Off()

	outcome := StateTimedOut
	if s.connected.Load() {
		outcome = StateConnected
	}
	s.state.Store(int32(outcome))

	if outcome == StateConnected {
		s.logger.Info("session: peer attached", "attempts", attempts, "attach_events", s.attaches.Load())
	} else {
		s.logger.Info("session: advertising window expired", "attempts", attempts)
	}

	return AdvertiseResult{Outcome: outcome, Attempts: attempts}, nil
}
