package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cloudpico-notifier/internal/ble"
	"cloudpico-notifier/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStore struct {
	mu        sync.Mutex
	readings  []types.Reading
	touched   []string
	insertErr error
	touchErr  error
}

func (s *fakeStore) InsertReading(_ context.Context, r types.Reading) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.readings = append(s.readings, r)
	return int64(len(s.readings)), nil
}

func (s *fakeStore) TouchDevice(_ context.Context, addr, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, addr)
	return s.touchErr
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type fakeUplink struct {
	mu   sync.Mutex
	sent []types.Telemetry
	err  error
}

func (u *fakeUplink) PublishTelemetry(t types.Telemetry) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sent = append(u.sent, t)
	return u.err
}

// scriptedSource emits its notifications, then blocks until ctx ends
// unless returnEarly is set.
type scriptedSource struct {
	notes       []ble.Notification
	returnEarly bool
	err         error
}

func (s scriptedSource) Run(ctx context.Context, onNotify func(ble.Notification)) error {
	for _, n := range s.notes {
		onNotify(n)
	}
	if s.returnEarly {
		return s.err
	}
	<-ctx.Done()
	return s.err
}

func note(value string) ble.Notification {
	return ble.Notification{
		Address:    "28:CD:C1:00:00:01",
		LocalName:  "crud.sh::beverage_notifier",
		RSSI:       -58,
		Value:      []byte(value),
		ReceivedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandle_StoresAndRelays(t *testing.T) {
	store := &fakeStore{}
	up := &fakeUplink{}
	c := New("beverage", store, up, quiet)

	rec, err := c.Handle(context.Background(), note("24.98"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.ID != 1 || rec.Temperature != 24.98 || rec.Payload != "24.98" || rec.StationID != "beverage" {
		t.Errorf("reading = %+v", rec)
	}
	if rec.RSSI == nil || *rec.RSSI != -58 {
		t.Errorf("rssi = %v; want -58", rec.RSSI)
	}
	if len(store.touched) != 1 || store.touched[0] != "28:CD:C1:00:00:01" {
		t.Errorf("touched = %v", store.touched)
	}
	if len(up.sent) != 1 {
		t.Fatalf("relayed %d; want 1", len(up.sent))
	}
	got := up.sent[0]
	if got.StationID != "beverage" || got.Temperature == nil || *got.Temperature != 24.98 {
		t.Errorf("telemetry = %+v", got)
	}
	if got.Sequence == nil || *got.Sequence != 1 {
		t.Errorf("sequence = %v; want 1", got.Sequence)
	}

	if _, err := c.Handle(context.Background(), note("25.00")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if *up.sent[1].Sequence != 2 {
		t.Errorf("second sequence = %d; want 2", *up.sent[1].Sequence)
	}
}

func TestHandle_BadPayload(t *testing.T) {
	store := &fakeStore{}
	up := &fakeUplink{}
	c := New("beverage", store, up, quiet)

	_, err := c.Handle(context.Background(), note("hot"))
	if !errors.Is(err, ble.ErrBadPayload) {
		t.Fatalf("Handle() error = %v; want ErrBadPayload", err)
	}
	if store.count() != 0 || len(up.sent) != 0 {
		t.Error("bad payload was stored or relayed")
	}
}

func TestHandle_RelayFailureKeepsReading(t *testing.T) {
	store := &fakeStore{}
	up := &fakeUplink{err: errors.New("not connected")}
	c := New("beverage", store, up, quiet)

	if _, err := c.Handle(context.Background(), note("24.98")); err != nil {
		t.Fatalf("Handle() error = %v; want nil", err)
	}
	if store.count() != 1 {
		t.Errorf("stored %d; want 1", store.count())
	}
}

func TestHandle_StoreFailure(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	up := &fakeUplink{}
	c := New("beverage", store, up, quiet)

	if _, err := c.Handle(context.Background(), note("24.98")); err == nil {
		t.Fatal("Handle() error = nil, want non-nil")
	}
	if len(up.sent) != 0 {
		t.Error("relayed a reading that was not stored")
	}
}

func TestHandle_NilUplink(t *testing.T) {
	store := &fakeStore{touchErr: errors.New("ignored")}
	c := New("beverage", store, nil, quiet)
	if _, err := c.Handle(context.Background(), note("1.50")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestHandle_Duplicates(t *testing.T) {
	store := &fakeStore{}
	c := New("beverage", store, nil, quiet)
	ctx := context.Background()

	first := note("24.98")
	if _, err := c.Handle(ctx, first); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	repeat := first
	repeat.ReceivedAt = first.ReceivedAt.Add(500 * time.Millisecond)
	if _, err := c.Handle(ctx, repeat); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Handle(repeat) error = %v; want ErrDuplicate", err)
	}

	changed := note("25.00")
	changed.ReceivedAt = repeat.ReceivedAt
	if _, err := c.Handle(ctx, changed); err != nil {
		t.Fatalf("Handle(changed) error = %v", err)
	}

	nextCycle := note("25.00")
	nextCycle.ReceivedAt = repeat.ReceivedAt.Add(15 * time.Second)
	if _, err := c.Handle(ctx, nextCycle); err != nil {
		t.Fatalf("Handle(next cycle) error = %v", err)
	}

	if store.count() != 3 {
		t.Errorf("stored %d; want 3", store.count())
	}
}

func TestRun_DrainsQueueOnShutdown(t *testing.T) {
	store := &fakeStore{}
	c := New("beverage", store, nil, quiet)
	src := scriptedSource{
		notes:       []ble.Notification{note("20.00"), note("bad"), note("21.00")},
		returnEarly: true,
	}

	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.count() != 2 {
		t.Errorf("stored %d; want 2", store.count())
	}
}

func TestRun_ReturnsSourceError(t *testing.T) {
	boom := errors.New("adapter missing")
	c := New("beverage", &fakeStore{}, nil, quiet)
	err := c.Run(context.Background(), scriptedSource{returnEarly: true, err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v; want %v", err, boom)
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	store := &fakeStore{}
	c := New("beverage", store, nil, quiet)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, scriptedSource{notes: []ble.Notification{note("22.00")}}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if store.count() != 1 {
		t.Errorf("stored %d; want 1", store.count())
	}
}

func TestRun_DropsWhenQueueFull(t *testing.T) {
	blocker := make(chan struct{})
	store := &blockingStore{release: blocker}
	c := New("beverage", store, nil, quiet)

	notes := make([]ble.Notification, queueSize+5)
	for i := range notes {
		notes[i] = note("20.00")
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), scriptedSource{notes: notes, returnEarly: true}) }()

	// The worker holds one notification in InsertReading; the rest either
	// fit the queue or are dropped.
	deadline := time.After(2 * time.Second)
	for c.Dropped() < 4 {
		select {
		case <-deadline:
			t.Fatalf("dropped = %d; want at least 4", c.Dropped())
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(blocker)
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

type blockingStore struct {
	fakeStore
	release chan struct{}
}

func (s *blockingStore) InsertReading(ctx context.Context, r types.Reading) (int64, error) {
	<-s.release
	return s.fakeStore.InsertReading(ctx, r)
}
