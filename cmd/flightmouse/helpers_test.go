package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
)

// Codes used across the tests.
const (
	testIncKey    = evdev.KEY_EQUAL
	testDecKey    = evdev.KEY_MINUS
	testLeftKey   = evdev.KEY_Q
	testRightKey  = evdev.KEY_E
	testToggleKey = evdev.BTN_TRIGGER_HAPPY15
)

var testAxes = AxisMap{
	AxisX:        evdev.ABS_X,
	AxisY:        evdev.ABS_Y,
	AxisThrottle: evdev.ABS_Z,
	AxisRudder:   evdev.ABS_RZ,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emitted is one write to the sink; Sync is recorded as EV_SYN.
type emitted struct {
	Type  uint16
	Code  uint16
	Value int32
}

var syncFrame = emitted{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0}

func keyEvent(code uint16, value int32) emitted {
	return emitted{Type: evdev.EV_KEY, Code: code, Value: value}
}

func relEvent(code uint16, value int32) emitted {
	return emitted{Type: evdev.EV_REL, Code: code, Value: value}
}

// recordingSink is a test double for the uinput device.
type recordingSink struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (s *recordingSink) Emit(evType, code uint16, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, emitted{Type: evType, Code: code, Value: value})
	return nil
}

func (s *recordingSink) Sync() error {
	return s.Emit(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// take returns and clears the recorded events.
func (s *recordingSink) take() []emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *recordingSink) snapshot() []emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emitted(nil), s.events...)
}

// fakeState is a hand-driven StateView.
type fakeState struct {
	mu      sync.Mutex
	axes    [numAxes]int32
	enabled bool
}

func (f *fakeState) Axis(a Axis) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.axes[a]
}

func (f *fakeState) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeState) set(a Axis, v int32) {
	f.mu.Lock()
	f.axes[a] = v
	f.mu.Unlock()
}

func (f *fakeState) setEnabled(v bool) {
	f.mu.Lock()
	f.enabled = v
	f.mu.Unlock()
}

// recordingSleeper records requested durations and returns immediately.
type recordingSleeper struct {
	durations []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.durations = append(r.durations, d)
	return ctx.Err()
}

func equalEvents(a, b []emitted) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitUntil polls cond until it returns true or timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
