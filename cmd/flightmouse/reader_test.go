package main

import (
	"context"
	"errors"
	"testing"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
)

func newTestReader() (*eventReader, *engineState, chan StatusEvent) {
	state := newEngineState(testAxes, [numAxes]int32{512, 512, 128, 512})
	ch := make(chan StatusEvent, 16)
	r := newEventReader(state, testToggleKey, &statusPublisher{ch: ch}, discardLogger())
	return r, state, ch
}

func toggleEvent(value int32) inputEvent {
	return inputEvent{Type: evdev.EV_KEY, Code: testToggleKey, Value: value}
}

func absEvent(code uint16, value int32) inputEvent {
	return inputEvent{Type: evdev.EV_ABS, Code: code, Value: value}
}

func TestReader_TogglePressFlips(t *testing.T) {
	r, state, ch := newTestReader()

	r.handle(toggleEvent(evValuePress))
	if !state.Enabled() {
		t.Fatal("expected enabled after first press")
	}
	r.handle(toggleEvent(evValueRelease))
	r.handle(toggleEvent(evValuePress))
	if state.Enabled() {
		t.Fatal("expected disabled after second press")
	}

	if got := len(ch); got != 2 {
		t.Fatalf("expected 2 status events, got %d", got)
	}
	ev := (<-ch).(EnabledChanged)
	if !ev.Enabled || ev.Origin != "button" {
		t.Errorf("unexpected first status event: %#v", ev)
	}
}

func TestReader_HeldToggleFlipsOnce(t *testing.T) {
	r, state, _ := newTestReader()

	r.handle(toggleEvent(evValuePress))
	for i := 0; i < 5; i++ {
		r.handle(toggleEvent(evValueRepeat))
	}
	// A second press without a release (dropped event) is ignored too.
	r.handle(toggleEvent(evValuePress))

	if !state.Enabled() {
		t.Fatal("expected exactly one flip while held")
	}
}

func TestReader_ReleaseDoesNotToggle(t *testing.T) {
	r, state, _ := newTestReader()

	r.handle(toggleEvent(evValueRelease))
	if state.Enabled() {
		t.Fatal("release must not flip the toggle")
	}
}

func TestReader_DisabledDiscardsAxes(t *testing.T) {
	r, state, _ := newTestReader()

	r.handle(absEvent(evdev.ABS_X, 1000))
	if got := state.Axis(AxisX); got != 512 {
		t.Fatalf("x = %d while disabled, want 512", got)
	}

	r.handle(toggleEvent(evValuePress))
	r.handle(absEvent(evdev.ABS_X, 1000))
	if got := state.Axis(AxisX); got != 1000 {
		t.Fatalf("x = %d while enabled, want 1000", got)
	}
}

func TestReader_IgnoresOtherEvents(t *testing.T) {
	r, state, _ := newTestReader()
	r.handle(toggleEvent(evValuePress))

	before := snapshotAxes(state)
	r.handle(absEvent(evdev.ABS_HAT0X, -1))
	r.handle(inputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TRIGGER, Value: 1})
	r.handle(inputEvent{Type: evdev.EV_REL, Code: evdev.ABS_X, Value: 5})
	r.handle(inputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	after := snapshotAxes(state)

	for k, v := range before {
		if after[k] != v {
			t.Errorf("axis %s changed from %d to %d", k, v, after[k])
		}
	}
}

func TestReader_ControlOps(t *testing.T) {
	r, state, ch := newTestReader()

	do := func(op controlOp) controlReply {
		req := controlRequest{Op: op, Reply: make(chan controlReply, 1)}
		r.handleControl(req)
		select {
		case reply := <-req.Reply:
			return reply
		default:
			t.Fatalf("no reply for %s", op)
			return controlReply{}
		}
	}

	if reply := do(opEnable); !reply.Enabled || reply.Err != nil {
		t.Fatalf("enable: %#v", reply)
	}
	if reply := do(opEnable); !reply.Enabled {
		t.Fatalf("enable twice: %#v", reply)
	}
	if reply := do(opToggle); reply.Enabled {
		t.Fatalf("toggle: %#v", reply)
	}
	if reply := do(opDisable); reply.Enabled || state.Enabled() {
		t.Fatalf("disable: %#v", reply)
	}

	reply := do(opStatus)
	if reply.Axes["rudder"] != 512 {
		t.Errorf("status axes = %v", reply.Axes)
	}

	if reply := do(controlOp("explode")); reply.Err == nil {
		t.Error("expected error for unknown op")
	}

	// enable, toggle: two changes. The repeated enable and the disable are no-ops.
	if got := len(ch); got != 2 {
		t.Errorf("expected 2 status events, got %d", got)
	}
	ev := (<-ch).(EnabledChanged)
	if ev.Origin != "control" {
		t.Errorf("origin = %q, want control", ev.Origin)
	}
}

func TestReader_RunReturnsStreamError(t *testing.T) {
	r, _, _ := newTestReader()

	events := make(chan inputEvent)
	readErr := make(chan error, 1)
	readErr <- errStreamEnded

	err := r.run(context.Background(), events, readErr, nil)
	if !errors.Is(err, errStreamEnded) {
		t.Fatalf("expected errStreamEnded, got %v", err)
	}
}

func TestReader_RunStopsOnCancel(t *testing.T) {
	r, state, _ := newTestReader()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent)
	done := make(chan error, 1)
	go func() {
		done <- r.run(ctx, events, make(chan error), nil)
	}()

	events <- toggleEvent(evValuePress)
	waitUntil(t, time.Second, state.Enabled, "reader did not apply toggle")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not stop on cancel")
	}
}
