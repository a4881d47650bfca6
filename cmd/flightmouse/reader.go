package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
)

// controlOp is a request arriving over the control socket.
type controlOp string

const (
	opToggle  controlOp = "toggle"
	opEnable  controlOp = "enable"
	opDisable controlOp = "disable"
	opStatus  controlOp = "status"
)

// controlRequest is executed by the event reader goroutine so the toggle
// keeps a single writer. Reply must be buffered (capacity >= 1).
type controlRequest struct {
	Op    controlOp
	Reply chan controlReply
}

type controlReply struct {
	Enabled bool
	Axes    map[string]int32
	Err     error
}

// eventReader owns the write side of engineState.
type eventReader struct {
	state     *engineState
	toggleKey uint16
	status    *statusPublisher
	logger    *slog.Logger

	// toggleDown latches between a press and its release so a held
	// button flips the toggle once.
	toggleDown bool
}

func newEventReader(state *engineState, toggleKey uint16, status *statusPublisher, logger *slog.Logger) *eventReader {
	return &eventReader{
		state:     state,
		toggleKey: toggleKey,
		status:    status,
		logger:    logger,
	}
}

// run consumes physical events and control requests until the stream ends
// (returned as an error) or ctx is canceled (returns nil).
func (r *eventReader) run(ctx context.Context, events <-chan inputEvent, readErr <-chan error, control <-chan controlRequest) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-events:
			r.handle(ev)

		case req := <-control:
			r.handleControl(req)
		}
	}
}

// handle applies one physical event to the shared state.
func (r *eventReader) handle(ev inputEvent) {
	if ev.Type == evdev.EV_KEY && ev.Code == r.toggleKey {
		switch ev.Value {
		case evValuePress:
			if !r.toggleDown {
				r.toggleDown = true
				enabled := r.state.flipEnabled()
				r.logger.Info("input enabled changed", "enabled", enabled, "origin", "button")
				r.status.publish(EnabledChanged{Enabled: enabled, Origin: "button", At: time.Now()})
			}
		case evValueRelease:
			r.toggleDown = false
		case evValueRepeat:
			// autorepeat never toggles
		}
	}

	if !r.state.Enabled() {
		return
	}

	if ev.Type == evdev.EV_ABS {
		r.state.setAxis(ev.Code, ev.Value)
	}
}

func (r *eventReader) handleControl(req controlRequest) {
	reply := controlReply{}

	switch req.Op {
	case opToggle:
		r.setEnabled(!r.state.Enabled())
	case opEnable:
		r.setEnabled(true)
	case opDisable:
		r.setEnabled(false)
	case opStatus:
	default:
		reply.Err = fmt.Errorf("unknown op %q", req.Op)
	}

	reply.Enabled = r.state.Enabled()
	reply.Axes = snapshotAxes(r.state)

	if req.Reply == nil {
		return
	}
	select {
	case req.Reply <- reply:
	default:
		r.logger.Warn("control reply channel not ready; dropping reply", "op", req.Op)
	}
}

func (r *eventReader) setEnabled(v bool) {
	if !r.state.setEnabled(v) {
		return
	}
	r.logger.Info("input enabled changed", "enabled", v, "origin", "control")
	r.status.publish(EnabledChanged{Enabled: v, Origin: "control", At: time.Now()})
}
