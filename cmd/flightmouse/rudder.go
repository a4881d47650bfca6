package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Direction is the rudder key currently held.
type Direction int

const (
	DirLeft   Direction = -1
	DirCenter Direction = 0
	DirRight  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "center"
	}
}

// RudderConfig drives the bang-bang rudder controller.
type RudderConfig struct {
	LeftKey  uint16
	RightKey uint16
	Center   int32
	Deadzone int32
}

// rudderController holds the left or right key while the rudder is outside
// the deadzone. Only crossings emit events.
type rudderController struct {
	cfg              RudderConfig
	releaseOnDisable bool
	state            StateView
	sink             outputSink
	status           *statusPublisher
	logger           *slog.Logger

	direction Direction
}

func newRudderController(cfg RudderConfig, releaseOnDisable bool, state StateView, sink outputSink, status *statusPublisher, logger *slog.Logger) *rudderController {
	return &rudderController{
		cfg:              cfg,
		releaseOnDisable: releaseOnDisable,
		state:            state,
		sink:             sink,
		status:           status,
		logger:           logger,
		direction:        DirCenter,
	}
}

// heldKey returns the key implied by the current direction.
func (r *rudderController) heldKey() (uint16, bool) {
	switch r.direction {
	case DirLeft:
		return r.cfg.LeftKey, true
	case DirRight:
		return r.cfg.RightKey, true
	default:
		return 0, false
	}
}

func (r *rudderController) tick(ctx context.Context) error {
	if !r.state.Enabled() {
		if r.releaseOnDisable && r.direction != DirCenter {
			r.logger.Debug("rudder released on disable", "direction", r.direction)
			return r.releaseHeld()
		}
		return nil
	}

	delta := int64(r.state.Axis(AxisRudder)) - int64(r.cfg.Center)
	deadzone := int64(r.cfg.Deadzone)

	switch {
	case delta < -deadzone:
		if r.direction == DirLeft {
			return nil
		}
		return r.hold(DirLeft, r.cfg.LeftKey, r.cfg.RightKey)

	case delta > deadzone:
		if r.direction == DirRight {
			return nil
		}
		return r.hold(DirRight, r.cfg.RightKey, r.cfg.LeftKey)

	default:
		if r.direction == DirCenter {
			return nil
		}
		if err := keyUp(r.sink, r.cfg.RightKey); err != nil {
			return fmt.Errorf("release right key: %w", err)
		}
		if err := keyUp(r.sink, r.cfg.LeftKey); err != nil {
			return fmt.Errorf("release left key: %w", err)
		}
		if err := r.sink.Sync(); err != nil {
			return err
		}
		r.setDirection(DirCenter)
		return nil
	}
}

// hold presses key, releasing opposite first if it is the one held.
func (r *rudderController) hold(dir Direction, key, opposite uint16) error {
	if r.direction == -dir {
		if err := keyUp(r.sink, opposite); err != nil {
			return fmt.Errorf("release key %d: %w", opposite, err)
		}
	}
	if err := keyDown(r.sink, key); err != nil {
		return fmt.Errorf("press key %d: %w", key, err)
	}
	if err := r.sink.Sync(); err != nil {
		return err
	}
	r.setDirection(dir)
	return nil
}

func (r *rudderController) setDirection(dir Direction) {
	r.direction = dir
	r.logger.Debug("rudder direction changed", "direction", dir)
	r.status.publish(RudderDirectionChanged{Direction: dir, At: time.Now()})
}

// releaseHeld lifts the held key, if any, and returns to center.
func (r *rudderController) releaseHeld() error {
	key, ok := r.heldKey()
	if !ok {
		return nil
	}
	if err := keyUp(r.sink, key); err != nil {
		return fmt.Errorf("release key %d: %w", key, err)
	}
	if err := r.sink.Sync(); err != nil {
		return err
	}
	r.setDirection(DirCenter)
	return nil
}
