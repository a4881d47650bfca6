package main

import (
	"context"
	"fmt"

	evdev "github.com/gvalkov/golang-evdev"
)

// PointerConfig maps stick deflection to relative mouse motion.
type PointerConfig struct {
	Center      int32
	Deadzone    int32
	Sensitivity float64
	InvertY     bool
}

// pointerController turns X/Y deflection into REL_X/REL_Y every tick.
// It keeps no state between ticks.
type pointerController struct {
	cfg   PointerConfig
	state StateView
	sink  outputSink
}

func newPointerController(cfg PointerConfig, state StateView, sink outputSink) *pointerController {
	return &pointerController{cfg: cfg, state: state, sink: sink}
}

func (p *pointerController) tick(ctx context.Context) error {
	if !p.state.Enabled() {
		return nil
	}

	dx := int64(p.state.Axis(AxisX)) - int64(p.cfg.Center)
	dy := int64(p.state.Axis(AxisY)) - int64(p.cfg.Center)

	if abs64(dx) > int64(p.cfg.Deadzone) {
		if err := p.sink.Emit(evdev.EV_REL, evdev.REL_X, int32(float64(dx)*p.cfg.Sensitivity)); err != nil {
			return fmt.Errorf("emit REL_X: %w", err)
		}
	}
	if abs64(dy) > int64(p.cfg.Deadzone) {
		sign := 1.0
		if p.cfg.InvertY {
			sign = -1.0
		}
		if err := p.sink.Emit(evdev.EV_REL, evdev.REL_Y, int32(float64(dy)*p.cfg.Sensitivity*sign)); err != nil {
			return fmt.Errorf("emit REL_Y: %w", err)
		}
	}

	// One frame per tick, even when idle.
	return p.sink.Sync()
}

// releaseHeld is a no-op: motion is never "held".
func (p *pointerController) releaseHeld() error { return nil }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
