package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Zone classifies the throttle position against the configured thresholds.
type Zone int

const (
	ZoneNone Zone = iota // before the first enabled tick, or after a release on disable
	ZoneMax
	ZoneMin
	ZoneMiddle
)

func (z Zone) String() string {
	switch z {
	case ZoneMax:
		return "max"
	case ZoneMin:
		return "min"
	case ZoneMiddle:
		return "middle"
	default:
		return "none"
	}
}

// ThrottleConfig drives the three-zone throttle controller.
type ThrottleConfig struct {
	IncreaseKey uint16
	DecreaseKey uint16

	// Inclusive: value >= MaxThreshold is MAX, value <= MinThreshold is MIN.
	MaxThreshold int32
	MinThreshold int32

	// MIDDLE zone taps when |delta| > ChangeThreshold; the key is held
	// for |delta| * PressDurationMultiplier seconds.
	ChangeThreshold         int32
	PressDurationMultiplier float64

	Invert bool
}

// sleepFunc suspends the calling goroutine for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// throttleController maps the throttle lever to increase/decrease keys:
// held at the extremes, proportional taps in between.
type throttleController struct {
	cfg              ThrottleConfig
	releaseOnDisable bool
	state            StateView
	sink             outputSink
	sleep            sleepFunc
	status           *statusPublisher
	logger           *slog.Logger

	lastValue int32
	lastZone  Zone

	// held is the key currently down, valid when holding is true.
	held    uint16
	holding bool
}

func newThrottleController(cfg ThrottleConfig, releaseOnDisable bool, state StateView, sink outputSink, status *statusPublisher, logger *slog.Logger) *throttleController {
	return &throttleController{
		cfg:              cfg,
		releaseOnDisable: releaseOnDisable,
		state:            state,
		sink:             sink,
		sleep:            sleepCtx,
		status:           status,
		logger:           logger,
		lastValue:        throttleNeutral,
		lastZone:         ZoneNone,
	}
}

// position returns the (possibly inverted) throttle value.
func (t *throttleController) position() int32 {
	raw := t.state.Axis(AxisThrottle)
	if t.cfg.Invert {
		return throttleRange - raw
	}
	return raw
}

func (t *throttleController) classify(v int32) Zone {
	switch {
	case v >= t.cfg.MaxThreshold:
		return ZoneMax
	case v <= t.cfg.MinThreshold:
		return ZoneMin
	default:
		return ZoneMiddle
	}
}

func (t *throttleController) tick(ctx context.Context) error {
	if !t.state.Enabled() {
		if t.releaseOnDisable && t.holding {
			t.logger.Debug("throttle released on disable", "key", t.held)
			t.lastZone = ZoneNone
			return t.releaseHeld()
		}
		return nil
	}

	value := t.position()
	zone := t.classify(value)
	delta := value - t.lastValue
	t.lastValue = value

	if zone != t.lastZone {
		return t.enterZone(zone, value)
	}

	if zone != ZoneMiddle {
		// MAX/MIN: the key stays held; no taps.
		return nil
	}

	if err := t.releaseHeld(); err != nil {
		return err
	}
	if abs64(int64(delta)) <= int64(t.cfg.ChangeThreshold) {
		return nil
	}
	return t.tap(ctx, delta)
}

// enterZone releases both keys, then holds the key for MAX/MIN.
func (t *throttleController) enterZone(zone Zone, value int32) error {
	t.lastZone = zone
	t.holding = false

	if err := keyUp(t.sink, t.cfg.IncreaseKey); err != nil {
		return fmt.Errorf("release increase key: %w", err)
	}
	if err := keyUp(t.sink, t.cfg.DecreaseKey); err != nil {
		return fmt.Errorf("release decrease key: %w", err)
	}
	if err := t.sink.Sync(); err != nil {
		return err
	}

	t.status.publish(ThrottleZoneChanged{Zone: zone, Value: value, At: time.Now()})

	var key uint16
	switch zone {
	case ZoneMax:
		key = t.cfg.IncreaseKey
		t.logger.Info("throttle at max, holding increase key", "value", value)
	case ZoneMin:
		key = t.cfg.DecreaseKey
		t.logger.Info("throttle at min, holding decrease key", "value", value)
	default:
		t.logger.Debug("throttle in middle zone", "value", value)
		return nil
	}

	if err := keyDown(t.sink, key); err != nil {
		return fmt.Errorf("hold key %d: %w", key, err)
	}
	t.held, t.holding = key, true
	return t.sink.Sync()
}

// tap presses the key matching delta's sign for |delta| * multiplier seconds.
// The suspension only blocks this controller.
func (t *throttleController) tap(ctx context.Context, delta int32) error {
	key := t.cfg.IncreaseKey
	direction := "increasing"
	if delta < 0 {
		key = t.cfg.DecreaseKey
		direction = "decreasing"
	}
	d := seconds(float64(abs64(int64(delta))) * t.cfg.PressDurationMultiplier)

	t.logger.Debug("throttle tap", "direction", direction, "delta", delta, "duration", d)

	if err := keyDown(t.sink, key); err != nil {
		return fmt.Errorf("press key %d: %w", key, err)
	}
	if err := t.sink.Sync(); err != nil {
		return err
	}
	t.held, t.holding = key, true

	sleepErr := t.sleep(ctx, d)

	// Release even when canceled mid-hold.
	if err := t.releaseHeld(); err != nil {
		return err
	}
	return sleepErr
}

// releaseHeld lifts the held key, if any, and syncs.
func (t *throttleController) releaseHeld() error {
	if !t.holding {
		return nil
	}
	key := t.held
	t.holding = false
	if err := keyUp(t.sink, key); err != nil {
		return fmt.Errorf("release key %d: %w", key, err)
	}
	return t.sink.Sync()
}
