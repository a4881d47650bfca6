package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Engine - event reader + three controllers under one errgroup
// ============================================================================
//
// Ownership:
//   - engineState is written only by the event reader goroutine.
//   - Controllers get a StateView and their own private state (zone, held key).
//   - All controllers share one outputSink; each syncs after its own writes.
//
// Shutdown:
//   - ctx canceled: every task returns nil; controllers release held keys.
//   - input stream ends: the reader returns an error, errgroup cancels the
//     controllers, Run returns that error.
//
// ============================================================================

// EngineConfig is the resolved, immutable configuration of the engine.
type EngineConfig struct {
	Axes             AxisMap
	ToggleKey        uint16
	PollInterval     time.Duration
	ReleaseOnDisable bool

	Pointer  PointerConfig
	Throttle ThrottleConfig
	Rudder   RudderConfig
}

// initialAxes is the neutral position reported before the first event.
func (c EngineConfig) initialAxes() [numAxes]int32 {
	var v [numAxes]int32
	v[AxisX] = c.Pointer.Center
	v[AxisY] = c.Pointer.Center
	v[AxisThrottle] = throttleNeutral
	v[AxisRudder] = c.Rudder.Center
	return v
}

// outputKeys lists every key the controllers may press.
func (c EngineConfig) outputKeys() []uint16 {
	return []uint16{
		c.Throttle.IncreaseKey,
		c.Throttle.DecreaseKey,
		c.Rudder.LeftKey,
		c.Rudder.RightKey,
	}
}

// controller is one periodic task of the engine.
type controller interface {
	tick(ctx context.Context) error
	releaseHeld() error
}

type Engine struct {
	cfg    EngineConfig
	state  *engineState
	reader *eventReader
	logger *slog.Logger

	pointer  *pointerController
	throttle *throttleController
	rudder   *rudderController

	control chan controlRequest
	status  chan StatusEvent
}

// NewEngine wires the shared state, the reader and the controllers.
// Call Run to start them.
func NewEngine(cfg EngineConfig, sink outputSink, logger *slog.Logger) *Engine {
	state := newEngineState(cfg.Axes, cfg.initialAxes())
	statusCh := make(chan StatusEvent, statusQueueSize)
	pub := &statusPublisher{ch: statusCh}

	return &Engine{
		cfg:      cfg,
		state:    state,
		reader:   newEventReader(state, cfg.ToggleKey, pub, withComponent(logger, "reader")),
		logger:   logger,
		pointer:  newPointerController(cfg.Pointer, state, sink),
		throttle: newThrottleController(cfg.Throttle, cfg.ReleaseOnDisable, state, sink, pub, withComponent(logger, "throttle")),
		rudder:   newRudderController(cfg.Rudder, cfg.ReleaseOnDisable, state, sink, pub, withComponent(logger, "rudder")),
		control:  make(chan controlRequest, controlQueueSize),
		status:   statusCh,
	}
}

// State returns a read-only view of the axis store and toggle.
func (e *Engine) State() StateView { return e.state }

// Control returns the request channel served by the event reader.
func (e *Engine) Control() chan<- controlRequest { return e.control }

// StatusEvents streams state changes. Events are dropped when nobody reads.
func (e *Engine) StatusEvents() <-chan StatusEvent { return e.status }

// Run starts the event reader and the controllers and blocks until they
// all stop. It returns the first fatal error, or nil if ctx was canceled.
//
// src is read in a separate goroutine that blocks in read(2); the caller
// unblocks it by closing the device after Run returns.
func (e *Engine) Run(ctx context.Context, src eventSource) error {
	g, gctx := errgroup.WithContext(ctx)

	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEvents(gctx, src, events, readErr)

	g.Go(func() error {
		return e.reader.run(gctx, events, readErr, e.control)
	})

	tasks := []struct {
		name string
		c    controller
	}{
		{"pointer", e.pointer},
		{"throttle", e.throttle},
		{"rudder", e.rudder},
	}
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return runControlLoop(gctx, task.name, e.cfg.PollInterval, task.c, e.logger)
		})
	}

	return g.Wait()
}

// runControlLoop ticks c until ctx is canceled, then releases whatever c
// still holds. The next tick is scheduled a full interval after the previous
// one returns, so a tick that blocks (a throttle tap) is never followed by a
// queued catch-up tick. A tick error is fatal for the engine.
func runControlLoop(ctx context.Context, name string, interval time.Duration, c controller, logger *slog.Logger) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	release := func() {
		if err := c.releaseHeld(); err != nil {
			logger.Warn("release on shutdown failed", "controller", name, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			release()
			return nil

		case <-timer.C:
			if err := c.tick(ctx); err != nil {
				if ctx.Err() != nil {
					release()
					return nil
				}
				return fmt.Errorf("%s controller: %w", name, err)
			}
			timer.Reset(interval)
		}
	}
}
