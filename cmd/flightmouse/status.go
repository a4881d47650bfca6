package main

import "time"

// StatusEvent is a state change published by the engine for observers
// (status websocket, logs). Publishing never blocks the engine.
type StatusEvent interface {
	statusMarker()
}

// EnabledChanged is published by the event reader when the toggle flips.
type EnabledChanged struct {
	Enabled bool
	Origin  string // "button" or "control"
	At      time.Time
}

func (EnabledChanged) statusMarker() {}

// ThrottleZoneChanged is published by the throttle controller on every zone transition.
type ThrottleZoneChanged struct {
	Zone  Zone
	Value int32
	At    time.Time
}

func (ThrottleZoneChanged) statusMarker() {}

// RudderDirectionChanged is published by the rudder controller when the held key changes.
type RudderDirectionChanged struct {
	Direction Direction
	At        time.Time
}

func (RudderDirectionChanged) statusMarker() {}

// statusPublisher delivers status events without ever blocking the caller.
// A nil publisher or nil channel drops everything.
type statusPublisher struct {
	ch chan<- StatusEvent
}

func (p *statusPublisher) publish(ev StatusEvent) {
	if p == nil || p.ch == nil {
		return
	}
	select {
	case p.ch <- ev:
	default:
	}
}
