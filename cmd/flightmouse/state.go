package main

import (
	"fmt"
	"sync/atomic"
)

// Axis is a logical axis tracked by the engine.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisThrottle
	AxisRudder

	numAxes
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisThrottle:
		return "throttle"
	case AxisRudder:
		return "rudder"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// AxisMap assigns an evdev ABS code to each logical axis.
type AxisMap [numAxes]uint16

func (m AxisMap) distinct() error {
	seen := make(map[uint16]Axis, numAxes)
	for a := Axis(0); a < numAxes; a++ {
		if prev, ok := seen[m[a]]; ok {
			return fmt.Errorf("axes %s and %s both use code %d", prev, a, m[a])
		}
		seen[m[a]] = a
	}
	return nil
}

// StateView is the read-only side of the shared engine state.
// Controllers and status publishers only ever see this.
type StateView interface {
	Axis(a Axis) int32
	Enabled() bool
}

// engineState holds the latest axis positions and the enable toggle.
//
// Single writer: only the event reader goroutine calls setAxis / setEnabled.
// Any number of goroutines may read concurrently; each value is an atomic,
// so readers always see the most recent write for that axis.
type engineState struct {
	codes   AxisMap
	values  [numAxes]atomic.Int32
	enabled atomic.Bool
}

// newEngineState seeds every axis with its neutral value so controllers never
// observe a missing entry. The toggle starts disabled.
func newEngineState(codes AxisMap, initial [numAxes]int32) *engineState {
	s := &engineState{codes: codes}
	for a := Axis(0); a < numAxes; a++ {
		s.values[a].Store(initial[a])
	}
	return s
}

func (s *engineState) Axis(a Axis) int32 {
	return s.values[a].Load()
}

func (s *engineState) Enabled() bool {
	return s.enabled.Load()
}

// axisForCode reports which logical axis an ABS code drives, if any.
func (s *engineState) axisForCode(code uint16) (Axis, bool) {
	for a := Axis(0); a < numAxes; a++ {
		if s.codes[a] == code {
			return a, true
		}
	}
	return 0, false
}

// setAxis stores value for the axis driven by code.
// Returns false for untracked codes.
func (s *engineState) setAxis(code uint16, value int32) bool {
	a, ok := s.axisForCode(code)
	if !ok {
		return false
	}
	s.values[a].Store(value)
	return true
}

// setEnabled stores the toggle and reports whether it changed.
func (s *engineState) setEnabled(v bool) bool {
	return s.enabled.Swap(v) != v
}

// flipEnabled inverts the toggle and returns the new value.
func (s *engineState) flipEnabled() bool {
	v := !s.enabled.Load()
	s.enabled.Store(v)
	return v
}

// snapshotAxes copies the current axis values keyed by axis name.
func snapshotAxes(v StateView) map[string]int32 {
	out := make(map[string]int32, numAxes)
	for a := Axis(0); a < numAxes; a++ {
		out[a.String()] = v.Axis(a)
	}
	return out
}
