package main

import (
	evdev "github.com/gvalkov/golang-evdev"
)

// outputSink is where controllers write synthesized events.
//
// Writes are buffered by the consumer until Sync. The sink is shared by all
// controllers: each treats its own writes + Sync as one unit and must not
// assume nobody else wrote in between.
type outputSink interface {
	Emit(evType, code uint16, value int32) error
	Sync() error
}

func keyDown(s outputSink, code uint16) error {
	return s.Emit(evdev.EV_KEY, code, evValuePress)
}

func keyUp(s outputSink, code uint16) error {
	return s.Emit(evdev.EV_KEY, code, evValueRelease)
}
