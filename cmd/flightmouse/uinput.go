package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// uinput ioctls and sizes (from <linux/uinput.h>)
const (
	uinputMaxNameSize = 80
	uiDevCreate       = 0x5501
	uiDevDestroy      = 0x5502
	uiSetEvBit        = 0x40045564
	uiSetKeyBit       = 0x40045565
	uiSetRelBit       = 0x40045566
	busUSB            = 0x03
	absSize           = 64
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev is struct uinput_user_dev, the legacy setup record.
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absSize]int32
	Absmin     [absSize]int32
	Absfuzz    [absSize]int32
	Absflat    [absSize]int32
}

// rawInputEvent is struct input_event as written to /dev/uinput.
type rawInputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// uinputDevice is a virtual mouse+keyboard backed by /dev/uinput.
// It implements outputSink. Each Emit is a single write(2), so concurrent
// callers never tear an event; frames from different callers may interleave.
type uinputDevice struct {
	f    *os.File
	name string

	closeOnce sync.Once
}

// createUinputDevice registers a virtual device that can emit REL_X/REL_Y
// motion, left/right mouse buttons and the given keys.
func createUinputDevice(path, name string, keys []uint16) (*uinputDevice, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())

	fail := func(what string, err error) (*uinputDevice, error) {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	if err := unix.IoctlSetInt(fd, uiSetEvBit, evdev.EV_KEY); err != nil {
		return fail("UI_SET_EVBIT EV_KEY", err)
	}
	buttons := append([]uint16{evdev.BTN_LEFT, evdev.BTN_RIGHT}, keys...)
	for _, k := range buttons {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(k)); err != nil {
			return fail(fmt.Sprintf("UI_SET_KEYBIT %d", k), err)
		}
	}

	if err := unix.IoctlSetInt(fd, uiSetEvBit, evdev.EV_REL); err != nil {
		return fail("UI_SET_EVBIT EV_REL", err)
	}
	for _, r := range []int{evdev.REL_X, evdev.REL_Y} {
		if err := unix.IoctlSetInt(fd, uiSetRelBit, r); err != nil {
			return fail(fmt.Sprintf("UI_SET_RELBIT %d", r), err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:uinputMaxNameSize-1], name)
	dev.ID = inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5678, Version: 1}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &dev); err != nil {
		return fail("encode uinput_user_dev", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fail("write uinput_user_dev", err)
	}

	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fail("UI_DEV_CREATE", err)
	}

	return &uinputDevice{f: f, name: name}, nil
}

// Emit writes one input event. It becomes visible to consumers on the next Sync.
func (d *uinputDevice) Emit(evType, code uint16, value int32) error {
	var tv unix.Timeval
	_ = unix.Gettimeofday(&tv)

	var buf bytes.Buffer
	ev := rawInputEvent{Time: tv, Type: evType, Code: code, Value: value}
	if err := binary.Write(&buf, binary.LittleEndian, &ev); err != nil {
		return fmt.Errorf("encode input_event: %w", err)
	}
	if _, err := d.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", d.name, err)
	}
	return nil
}

// Sync flushes the pending events as one frame (EV_SYN/SYN_REPORT).
func (d *uinputDevice) Sync() error {
	return d.Emit(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// Close destroys the virtual device.
func (d *uinputDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if ioErr := unix.IoctlSetInt(int(d.f.Fd()), uiDevDestroy, 0); ioErr != nil {
			err = fmt.Errorf("UI_DEV_DESTROY: %w", ioErr)
		}
		if cErr := d.f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	})
	return err
}
