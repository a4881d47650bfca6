package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

// errStreamEnded is returned when the physical device stops producing events
// (EOF, unplugged). There is no reconnect; the engine shuts down.
var errStreamEnded = errors.New("input event stream ended")

// inputEvent is the part of struct input_event the engine looks at.
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// eventSource is a blocking, non-restartable event stream.
// *evdev.InputDevice satisfies it.
type eventSource interface {
	ReadOne() (*evdev.InputEvent, error)
}

// readInputEvents reads events from src and sends them to events until the
// stream fails or ctx is canceled. It runs in a dedicated goroutine and
// blocks in read(2); closing the device file unblocks it.
func readInputEvents(ctx context.Context, src eventSource, events chan<- inputEvent, readErr chan<- error) {
	for {
		ev, err := src.ReadOne()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = errStreamEnded
			}
			select {
			case readErr <- err:
			case <-ctx.Done():
			}
			return
		}

		select {
		case events <- inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}:
		case <-ctx.Done():
			return
		}
	}
}

// openInputDevice opens an evdev node, optionally grabbing it so the raw
// joystick events do not also reach other applications.
func openInputDevice(path string, grab bool) (*evdev.InputDevice, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	if grab {
		if err := dev.Grab(); err != nil {
			_ = dev.File.Close()
			return nil, fmt.Errorf("grab input device %s: %w", path, err)
		}
	}
	return dev, nil
}

// findJoystick looks in byIDDir for a symlink whose name contains every
// match substring and returns the resolved event node.
func findJoystick(byIDDir string, match []string) (string, error) {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", byIDDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if !containsAll(name, match) {
			continue
		}
		path, err := filepath.EvalSymlinks(filepath.Join(byIDDir, name))
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", name, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("joystick not found in %s (match %q)", byIDDir, match)
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
