package main

import (
	"fmt"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

// absCodes and keyCodes map the evdev names accepted in the config file to
// their codes. They are built from golang-evdev's code-to-name tables, so any
// name the kernel headers define is accepted.
var (
	absCodes = make(map[string]uint16)
	keyCodes = make(map[string]uint16)
)

// sharedCodeNames lists names that share a code with another name.
// golang-evdev keeps only one name per code, chosen at random.
var sharedCodeNames = map[string]uint16{
	"KEY_MUTE":              evdev.KEY_MUTE,
	"KEY_MIN_INTERESTING":   evdev.KEY_MIN_INTERESTING,
	"KEY_HANGEUL":           evdev.KEY_HANGEUL,
	"KEY_HANGUEL":           evdev.KEY_HANGUEL,
	"KEY_COFFEE":            evdev.KEY_COFFEE,
	"KEY_SCREENLOCK":        evdev.KEY_SCREENLOCK,
	"KEY_ROTATE_DISPLAY":    evdev.KEY_ROTATE_DISPLAY,
	"KEY_DIRECTION":         evdev.KEY_DIRECTION,
	"KEY_BRIGHTNESS_AUTO":   evdev.KEY_BRIGHTNESS_AUTO,
	"KEY_BRIGHTNESS_ZERO":   evdev.KEY_BRIGHTNESS_ZERO,
	"KEY_WWAN":              evdev.KEY_WWAN,
	"KEY_WIMAX":             evdev.KEY_WIMAX,
	"KEY_DISPLAYTOGGLE":     evdev.KEY_DISPLAYTOGGLE,
	"KEY_BRIGHTNESS_TOGGLE": evdev.KEY_BRIGHTNESS_TOGGLE,
	"KEY_FASTREVERSE":       evdev.KEY_FASTREVERSE,
	"KEY_DATA":              evdev.KEY_DATA,

	"BTN_MISC":           evdev.BTN_MISC,
	"BTN_0":              evdev.BTN_0,
	"BTN_MOUSE":          evdev.BTN_MOUSE,
	"BTN_LEFT":           evdev.BTN_LEFT,
	"BTN_JOYSTICK":       evdev.BTN_JOYSTICK,
	"BTN_TRIGGER":        evdev.BTN_TRIGGER,
	"BTN_GAMEPAD":        evdev.BTN_GAMEPAD,
	"BTN_SOUTH":          evdev.BTN_SOUTH,
	"BTN_A":              evdev.BTN_A,
	"BTN_EAST":           evdev.BTN_EAST,
	"BTN_B":              evdev.BTN_B,
	"BTN_NORTH":          evdev.BTN_NORTH,
	"BTN_X":              evdev.BTN_X,
	"BTN_WEST":           evdev.BTN_WEST,
	"BTN_Y":              evdev.BTN_Y,
	"BTN_DIGI":           evdev.BTN_DIGI,
	"BTN_TOOL_PEN":       evdev.BTN_TOOL_PEN,
	"BTN_WHEEL":          evdev.BTN_WHEEL,
	"BTN_GEAR_DOWN":      evdev.BTN_GEAR_DOWN,
	"BTN_TRIGGER_HAPPY":  evdev.BTN_TRIGGER_HAPPY,
	"BTN_TRIGGER_HAPPY1": evdev.BTN_TRIGGER_HAPPY1,
}

// golang-evdev fills its tables in its own init, which runs before this one.
func init() {
	for code, name := range evdev.ABS {
		absCodes[name] = uint16(code)
	}
	// KEY_* and BTN_* share the EV_KEY code space.
	for code, name := range evdev.KEY {
		keyCodes[name] = uint16(code)
	}
	for code, name := range evdev.BTN {
		keyCodes[name] = uint16(code)
	}
	for name, code := range sharedCodeNames {
		keyCodes[name] = code
	}
}

// lookupAxis resolves an ABS_* name to its evdev code.
func lookupAxis(name string) (uint16, error) {
	code, ok := absCodes[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown axis %q (expected an ABS_* name)", name)
	}
	return code, nil
}

// lookupKey resolves a KEY_* or BTN_* name to its evdev code.
func lookupKey(name string) (uint16, error) {
	code, ok := keyCodes[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key %q (expected a KEY_* or BTN_* name)", name)
	}
	return code, nil
}
