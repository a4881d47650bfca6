package main

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Throttle hardware reports 0..255; inversion maps v to throttleRange-v.
const (
	throttleRange   = 255
	throttleNeutral = 128
)

// Config defaults
const (
	defaultConfigPath   = "config.yaml"
	defaultByIDDir      = "/dev/input/by-id"
	defaultUinputPath   = "/dev/uinput"
	defaultVirtualName  = "X52 Virtual Mouse + Throttle"
	defaultSocketPath   = "/tmp/flightmouse.sock"
	defaultToggleKey    = "BTN_TRIGGER_HAPPY15"
	defaultMaxThreshold = 950
	defaultMinThreshold = 50

	defaultRudderAxis                    = "ABS_RZ"
	defaultRudderLeftKey                 = "KEY_Q"
	defaultRudderRightKey                = "KEY_E"
	defaultRudderDeadzone                = 100
	defaultRudderChangeThreshold         = 20
	defaultRudderPressDurationMultiplier = 0.01
)

// Status channel sizing
const (
	statusQueueSize  = 64
	controlQueueSize = 8
)
