package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
)

const validYAML = `
joystick:
  x_axis: ABS_X
  y_axis: ABS_Y
  center: 512
  deadzone: 30
  sensitivity: 0.05
  poll_interval: 0.01
  invert_y: true
throttle:
  axis: ABS_Z
  increase_key: KEY_EQUAL
  decrease_key: KEY_MINUS
  change_threshold: 10
  press_duration_multiplier: 0.02
  max_threshold: 240
  min_threshold: 15
`

func mustParse(t *testing.T, src string) Config {
	t.Helper()
	cfg, err := parseConfig([]byte(src))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	return cfg
}

func TestParseConfig_AppliesDefaults(t *testing.T) {
	cfg := mustParse(t, validYAML)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ToggleKey != defaultToggleKey {
		t.Errorf("toggle_key = %q, want default", cfg.ToggleKey)
	}
	if !cfg.ReleaseOnDisable {
		t.Error("release_on_disable should default to true")
	}
	if cfg.Rudder.Axis != "ABS_RZ" || cfg.Rudder.Deadzone != 100 {
		t.Errorf("rudder defaults not applied: %+v", cfg.Rudder)
	}
	if !cfg.Throttle.Invert {
		t.Error("throttle.invert should default to true")
	}
	if cfg.Control.SocketPath != defaultSocketPath {
		t.Errorf("control.socket_path = %q", cfg.Control.SocketPath)
	}
}

func TestResolve(t *testing.T) {
	cfg := mustParse(t, validYAML)
	ec, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if ec.Axes[AxisThrottle] != evdev.ABS_Z || ec.Axes[AxisRudder] != evdev.ABS_RZ {
		t.Errorf("axes = %v", ec.Axes)
	}
	if ec.ToggleKey != evdev.BTN_TRIGGER_HAPPY15 {
		t.Errorf("toggle key = %d", ec.ToggleKey)
	}
	if ec.PollInterval != 10*time.Millisecond {
		t.Errorf("poll interval = %v", ec.PollInterval)
	}
	if ec.Pointer.Center != 512 || ec.Pointer.Deadzone != 30 || !ec.Pointer.InvertY {
		t.Errorf("pointer = %+v", ec.Pointer)
	}
	if ec.Throttle.IncreaseKey != evdev.KEY_EQUAL || ec.Throttle.MaxThreshold != 240 {
		t.Errorf("throttle = %+v", ec.Throttle)
	}
	// Rudder center follows the joystick center unless set.
	if ec.Rudder.Center != 512 || ec.Rudder.LeftKey != evdev.KEY_Q {
		t.Errorf("rudder = %+v", ec.Rudder)
	}
}

func TestResolve_RudderCenterOverride(t *testing.T) {
	cfg := mustParse(t, validYAML+"rudder:\n  center: 128\n")
	ec, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ec.Rudder.Center != 128 {
		t.Errorf("rudder center = %d, want 128", ec.Rudder.Center)
	}
	if ec.initialAxes()[AxisRudder] != 128 {
		t.Errorf("initial rudder = %d, want 128", ec.initialAxes()[AxisRudder])
	}
}

func TestParseConfig_LegacyJSON(t *testing.T) {
	src := `{
  "joystick": {"x_axis": "ABS_X", "y_axis": "ABS_Y", "center": 512, "deadzone": 30,
               "sensitivity": 0.05, "poll_interval": 0.01},
  "throttle": {"axis": "ABS_Z", "increase_key": "KEY_EQUAL", "decrease_key": "KEY_MINUS",
               "change_threshold": 10, "press_duration_multiplier": 0.02,
               "max_threshold": 950, "min_threshold": 50, "invert": false},
  "rudder": {"axis": "ABS_RZ", "left_key": "KEY_A", "right_key": "KEY_D", "deadzone": 80,
             "change_threshold": 20, "press_duration_multiplier": 0.01},
  "toggle_key": "BTN_TRIGGER_HAPPY3"
}`
	cfg := mustParse(t, src)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Throttle.Invert {
		t.Error("explicit invert=false was overridden by the default")
	}
	if cfg.Rudder.LeftKey != "KEY_A" || cfg.ToggleKey != "BTN_TRIGGER_HAPPY3" {
		t.Errorf("json values not applied: %+v", cfg)
	}
}

func TestParseConfig_RejectsUnknownField(t *testing.T) {
	_, err := parseConfig([]byte(validYAML + "joystik: {}\n"))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing center", func(c *Config) { c.Joystick.Center = nil }, "joystick.center is required"},
		{"missing sensitivity", func(c *Config) { c.Joystick.Sensitivity = nil }, "joystick.sensitivity is required"},
		{"missing change threshold", func(c *Config) { c.Throttle.ChangeThreshold = nil }, "throttle.change_threshold is required"},
		{"missing multiplier", func(c *Config) { c.Throttle.PressDurationMultiplier = nil }, "throttle.press_duration_multiplier is required"},
		{"zero poll", func(c *Config) { zero := 0.0; c.Joystick.PollInterval = &zero }, "joystick.poll_interval must be > 0"},
		{"thresholds", func(c *Config) { c.Throttle.MinThreshold = 240 }, "min_threshold must be < throttle.max_threshold"},
		{"same keys", func(c *Config) { c.Throttle.DecreaseKey = "KEY_EQUAL" }, "must differ"},
		{"unknown key", func(c *Config) { c.ToggleKey = "KEY_NOPE" }, "unknown key"},
		{"unknown axis", func(c *Config) { c.Throttle.Axis = "ABS_NOPE" }, "throttle.axis"},
		{"shared axis", func(c *Config) { c.Rudder.Axis = "ABS_Z" }, "both use code"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"discovery", func(c *Config) { c.Device.Match = nil }, "device.match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustParse(t, validYAML)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ExplicitPathSkipsDiscovery(t *testing.T) {
	cfg := mustParse(t, validYAML)
	cfg.Device.Match = nil
	cfg.Device.Path = "/dev/input/event7"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := mustParse(t, validYAML)

	dev, level := "/dev/input/event3", "debug"
	FlagOverrides{DevicePath: &dev, LogLevel: &level}.Apply(&cfg)

	if cfg.Device.Path != dev || cfg.Logging.Level != level {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Control.SocketPath != defaultSocketPath {
		t.Errorf("unset override changed socket path to %q", cfg.Control.SocketPath)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if *cfg.Joystick.Center != 512 {
		t.Errorf("center = %d", *cfg.Joystick.Center)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigFile_Example(t *testing.T) {
	cfg, err := LoadConfigFile("../../config.example.yaml")
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config does not validate: %v", err)
	}
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	for name, trailing := range map[string]string{
		"empty mapping": "---\n{}\n",
		"with fields":   "---\njoystick:\n  center: 1\n",
		"scalar":        "---\nhello\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseConfig([]byte(validYAML + trailing))
			if err == nil || !strings.Contains(err.Error(), "trailing document") {
				t.Fatalf("expected trailing document error, got %v", err)
			}
		})
	}

	// Trailing comments are not a document.
	if _, err := parseConfig([]byte(validYAML + "# done\n\n")); err != nil {
		t.Fatalf("unexpected error for trailing comment: %v", err)
	}
}
