package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file for flightmouse.
//
// The file is YAML. JSON is a subset of YAML, so config.json files written
// for earlier versions load unchanged.
//
// Required keys are pointers so that an absent key can be told apart from a
// zero value; Validate reports them by their YAML path.
type Config struct {
	// Physical and virtual device selection
	Device DeviceConfig `yaml:"device"`

	// Stick X/Y to pointer motion
	Joystick JoystickConfig `yaml:"joystick"`

	// Throttle lever to increase/decrease keys
	Throttle ThrottleFileConfig `yaml:"throttle"`

	// Rudder axis to left/right keys
	Rudder RudderFileConfig `yaml:"rudder"`

	// Button that enables/disables all translation
	ToggleKey string `yaml:"toggle_key"`

	// Release held keys when translation is disabled mid-hold
	ReleaseOnDisable bool `yaml:"release_on_disable"`

	// Control socket (flightmouse ctl)
	Control ControlConfig `yaml:"control"`

	// Status websocket
	Status StatusConfig `yaml:"status"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	Path        string   `yaml:"path,omitempty"` // explicit event node; skips discovery
	ByIDDir     string   `yaml:"by_id_dir"`
	Match       []string `yaml:"match"` // all substrings must appear in the by-id name
	Grab        bool     `yaml:"grab,omitempty"`
	Uinput      string   `yaml:"uinput"`
	VirtualName string   `yaml:"virtual_name"`
}

type JoystickConfig struct {
	XAxis        string   `yaml:"x_axis"`
	YAxis        string   `yaml:"y_axis"`
	Center       *int     `yaml:"center"`
	Deadzone     *int     `yaml:"deadzone"`
	Sensitivity  *float64 `yaml:"sensitivity"`
	PollInterval *float64 `yaml:"poll_interval"` // seconds
	InvertY      bool     `yaml:"invert_y"`
}

type ThrottleFileConfig struct {
	Axis                    string   `yaml:"axis"`
	IncreaseKey             string   `yaml:"increase_key"`
	DecreaseKey             string   `yaml:"decrease_key"`
	ChangeThreshold         *int     `yaml:"change_threshold"`
	PressDurationMultiplier *float64 `yaml:"press_duration_multiplier"` // seconds per unit of change
	MaxThreshold            int      `yaml:"max_threshold"`
	MinThreshold            int      `yaml:"min_threshold"`
	Invert                  bool     `yaml:"invert"`
}

type RudderFileConfig struct {
	Axis     string `yaml:"axis"`
	LeftKey  string `yaml:"left_key"`
	RightKey string `yaml:"right_key"`
	Center   *int   `yaml:"center,omitempty"` // defaults to joystick.center
	Deadzone int    `yaml:"deadzone"`

	// Accepted for compatibility with older config files; the rudder is
	// bang-bang and does not tap.
	ChangeThreshold         int     `yaml:"change_threshold"`
	PressDurationMultiplier float64 `yaml:"press_duration_multiplier"`
}

type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StatusConfig struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:8642"; empty disables
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with every optional key populated.
// Required keys are left nil/empty.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			ByIDDir:     defaultByIDDir,
			Match:       []string{"X52_Professional", "event-joystick"},
			Uinput:      defaultUinputPath,
			VirtualName: defaultVirtualName,
		},
		Throttle: ThrottleFileConfig{
			MaxThreshold: defaultMaxThreshold,
			MinThreshold: defaultMinThreshold,
			// Most throttle levers report reversed.
			Invert: true,
		},
		Rudder: RudderFileConfig{
			Axis:                    defaultRudderAxis,
			LeftKey:                 defaultRudderLeftKey,
			RightKey:                defaultRudderRightKey,
			Deadzone:                defaultRudderDeadzone,
			ChangeThreshold:         defaultRudderChangeThreshold,
			PressDurationMultiplier: defaultRudderPressDurationMultiplier,
		},
		ToggleKey:        defaultToggleKey,
		ReleaseOnDisable: true,
		Control: ControlConfig{
			SocketPath: defaultSocketPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a config file on top of DefaultConfig.
//
// Unknown fields are rejected (catches typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document. A yaml.Node
	// takes any document, so KnownFields cannot mask one.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err != nil {
			return Config{}, fmt.Errorf("decode config yaml: %w", err)
		}
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document at line %d", trailing.Line)
	}

	return cfg, nil
}

// FlagOverrides holds command-line overrides. A nil pointer means "not set".
type FlagOverrides struct {
	DevicePath    *string
	LogLevel      *string
	ControlSocket *string
	StatusListen  *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.DevicePath != nil {
		cfg.Device.Path = *o.DevicePath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.ControlSocket != nil {
		cfg.Control.SocketPath = *o.ControlSocket
	}
	if o.StatusListen != nil {
		cfg.Status.Listen = *o.StatusListen
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Device
	if c.Device.Path == "" {
		if c.Device.ByIDDir == "" {
			return errors.New("device.by_id_dir must not be empty when device.path is unset")
		}
		if len(c.Device.Match) == 0 {
			return errors.New("device.match must not be empty when device.path is unset")
		}
	}
	if c.Device.Uinput == "" {
		return errors.New("device.uinput must not be empty")
	}
	if c.Device.VirtualName == "" {
		return errors.New("device.virtual_name must not be empty")
	}

	// Joystick
	if c.Joystick.XAxis == "" {
		return errors.New("joystick.x_axis is required")
	}
	if c.Joystick.YAxis == "" {
		return errors.New("joystick.y_axis is required")
	}
	if c.Joystick.Center == nil {
		return errors.New("joystick.center is required")
	}
	if c.Joystick.Deadzone == nil {
		return errors.New("joystick.deadzone is required")
	}
	if *c.Joystick.Deadzone < 0 {
		return errors.New("joystick.deadzone must be >= 0")
	}
	if c.Joystick.Sensitivity == nil {
		return errors.New("joystick.sensitivity is required")
	}
	if c.Joystick.PollInterval == nil {
		return errors.New("joystick.poll_interval is required")
	}
	if *c.Joystick.PollInterval <= 0 || math.IsNaN(*c.Joystick.PollInterval) {
		return errors.New("joystick.poll_interval must be > 0")
	}

	// Throttle
	if c.Throttle.Axis == "" {
		return errors.New("throttle.axis is required")
	}
	if c.Throttle.IncreaseKey == "" {
		return errors.New("throttle.increase_key is required")
	}
	if c.Throttle.DecreaseKey == "" {
		return errors.New("throttle.decrease_key is required")
	}
	if c.Throttle.ChangeThreshold == nil {
		return errors.New("throttle.change_threshold is required")
	}
	if *c.Throttle.ChangeThreshold < 0 {
		return errors.New("throttle.change_threshold must be >= 0")
	}
	if c.Throttle.PressDurationMultiplier == nil {
		return errors.New("throttle.press_duration_multiplier is required")
	}
	if *c.Throttle.PressDurationMultiplier < 0 {
		return errors.New("throttle.press_duration_multiplier must be >= 0")
	}
	if c.Throttle.MinThreshold >= c.Throttle.MaxThreshold {
		return errors.New("throttle.min_threshold must be < throttle.max_threshold")
	}
	if c.Throttle.IncreaseKey == c.Throttle.DecreaseKey {
		return errors.New("throttle.increase_key and throttle.decrease_key must differ")
	}

	// Rudder
	if c.Rudder.Axis == "" {
		return errors.New("rudder.axis must not be empty")
	}
	if c.Rudder.LeftKey == "" || c.Rudder.RightKey == "" {
		return errors.New("rudder.left_key and rudder.right_key must not be empty")
	}
	if c.Rudder.LeftKey == c.Rudder.RightKey {
		return errors.New("rudder.left_key and rudder.right_key must differ")
	}
	if c.Rudder.Deadzone < 0 {
		return errors.New("rudder.deadzone must be >= 0")
	}
	if c.Rudder.ChangeThreshold < 0 {
		return errors.New("rudder.change_threshold must be >= 0")
	}
	if c.Rudder.PressDurationMultiplier < 0 {
		return errors.New("rudder.press_duration_multiplier must be >= 0")
	}

	if c.ToggleKey == "" {
		return errors.New("toggle_key must not be empty")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	// Names are resolved last so structural errors are reported first.
	if _, err := c.Resolve(); err != nil {
		return err
	}
	return nil
}

// Resolve converts the file config into the engine's typed configuration:
// names become evdev codes and seconds become durations.
// Validate must have succeeded (required pointers are dereferenced here).
func (c *Config) Resolve() (EngineConfig, error) {
	var ec EngineConfig
	var err error

	if ec.Axes[AxisX], err = lookupAxis(c.Joystick.XAxis); err != nil {
		return EngineConfig{}, fmt.Errorf("joystick.x_axis: %w", err)
	}
	if ec.Axes[AxisY], err = lookupAxis(c.Joystick.YAxis); err != nil {
		return EngineConfig{}, fmt.Errorf("joystick.y_axis: %w", err)
	}
	if ec.Axes[AxisThrottle], err = lookupAxis(c.Throttle.Axis); err != nil {
		return EngineConfig{}, fmt.Errorf("throttle.axis: %w", err)
	}
	if ec.Axes[AxisRudder], err = lookupAxis(c.Rudder.Axis); err != nil {
		return EngineConfig{}, fmt.Errorf("rudder.axis: %w", err)
	}
	if err := ec.Axes.distinct(); err != nil {
		return EngineConfig{}, err
	}

	if ec.ToggleKey, err = lookupKey(c.ToggleKey); err != nil {
		return EngineConfig{}, fmt.Errorf("toggle_key: %w", err)
	}
	if ec.Throttle.IncreaseKey, err = lookupKey(c.Throttle.IncreaseKey); err != nil {
		return EngineConfig{}, fmt.Errorf("throttle.increase_key: %w", err)
	}
	if ec.Throttle.DecreaseKey, err = lookupKey(c.Throttle.DecreaseKey); err != nil {
		return EngineConfig{}, fmt.Errorf("throttle.decrease_key: %w", err)
	}
	if ec.Rudder.LeftKey, err = lookupKey(c.Rudder.LeftKey); err != nil {
		return EngineConfig{}, fmt.Errorf("rudder.left_key: %w", err)
	}
	if ec.Rudder.RightKey, err = lookupKey(c.Rudder.RightKey); err != nil {
		return EngineConfig{}, fmt.Errorf("rudder.right_key: %w", err)
	}

	center := int32(*c.Joystick.Center)
	ec.PollInterval = seconds(*c.Joystick.PollInterval)
	if ec.PollInterval <= 0 {
		return EngineConfig{}, fmt.Errorf("joystick.poll_interval %v is below timer resolution", *c.Joystick.PollInterval)
	}
	ec.ReleaseOnDisable = c.ReleaseOnDisable

	ec.Pointer = PointerConfig{
		Center:      center,
		Deadzone:    int32(*c.Joystick.Deadzone),
		Sensitivity: *c.Joystick.Sensitivity,
		InvertY:     c.Joystick.InvertY,
	}

	ec.Throttle.ChangeThreshold = int32(*c.Throttle.ChangeThreshold)
	ec.Throttle.PressDurationMultiplier = *c.Throttle.PressDurationMultiplier
	ec.Throttle.MaxThreshold = int32(c.Throttle.MaxThreshold)
	ec.Throttle.MinThreshold = int32(c.Throttle.MinThreshold)
	ec.Throttle.Invert = c.Throttle.Invert

	ec.Rudder.Center = center
	if c.Rudder.Center != nil {
		ec.Rudder.Center = int32(*c.Rudder.Center)
	}
	ec.Rudder.Deadzone = int32(c.Rudder.Deadzone)

	return ec, nil
}

// seconds converts a float number of seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
