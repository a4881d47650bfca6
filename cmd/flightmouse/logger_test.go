package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error":   LogLevelError,
		"WARN":    LogLevelWarn,
		"warning": LogLevelWarn,
		" info ":  LogLevelInfo,
		"Debug":   LogLevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSetupLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, LogLevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "axis", "throttle")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "axis=throttle") {
		t.Errorf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "app=flightmouse") || !strings.Contains(out, "version="+version) {
		t.Errorf("root attributes missing: %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := withComponent(setupLogger(&buf, LogLevelDebug), "rudder")

	logger.Debug("rudder direction changed", "direction", DirLeft)

	out := buf.String()
	if !strings.Contains(out, "component=rudder") || !strings.Contains(out, "direction=left") {
		t.Errorf("component attributes missing: %q", out)
	}
}
