// Package config provides configuration loading for gestured.
//
// Configuration is read once at startup from a YAML or TOML file with
// environment overrides, and is treated as an immutable snapshot afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete gestured configuration.
type Config struct {
	Log      LogConfig       `koanf:"log"`
	Device   DeviceConfig    `koanf:"device"`
	Executor ExecutorConfig  `koanf:"executor"`
	IPC      IPCConfig       `koanf:"ipc"`
	Gestures []GestureConfig `koanf:"gestures"`

	// Source is the file the configuration was read from, or "<defaults>".
	Source string `koanf:"-"`
	// Fallback is why an unusable default file was ignored.
	Fallback error `koanf:"-"`
}

// LogConfig holds log verbosity and formatting.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DeviceConfig controls touchpad discovery and gesture recognition.
type DeviceConfig struct {
	Seat string `koanf:"seat"`
	// Path pins a specific event node instead of probing the seat.
	Path           string   `koanf:"path"`
	HoldTimeout    Duration `koanf:"hold_timeout"`
	SwipeThreshold float64  `koanf:"swipe_threshold"`
	PinchThreshold float64  `koanf:"pinch_threshold"`
}

// ExecutorConfig controls how command templates are run.
type ExecutorConfig struct {
	Shell string `koanf:"shell"`
	// ReapTimeout bounds how long shutdown waits for started commands.
	ReapTimeout Duration `koanf:"reap_timeout"`
}

// IPCConfig controls the control socket.
type IPCConfig struct {
	Disable         bool     `koanf:"disable"`
	Socket          string   `koanf:"socket"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// GestureConfig is one binding as written in the config file. Direction holds
// a compass direction for swipes and in/out for pinches.
type GestureConfig struct {
	Type      string `koanf:"type"`
	Fingers   int    `koanf:"fingers"`
	Direction string `koanf:"direction"`

	Start  string `koanf:"start"`
	Update string `koanf:"update"`
	End    string `koanf:"end"`
	Action string `koanf:"action"`

	Acceleration float64 `koanf:"acceleration"`
	// MouseUpDelay is in milliseconds.
	MouseUpDelay int `koanf:"mouse_up_delay"`

	Scale      float64 `koanf:"scale"`
	DeltaAngle float64 `koanf:"delta_angle"`
	Repeat     string  `koanf:"repeat"`
}

// Default returns the baseline configuration with no gesture bindings.
func Default() *Config {
	cfg := &Config{Source: "<defaults>"}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the daemon settings. Binding semantics are checked when
// the bindings are built by the gesture package.
//
// Returns an error if:
//   - Log format is not json or console
//   - Recognition thresholds are not positive
//   - A gesture has an empty type or a finger count below 1
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}
	if c.Device.Seat == "" {
		return errors.New("device seat cannot be empty")
	}
	if c.Device.HoldTimeout.Duration() <= 0 {
		return errors.New("device hold_timeout must be positive")
	}
	if c.Device.SwipeThreshold <= 0 {
		return fmt.Errorf("device swipe_threshold must be > 0, got %g", c.Device.SwipeThreshold)
	}
	if c.Device.PinchThreshold <= 0 || c.Device.PinchThreshold >= 1 {
		return fmt.Errorf("device pinch_threshold must be in (0, 1), got %g", c.Device.PinchThreshold)
	}
	if strings.TrimSpace(c.Executor.Shell) == "" {
		return errors.New("executor shell cannot be empty")
	}
	if c.Executor.ReapTimeout.Duration() <= 0 {
		return errors.New("executor reap_timeout must be positive")
	}
	if c.IPC.ShutdownTimeout.Duration() <= 0 {
		return errors.New("ipc shutdown_timeout must be positive")
	}
	for i, g := range c.Gestures {
		if strings.TrimSpace(g.Type) == "" {
			return fmt.Errorf("gestures[%d]: type is required", i)
		}
		if g.Fingers < 1 {
			return fmt.Errorf("gestures[%d]: fingers must be >= 1, got %d", i, g.Fingers)
		}
		if g.MouseUpDelay < 0 {
			return fmt.Errorf("gestures[%d]: mouse_up_delay cannot be negative", i)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Device.Seat == "" {
		cfg.Device.Seat = "seat0"
	}
	if cfg.Device.HoldTimeout == 0 {
		cfg.Device.HoldTimeout = Duration(180 * time.Millisecond)
	}
	if cfg.Device.SwipeThreshold == 0 {
		cfg.Device.SwipeThreshold = 40 // ~1mm in 1000dpi units
	}
	if cfg.Device.PinchThreshold == 0 {
		cfg.Device.PinchThreshold = 0.15
	}

	if cfg.Executor.Shell == "" {
		cfg.Executor.Shell = "/bin/sh"
	}

	if cfg.Executor.ReapTimeout == 0 {
		cfg.Executor.ReapTimeout = Duration(2 * time.Second)
	}
	if cfg.IPC.ShutdownTimeout == 0 {
		cfg.IPC.ShutdownTimeout = Duration(2 * time.Second)
	}
}
