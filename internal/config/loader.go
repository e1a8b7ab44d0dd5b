package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "GESTURED_"

	// DefaultsSource is the Source of a config built without a file.
	DefaultsSource = "<defaults>"
)

// defaultNames are tried in order inside the default config directory.
var defaultNames = []string{"config.yaml", "config.yml", "config.toml"}

// Load reads configuration from path, then overrides it with environment
// variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GESTURED_LOG_LEVEL, GESTURED_DEVICE_HOLD_TIMEOUT, etc.)
//  2. Config file (YAML, or TOML when the name ends in .toml)
//  3. Hardcoded defaults
//
// With an empty path the default directory is searched (see DefaultDir). A
// missing default file is not an error. A default file that cannot be read,
// parsed or validated is ignored: defaults and environment apply and
// Config.Fallback records the reason. Any failure with an explicit path is
// returned.
//
// # Security Considerations
//
// Group- or world-writable files are rejected since bindings run shell
// commands. Files larger than 1MB are rejected. The file is opened once and
// validated through its descriptor.
//
// # Environment Variable Mapping
//
// The GESTURED_ prefix is stripped and the remainder is split on its first
// underscore:
//
//	GESTURED_LOG_LEVEL           -> log.level
//	GESTURED_DEVICE_HOLD_TIMEOUT -> device.hold_timeout
//	GESTURED_EXECUTOR_SHELL      -> executor.shell
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return load(path)
	}

	found, err := findDefault()
	if err == nil && found == "" {
		return load("")
	}
	if err == nil {
		cfg, loadErr := load(found)
		if loadErr == nil {
			return cfg, nil
		}
		err = fmt.Errorf("ignoring %s: %w", found, loadErr)
	}

	cfg, envErr := load("")
	if envErr != nil {
		return nil, envErr
	}
	cfg.Fallback = err
	return cfg, nil
}

// load reads path (none when empty) and the environment into a validated Config.
func load(path string) (*Config, error) {
	k := koanf.New(".")

	source := DefaultsSource
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), parserFor(path)); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		source = path
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = source

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultDir returns $XDG_CONFIG_HOME/gestured, falling back to
// ~/.config/gestured.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gestured"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "gestured"), nil
}

// DefaultPath returns the first existing default config file, or the
// preferred name when none exists yet.
func DefaultPath() (string, error) {
	found, err := findDefault()
	if err != nil {
		return "", err
	}
	if found != "" {
		return found, nil
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultNames[0]), nil
}

// findDefault returns "" when no default file exists.
func findDefault() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	for _, name := range defaultNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
	}
	return "", nil
}

// readConfigFile opens path once and validates through the descriptor to
// avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, nil
}

// validateConfigFileProperties checks file type, permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", info.Name())
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOMLParser()
	}
	return yaml.Parser()
}

// envKey maps GESTURED_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}
