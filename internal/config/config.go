package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default configuration location
const EnvConfigPath = "CUTE_LIGHTS_CONFIG_PATH"

// Config represents the application configuration
type Config struct {
	Kasa  KasaConfig  `yaml:"kasa"`
	Govee GoveeConfig `yaml:"govee"`
	Hue   HueConfig   `yaml:"hue"`
	Log   LogConfig   `yaml:"log"`
	Frame FrameConfig `yaml:"frame"`
}

// KasaConfig contains settings for TCP framed bulbs
type KasaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"` // ip or ip:port, port defaults to 9999
	Timeout   Duration `yaml:"timeout"`   // Bound on one request/response exchange (default: 5s)
}

// GoveeConfig contains settings for UDP multicast bulbs
type GoveeConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Addresses     []string `yaml:"addresses"`
	ScanTimeout   int      `yaml:"scan_timeout"`   // Milliseconds (default: 5000)
	StatusTimeout int      `yaml:"status_timeout"` // Milliseconds to wait for a devStatus reply (default: 2000)
	ListenPort    int      `yaml:"listen_port"`    // Shared control socket port (default: 4002)
	DevicePort    int      `yaml:"device_port"`    // Device unicast control port (default: 4003)
}

// ScanTimeoutDuration returns the scan timeout as a time.Duration
func (c *GoveeConfig) ScanTimeoutDuration() time.Duration {
	return time.Duration(c.ScanTimeout) * time.Millisecond
}

// StatusTimeoutDuration returns the devStatus timeout as a time.Duration
func (c *GoveeConfig) StatusTimeoutDuration() time.Duration {
	return time.Duration(c.StatusTimeout) * time.Millisecond
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Enabled      bool     `yaml:"enabled"`
	BridgeIP     string   `yaml:"bridge_ip"`
	Username     string   `yaml:"username"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for bridge requests (default: 10s)
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Commands per second shared by all lights of the bridge (default: 10)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// FrameConfig contains frame executor settings
type FrameConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"` // 0 = one goroutine per operation
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every integration disabled and all defaults applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a configuration document and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadDefault loads the configuration from DefaultPath.
// A missing file is not an error: the all-disabled Default is returned instead.
func LoadDefault() (*Config, error) {
	cfg, err := Load(DefaultPath())
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath resolves $CUTE_LIGHTS_CONFIG_PATH, then $XDG_CONFIG_HOME/cute_lights/lights.yaml,
// then ~/.config/cute_lights/lights.yaml
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "cute_lights", "lights.yaml")
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Kasa defaults
	if cfg.Kasa.Timeout == 0 {
		cfg.Kasa.Timeout = Duration(5 * time.Second)
	}

	// Govee defaults
	if cfg.Govee.ScanTimeout == 0 {
		cfg.Govee.ScanTimeout = 5000
	}
	if cfg.Govee.StatusTimeout == 0 {
		cfg.Govee.StatusTimeout = 2000
	}
	if cfg.Govee.ListenPort == 0 {
		cfg.Govee.ListenPort = 4002
	}
	if cfg.Govee.DevicePort == 0 {
		cfg.Govee.DevicePort = 4003
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
