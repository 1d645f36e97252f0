// Package config handles compositor configuration using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the full compositor configuration.
type Config struct {
	Layout   LayoutConfig      `mapstructure:"layout"`
	Bindings map[string]string `mapstructure:"bindings"`
	Outputs  []OutputConfig    `mapstructure:"outputs"`
	Logging  LoggingConfig     `mapstructure:"logging"`
}

// LayoutConfig controls tiling behavior.
type LayoutConfig struct {
	DefaultSplit string  `mapstructure:"default_split"` // "horizontal" or "vertical"
	FloatSize    float64 `mapstructure:"float_size"`    // fraction of the output a new floating window takes
}

// OutputConfig describes one output. Outputs not listed here come up
// with whatever mode the backend reports.
type OutputConfig struct {
	Name    string `mapstructure:"name"`
	X       int    `mapstructure:"x"`
	Y       int    `mapstructure:"y"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Scale   int    `mapstructure:"scale"`
	Refresh int    `mapstructure:"refresh"` // mHz
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // overrides LOG_LEVEL env var
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	Layout: LayoutConfig{
		DefaultSplit: "horizontal",
		FloatSize:    0.5,
	},
	Bindings: map[string]string{
		"super+enter":   "spawn-terminal",
		"super+q":       "close",
		"super+f":       "fullscreen",
		"super+space":   "float",
		"super+v":       "split",
		"super+j":       "focus-next",
		"super+k":       "focus-prev",
		"super+shift+e": "quit",
	},
	Logging: LoggingConfig{
		LogLevel: "",
	},
}

// Load reads the configuration. If path is empty the usual locations
// are searched; a missing file is not an error and yields defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("tatami")
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			v.AddConfigPath(filepath.Join(dir, "tatami"))
		} else if home := os.Getenv("HOME"); home != "" {
			v.AddConfigPath(filepath.Join(home, ".config", "tatami"))
		}
		v.AddConfigPath("/etc/tatami")
		v.AddConfigPath(".")
	}

	v.SetDefault("layout.default_split", DefaultConfig.Layout.DefaultSplit)
	v.SetDefault("layout.float_size", DefaultConfig.Layout.FloatSize)
	v.SetDefault("bindings", DefaultConfig.Bindings)
	v.SetDefault("outputs", DefaultConfig.Outputs)
	v.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
