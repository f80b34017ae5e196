package renderflow

import "fmt"

// Config is a serialisable representation of the engine configuration,
// used by the CLI and embedders that load settings from YAML or JSON.
// The zero value inherits every package default.
type Config struct {
	BaseURL     string    `json:"baseURL" yaml:"baseURL"`
	Device      string    `json:"device" yaml:"device"`
	LoopCeiling int       `json:"loopCeiling" yaml:"loopCeiling"`
	Log         LogConfig `json:"log" yaml:"log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Device: "memory",
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Validate reports invalid settings.
func (c *Config) Validate() error {
	if c.LoopCeiling < 0 {
		return fmt.Errorf("loopCeiling must be non negative, got %d", c.LoopCeiling)
	}
	switch c.Device {
	case "", "memory", "wgpu":
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	return nil
}

// Options converts the config into facade options.
func (c *Config) Options() []Option {
	var ret []Option
	if c.BaseURL != "" {
		ret = append(ret, WithBaseURL(c.BaseURL))
	}
	if c.LoopCeiling > 0 {
		ret = append(ret, WithLoopCeiling(c.LoopCeiling))
	}
	return ret
}
