package extension

import "time"

// Config holds the allowance extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.allowance" or "allowance" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for allowance routes (default: "/allowance").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// MaxActionLength bounds action names in bytes (default: 64).
	MaxActionLength int `json:"max_action_length" mapstructure:"max_action_length" yaml:"max_action_length"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:        "/allowance",
		MaxActionLength: 64,
		PluginTimeout:   5 * time.Second,
	}
}
