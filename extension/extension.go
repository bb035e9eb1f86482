// Package extension provides the Forge extension adapter for the
// allowance ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Unless routes are disabled, the extension also builds an http.Handler
// serving the allowance call surface under the configured base path.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.allowance" or
// "allowance" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/api"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "allowance"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Delegated spending allowances keyed by owner, spender and action"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the allowance ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *allowance.Ledger
	store      store.Store
	heights    allowance.HeightSource
	ledgerOpts []allowance.Option
	caller     api.CallerFunc
	handler    http.Handler
}

// New creates a new allowance Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *allowance.Ledger { return e.engine }

// Handler returns the HTTP handler serving the allowance routes under
// Config.BasePath. It is nil until Register is called, and stays nil
// when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*allowance.Ledger, error) {
		return e.engine, nil
	})
}

// build creates the ledger engine and, unless disabled, its routes from
// the resolved config.
func (e *Extension) build() error {
	if e.heights == nil {
		return errors.New("allowance: a height source is required; use WithHeightSource")
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = allowance.New(e.store, e.heights, e.buildLedgerOpts()...)

	if !e.config.DisableRoutes {
		e.handler = e.routes()
	}
	return nil
}

// routes mounts the allowance call surface under the base path.
func (e *Extension) routes() *gin.Engine {
	caller := e.caller
	if caller == nil {
		caller = api.HeaderCaller("")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	api.Register(r.Group(e.config.BasePath), e.engine, caller)
	return r
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("allowance: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("allowance: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs allowance.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []allowance.Option {
	opts := make([]allowance.Option, 0, len(e.ledgerOpts)+2)

	if e.config.MaxActionLength > 0 {
		opts = append(opts, allowance.WithMaxActionLength(e.config.MaxActionLength))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, allowance.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("allowance: configuration is required but not found in config files; " +
				"ensure 'extensions.allowance' or 'allowance' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("allowance: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("max_action_length", e.config.MaxActionLength),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.allowance", "allowance"} {
		if !cm.IsSet(key) {
			continue
		}
		err := cm.Bind(key, &cfg)
		if err == nil {
			e.Logger().Debug("allowance: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("allowance: failed to bind config",
			forge.F("key", key),
			forge.F("error", err),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.MaxActionLength == 0 {
		cfg.MaxActionLength = defaults.MaxActionLength
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.MaxActionLength == 0 && programmaticConfig.MaxActionLength != 0 {
		yamlConfig.MaxActionLength = programmaticConfig.MaxActionLength
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
