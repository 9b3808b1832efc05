/*
Package config provides type-safe configuration extraction from
map[string]any, plus a typed settings layer for the workflow engine.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "timeout": "30s",
	    "retries": 3,
	    "enabled": true,
	})

	timeout := cfg.Duration("timeout", 10*time.Second) // 30s
	retries := cfg.Int("retries", 5)                   // 3
	enabled := cfg.Bool("enabled", false)              // true
	missing := cfg.String("missing", "default")        // "default"

All accessors return the default value when the key is missing, the
value cannot be converted to the requested type, or the conversion
would lose precision.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("config.yaml")
	if err != nil {
	    log.Fatal(err)
	}

# Engine Settings

LoadExecutorSettings maps a parsed file onto the engine's knobs:

	settings, err := config.LoadExecutorSettings(cfg)
	// settings.MaxSteps, settings.InterruptBefore, settings.StoreBackend, ...

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
