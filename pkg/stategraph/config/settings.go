package config

import "fmt"

// ExecutorSettings holds engine configuration loaded from a file.
// Zero values mean "use the engine default".
//
// Expected YAML layout:
//
//	executor:
//	  max_steps: 500
//	  interrupt_before: [human_review]
//	  interrupt_after: [classify]
//	store:
//	  backend: sqlite
//	  dsn: checkpoints.db
type ExecutorSettings struct {
	MaxSteps        int
	InterruptBefore []string
	InterruptAfter  []string
	StoreBackend    string
	StoreDSN        string
}

// Supported store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// LoadExecutorSettings extracts executor and store settings from a
// parsed Config. Unknown store backends are rejected; everything else
// is optional.
func LoadExecutorSettings(cfg Config) (ExecutorSettings, error) {
	executor := cfg.Section("executor")
	store := cfg.Section("store")

	settings := ExecutorSettings{
		MaxSteps:        executor.Int("max_steps", 0),
		InterruptBefore: executor.StringSlice("interrupt_before", nil),
		InterruptAfter:  executor.StringSlice("interrupt_after", nil),
		StoreBackend:    store.String("backend", BackendMemory),
		StoreDSN:        store.String("dsn", ""),
	}

	switch settings.StoreBackend {
	case BackendMemory, BackendSQLite, BackendMySQL, BackendRedis:
	default:
		return ExecutorSettings{}, fmt.Errorf("unknown store backend: %q", settings.StoreBackend)
	}

	if settings.StoreBackend != BackendMemory && settings.StoreDSN == "" {
		return ExecutorSettings{}, fmt.Errorf("store backend %q requires a dsn", settings.StoreBackend)
	}

	return settings, nil
}
