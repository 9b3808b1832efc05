package stategraph

import (
	"fmt"

	"github.com/kcollins/stategraph/pkg/stategraph/checkpoint"
	"github.com/kcollins/stategraph/pkg/stategraph/config"
)

// OpenStore creates the checkpoint store described by file-loaded
// settings. The caller owns the returned store and must Close it.
//
// Backends:
//   - memory: in-process, no DSN
//   - sqlite: DSN is the database file path
//   - mysql:  DSN in go-sql-driver format (user:pass@tcp(host)/db)
//   - redis:  DSN is the server address (host:port)
func OpenStore(settings config.ExecutorSettings) (checkpoint.Store, error) {
	switch settings.StoreBackend {
	case config.BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	case config.BackendSQLite:
		return checkpoint.NewSQLiteStore(settings.StoreDSN)
	case config.BackendMySQL:
		return checkpoint.NewMySQLStore(settings.StoreDSN)
	case config.BackendRedis:
		return checkpoint.NewRedisStore(settings.StoreDSN, "", 0), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", settings.StoreBackend)
	}
}
