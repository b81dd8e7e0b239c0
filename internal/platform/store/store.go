// Package store persists converted artifacts.
package store

import (
	"fmt"

	"github.com/dontdude/goconv/internal/domain"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver       string
	DatabasePath string
	RedisAddr    string
	RedisPrefix  string
}

// Open returns the configured artifact store.
func Open(opts Options) (domain.ArtifactStore, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLite(opts.DatabasePath)
	case DriverRedis:
		prefix := opts.RedisPrefix
		if prefix == "" {
			prefix = "goconv:artifact"
		}
		return NewRedisStore(opts.RedisAddr, prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
