package store

import (
	"context"
	"fmt"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Options struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
}

// NewStore opens the configured backend. SQLite is the default; a database
// URL without an explicit driver selects postgres.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
		if strings.TrimSpace(opts.DatabaseURL) != "" {
			driver = DriverPostgres
		}
	}

	switch driver {
	case DriverSQLite:
		if strings.TrimSpace(opts.SQLitePath) == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLite(ctx, opts.SQLitePath)
	case DriverPostgres:
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, fmt.Errorf("postgres store requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case DriverMemory:
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (expected sqlite|postgres|memory)", opts.Driver)
	}
}
