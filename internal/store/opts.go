package store

import (
	"errors"
	"strings"
)

// ErrOrderNotFound is returned when an order status update targets an
// unknown order ID.
var ErrOrderNotFound = errors.New("order not found")

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string for the store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite file path for the store.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType inspects a DSN and reports the matching database driver,
// either "postgres" or "sqlite3". Anything that does not look like a
// PostgreSQL connection string is treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	// Key=value connection strings (host=... user=...) are PostgreSQL too.
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}
