// Package mysql implements the storage contracts on a MySQL-dialect database.
//
// Two modes share the same SQL:
//
//   - embedded: a zero-setup Dolt database in a local directory, opened
//     through github.com/dolthub/driver. Single connection, single writer.
//     Requires a CGO-enabled build.
//   - server: any MySQL-protocol server (MySQL, Dolt sql-server), opened
//     through github.com/go-sql-driver/mysql.
//
// The mode is chosen by Config: Addr selects server mode, Path selects
// embedded mode.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql" // server mode driver
	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

const (
	// DefaultDatabase is the schema name used when Config.Database is empty.
	DefaultDatabase = "sacks"

	// dialTimeout bounds the TCP probe in server mode so a wrong address
	// fails in half a second instead of hanging for the driver's timeout.
	dialTimeout = 500 * time.Millisecond

	openMaxElapsed      = 30 * time.Second
	readRetryMaxElapsed = 10 * time.Second
)

// Config describes where the catalog database lives.
type Config struct {
	// Path is the directory of an embedded database, created when missing.
	// Used when Addr is empty.
	Path string

	// Addr is the "host:port" of a MySQL-protocol server. When set, it takes
	// precedence over Path.
	Addr     string
	User     string
	Password string
	TLS      bool

	// Database is the schema name. Defaults to DefaultDatabase.
	Database string
}

// Store is the MySQL-dialect implementation of storage.Store.
type Store struct {
	db         *sql.DB
	serverMode bool
	closed     atomic.Bool

	// embeddedCloser holds the embedded engine's connector, whose Close
	// releases the filesystem locks. nil in server mode.
	embeddedCloser io.Closer
}

var _ storage.Store = (*Store)(nil)

// Open connects to the catalog database, creating the database and its
// schema when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if err := validateDatabaseName(cfg.Database); err != nil {
		return nil, err
	}
	if cfg.Addr != "" {
		return openServer(ctx, cfg)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage config needs a directory path or a server address")
	}
	return openEmbedded(ctx, cfg)
}

func openServer(ctx context.Context, cfg Config) (*Store, error) {
	conn, err := net.DialTimeout("tcp", cfg.Addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("cannot reach MySQL server at %s: %w", cfg.Addr, err)
	}
	_ = conn.Close()

	// Connect without a schema first so the database can be created.
	initDB, err := sql.Open("mysql", serverDSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to open init connection: %w", err)
	}
	//nolint:gosec // G201: database name validated in Open
	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database))
	_ = initDB.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", cfg.Database, err)
	}

	db, err := sql.Open("mysql", serverDSN(cfg, cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open server connection: %w", err)
	}

	// Server mode supports multiple writers.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := pingWithBackoff(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL server at %s: %w", cfg.Addr, err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, serverMode: true}, nil
}

// serverDSN builds a go-sql-driver DSN. database may be empty for the init
// connection that creates the schema.
func serverDSN(cfg Config, database string) string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	if cfg.Password != "" {
		user += ":" + cfg.Password
	}

	params := "parseTime=true"
	if cfg.TLS {
		params += "&tls=true"
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", user, cfg.Addr, database, params)
}

// validateDatabaseName guards the one identifier we interpolate into CREATE
// DATABASE statements, which cannot be parameterized.
func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("database name %q is too long (max 64)", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("database name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

func newOpenBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

func newReadRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = readRetryMaxElapsed
	return bo
}

func pingWithBackoff(ctx context.Context, db *sql.DB) error {
	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(newOpenBackoff(), ctx))
}

// isRetryableError reports whether the error is a transient connection error
// worth retrying on a read path in server mode.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// withRetry retries fn on transient connection errors. Only read paths use
// it: a retried write whose first attempt actually landed would duplicate
// catalog rows, so writes surface their first error.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	if !s.serverMode {
		return fn()
	}
	operation := func() error {
		err := fn()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newReadRetryBackoff(), ctx))
}

// Stats counts the catalog entities.
func (s *Store) Stats(ctx context.Context) (*types.CatalogStats, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("store is closed")
	}

	stats := &types.CatalogStats{}
	counts := []struct {
		table string
		dest  *int64
	}{
		{"suppliers", &stats.Suppliers},
		{"offers", &stats.Offers},
		{"products", &stats.Products},
		{"product_offers", &stats.ProductOffers},
	}
	for _, c := range counts {
		err := s.withRetry(ctx, func() error {
			//nolint:gosec // G201: table names are compile-time constants
			return s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(c.dest)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("store is closed")
	}
	return s.db.PingContext(ctx)
}

// Close releases the connection pool and, in embedded mode, the engine's
// filesystem locks. Close is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.db.Close()
	if s.embeddedCloser != nil {
		err = errors.Join(err, ignoreCanceled(s.embeddedCloser.Close()))
	}
	return err
}

// ignoreCanceled drops context.Canceled surfaced by the embedded engine's
// shutdown plumbing; it is cleanup noise, not a failure.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
