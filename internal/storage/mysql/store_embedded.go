//go:build cgo

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	embedded "github.com/dolthub/driver"
)

// The embedded driver requires a committer identity for its internal
// version-control commits. The catalog does not surface that history, so a
// fixed identity is fine.
const (
	embeddedCommitter      = "sacks"
	embeddedCommitterEmail = "sacks@localhost"
)

func openEmbedded(ctx context.Context, cfg Config) (*Store, error) {
	// A regular file at the path (say, a stray export) would make MkdirAll
	// fail with a confusing message. Catch it first.
	if info, statErr := os.Stat(cfg.Path); statErr == nil && !info.IsDir() {
		return nil, fmt.Errorf("database path %q is a file, not a directory", cfg.Path)
	}
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The embedded driver stacks relative paths onto its own working
	// directory, so the DSN must carry an absolute path.
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	initDSN := fmt.Sprintf("file://%s?commitname=%s&commitemail=%s",
		absPath, embeddedCommitter, embeddedCommitterEmail)
	dbDSN := fmt.Sprintf("file://%s?commitname=%s&commitemail=%s&database=%s",
		absPath, embeddedCommitter, embeddedCommitterEmail, cfg.Database)

	// Separate unit of work: the database has to exist before the main
	// connector can select it in its DSN.
	if err := withEmbedded(initDSN, func(db *sql.DB) error {
		//nolint:gosec // G201: database name validated in Open
		_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database))
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create embedded database: %w", err)
	}

	db, connector, err := openEmbeddedPool(dbDSN)
	if err != nil {
		return nil, err
	}

	// Do not ping with the caller's ctx here. The embedded driver derives a
	// session context from the first Connect and reuses it across later
	// statements, so a short-lived ctx would poison the pool.
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("failed to ping embedded database: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, err
	}

	return &Store{db: db, embeddedCloser: connector}, nil
}

// withEmbedded runs one unit of work on its own connector, closing both the
// pool and the connector before returning so no filesystem locks leak.
func withEmbedded(dsn string, fn func(db *sql.DB) error) (err error) {
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse embedded DSN: %w", err)
	}
	cfg.BackOff = newOpenBackoff()

	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedded connector: %w", err)
	}
	db := sql.OpenDB(connector)

	defer func() {
		cerr := errors.Join(ignoreCanceled(db.Close()), ignoreCanceled(connector.Close()))
		if err == nil {
			err = cerr
		}
	}()

	return fn(db)
}

func openEmbeddedPool(dsn string) (*sql.DB, *embedded.Connector, error) {
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse embedded DSN: %w", err)
	}
	cfg.BackOff = newOpenBackoff()

	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedded connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// Embedded mode is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, connector, nil
}
