// Package sacks provides a minimal public API for embedding the supplier
// ingestion pipeline in other Go programs.
//
// Most integrations should run the sacks CLI and branch on its exit codes.
// This package exports only the essential types and functions for Go
// programs that want to drive processing directly: open a store, load a
// configuration directory, process files.
package sacks

import (
	"context"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/ingest"
	"github.com/sacksapp/sacks/internal/parser"
	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/storage/mysql"
	"github.com/sacksapp/sacks/internal/types"
)

// Core types for catalog rows and processing results
type (
	Supplier         = types.Supplier
	Offer            = types.Offer
	Product          = types.Product
	ProductOffer     = types.ProductOffer
	ProcessingResult = types.ProcessingResult
	CatalogStats     = types.CatalogStats
	Status           = types.Status
)

// Result status constants
const (
	StatusOk             = types.StatusOk
	StatusDuplicateOffer = types.StatusDuplicateOffer
	StatusCanceled       = types.StatusCanceled
	StatusFailed         = types.StatusFailed
)

// Configuration types
type (
	Document       = config.Document
	SupplierConfig = config.SupplierConfig
	ConfigStore    = config.Store
)

// Store is the catalog storage interface.
type Store = storage.Store

// DBConfig selects and configures the catalog backend: embedded database
// when Path is set, MySQL-protocol server when Addr is set.
type DBConfig = mysql.Config

// Processor turns supplier files into catalog offers. Safe for concurrent
// ProcessFile calls.
type Processor = ingest.Processor

// OpenStore opens the catalog database.
func OpenStore(ctx context.Context, cfg DBConfig) (Store, error) {
	return mysql.Open(ctx, cfg)
}

// LoadConfig reads a configuration directory, merges its documents,
// validates them, and compiles every supplier's rules. The returned
// document is ready to hand to NewProcessor.
func LoadConfig(dir string) (*Document, error) {
	doc, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := parser.CompileAll(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenConfigStore opens a validating, hot-reloadable view of a
// configuration directory. Pass it as a Processor's Config and run Watch
// in a goroutine to follow file edits.
func OpenConfigStore(dir string) (*ConfigStore, error) {
	return config.NewStore(dir, parser.CompileAll)
}

// NewProcessor returns a processor bound to a fixed configuration. This
// covers the common load-once embedding; use OpenConfigStore for hot
// reload.
func NewProcessor(doc *Document, store Store) *Processor {
	return ingest.New(staticConfig{doc: doc}, store)
}

// NewWatchingProcessor returns a processor that takes a fresh snapshot from
// cfg for every file, so configuration edits apply between runs. Run
// cfg.Watch in a goroutine to pick up edits automatically.
func NewWatchingProcessor(cfg *ConfigStore, store Store) *Processor {
	return ingest.New(cfg, store)
}

type staticConfig struct{ doc *config.Document }

func (s staticConfig) Snapshot() *config.Document { return s.doc }
