package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/appcfg"
	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/parser"
	"github.com/sacksapp/sacks/internal/storage/memory"
	"github.com/sacksapp/sacks/internal/storage/mysql"
	"github.com/sacksapp/sacks/internal/telemetry"
)

// --------------------------------------------------------------------------
// Bootstrap pipeline steps for PersistentPreRun
//
// Each function is a single concern in the initialization sequence. The
// PersistentPreRun in main.go calls these in order, making the boot
// sequence self-documenting.
// --------------------------------------------------------------------------

// DefaultDBDir is the embedded database directory used when neither
// --db-path nor --db-addr is configured.
const DefaultDBDir = ".sacks/catalog"

// setupSignalContext creates a context that cancels on SIGINT/SIGTERM so a
// long ingestion run stops at the next row boundary and rolls back.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyViperOverrides merges settings values (sacks.yaml + SACKS_* env) into
// flags that weren't explicitly set on the command line.
// Priority: flags > env vars > settings file > defaults.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = appcfg.GetBool("json")
	}
	if !cmd.Flags().Changed("no-pager") {
		noPager = appcfg.GetBool("no-pager")
	}
	if !cmd.Flags().Changed("db-tls") {
		dbTLS = appcfg.GetBool("db-tls")
	}
	if !cmd.Flags().Changed("config-dir") && configDir == "" {
		configDir = appcfg.GetString("config-dir")
	}
	if !cmd.Flags().Changed("db-path") && dbPath == "" {
		dbPath = appcfg.GetString("db-path")
	}
	if !cmd.Flags().Changed("db-addr") && dbAddr == "" {
		dbAddr = appcfg.GetString("db-addr")
	}
	if !cmd.Flags().Changed("db-user") && dbUser == "" {
		dbUser = appcfg.GetString("db-user")
	}
	if !cmd.Flags().Changed("db-password") && dbPassword == "" {
		dbPassword = appcfg.GetString("db-password")
	}
	if !cmd.Flags().Changed("db-name") && dbName == "" {
		dbName = appcfg.GetString("db-name")
	}
}

// configureLogging applies log level and format from flags and settings. A
// bad value is a configuration error and exits with its code.
func configureLogging() {
	if err := appcfg.ConfigureLogging(verboseFlag, quietFlag); err != nil {
		fatal(err)
	}
}

// configDirCommands lists commands that read the supplier-format directory.
var configDirCommands = []string{"process", "process-dir", "suppliers"}

// storeCommands lists commands that open the catalog database.
var storeCommands = []string{"process", "process-dir", "stats"}

// needsConfigDir reports whether the command (or its parent, for subcommands
// like "suppliers show") works from the supplier-format directory.
func needsConfigDir(cmd *cobra.Command) bool {
	if cmd.Parent() != nil && slices.Contains(configDirCommands, cmd.Parent().Name()) {
		return true
	}
	return slices.Contains(configDirCommands, cmd.Name())
}

// needsStore reports whether the command opens the catalog database.
func needsStore(cmd *cobra.Command) bool {
	return slices.Contains(storeCommands, cmd.Name())
}

// initTelemetry installs the OTel providers. No-op providers unless
// SACKS_OTEL_ENABLED=true; a failed init degrades to no telemetry.
func initTelemetry() {
	if err := telemetry.Init(rootCtx, "sacks", Version); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
	}
}

// openConfigStore resolves the configuration directory, loads every supplier
// document, and compiles all rules. Any validation failure aborts here,
// before an input file or the database is touched.
func openConfigStore() {
	dir := configDir
	if dir == "" {
		var err error
		dir, err = config.Discover()
		if err != nil {
			fatal(err)
		}
	}
	s, err := config.NewStore(dir, parser.CompileAll)
	if err != nil {
		fatal(err)
	}
	cfgStore = s
}

// openCatalogStore opens the embedded or server-mode catalog database and
// wraps it with the telemetry decorator. --dry-run substitutes an empty
// in-memory catalog so the full upsert path runs without persisting.
func openCatalogStore() {
	if dryRunFlag {
		store = telemetry.WrapStore(memory.New())
		return
	}
	if dbPath == "" && dbAddr == "" {
		dbPath = filepath.FromSlash(DefaultDBDir)
	}
	s, err := mysql.Open(rootCtx, mysql.Config{
		Path:     dbPath,
		Addr:     dbAddr,
		User:     dbUser,
		Password: dbPassword,
		TLS:      dbTLS,
		Database: dbName,
	})
	if err != nil {
		fatal(fmt.Errorf("failed to open catalog database: %w", err))
	}
	store = telemetry.WrapStore(s)
}

// closeResources closes the catalog store and flushes telemetry. Called from
// PersistentPostRun on the normal path and from exitWithCode on error paths,
// because os.Exit skips the cobra lifecycle.
func closeResources() {
	if store != nil {
		_ = store.Close()
		store = nil
	}
	// Shutdown flushes pending spans/metrics; the root context may already
	// be canceled, so give it a fresh short-lived one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	telemetry.Shutdown(ctx)
	cancel()
}
