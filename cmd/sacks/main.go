package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/appcfg"
	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/storage"
)

// Command group IDs for organized help output.
const (
	GroupIngest = "ingest"
	GroupConfig = "config"
	GroupMaint  = "maint"
)

var (
	configDir  string
	dbPath     string
	dbAddr     string
	dbUser     string
	dbPassword string
	dbName     string
	dbTLS      bool
	jsonOutput bool
	noPager    bool

	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// Opened by PersistentPreRun for the commands that need them
	cfgStore *config.Store
	store    storage.Store
)

func init() {
	// Initialize viper-backed settings (sacks.yaml + SACKS_* env)
	if err := appcfg.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize settings: %v\n", err)
	}

	// Command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupIngest, Title: "Ingestion:"},
		&cobra.Group{ID: GroupConfig, Title: "Supplier Configuration:"},
		&cobra.Group{ID: GroupMaint, Title: "Maintenance:"},
	)

	// Register persistent flags
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: $SACKS_CONFIG_DIR or discovered supplier-formats.json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Embedded database directory (default: .sacks/catalog, created when missing)")
	rootCmd.PersistentFlags().StringVar(&dbAddr, "db-addr", "", "MySQL server host:port (takes precedence over --db-path)")
	rootCmd.PersistentFlags().StringVar(&dbUser, "db-user", "", "Database user for server mode (default: root)")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", "", "Database password for server mode")
	rootCmd.PersistentFlags().StringVar(&dbName, "db-name", "", "Database schema name (default: sacks)")
	rootCmd.PersistentFlags().BoolVar(&dbTLS, "db-tls", false, "Use TLS for server connections")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noPager, "no-pager", false, "Disable pager for long output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	// Add --version flag to root command (same behavior as version subcommand)
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "sacks",
	Short: "sacks - supplier price-list ingestion",
	Long: `Reads heterogeneous supplier price lists (xlsx, csv) and lands them in a
normalized product catalog. Per-column parsing rules, lookup tables, and
subtitle handling come from a supplier-formats.json configuration directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Handle --version flag on root command
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("sacks version %s (%s)\n", Version, Build)
			return
		}
		// No subcommand - show help
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// --- Phase 1: Universal setup (runs for every command) ---
		setupSignalContext()
		applyViperOverrides(cmd)
		configureLogging()

		// --- Phase 2: Early exit for commands that stand alone ---
		if !needsConfigDir(cmd) && !needsStore(cmd) {
			return
		}

		// --- Phase 3: Shared resources, configuration before database ---
		initTelemetry()
		if needsConfigDir(cmd) {
			openConfigStore()
		}
		if needsStore(cmd) {
			openCatalogStore()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeResources()
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func main() {
	rootCmd.InitDefaultHelpCmd()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
