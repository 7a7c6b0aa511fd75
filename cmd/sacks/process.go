package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/ingest"
	"github.com/sacksapp/sacks/internal/telemetry"
	"github.com/sacksapp/sacks/internal/ui"
)

var (
	processTrace bool

	// dryRunFlag is shared by process and process-dir; prerun swaps the
	// catalog store for an empty in-memory one when it is set.
	dryRunFlag bool
)

var processCmd = &cobra.Command{
	Use:     "process <file>",
	GroupID: GroupIngest,
	Short:   "Process one supplier file into the catalog",
	Long: `Process a single supplier price list (.xlsx, .xlsm, .csv): detect the
supplier from the file name, run every row through the configured column
rules, and land products and offer lines in one transaction.

Re-processing a file is rejected as a duplicate offer; nothing is written.

Exit codes:
  0  processed
  1  processing failed
  2  offer already exists (duplicate)
  3  invalid argument (path, extension)
  4  configuration error

Examples:
  sacks process inbox/acme-aug.xlsx
  sacks process --json inbox/acme-aug.xlsx
  sacks process --trace inbox/acme-aug.xlsx     # per-action traces for rule debugging
  sacks process --dry-run inbox/acme-aug.xlsx   # full run against a throwaway catalog`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := filepath.Abs(args[0])
		if err != nil {
			fatal(err)
		}

		proc := newProcessor()
		proc.Trace = processTrace

		res, err := proc.ProcessFile(rootCtx, path)
		if jsonOutput {
			outputJSON(res)
		} else {
			printResult(res, err)
			if dryRunFlag {
				fmt.Println(ui.RenderMuted("dry run: nothing was written to the catalog"))
			}
		}
		exitWith(err)
	},
}

// newProcessor wires the shared configuration store and catalog store into
// a processor with metrics attached.
func newProcessor() *ingest.Processor {
	p := ingest.New(cfgStore, store)
	p.Metrics = telemetry.NewProcessingMetrics()
	return p
}

func init() {
	processCmd.Flags().BoolVar(&processTrace, "trace", false, "Record per-action traces in the result warnings (rule debugging)")
	processCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Run the full pipeline against an empty in-memory catalog; nothing is written")
	rootCmd.AddCommand(processCmd)
}
