package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sacksapp/sacks/internal/appcfg"
	"github.com/sacksapp/sacks/internal/grid"
	"github.com/sacksapp/sacks/internal/timeparsing"
	"github.com/sacksapp/sacks/internal/types"
	"github.com/sacksapp/sacks/internal/ui"
)

var (
	processDirParallel int
	processDirSince    string
)

var processDirCmd = &cobra.Command{
	Use:     "process-dir <dir>",
	GroupID: GroupIngest,
	Short:   "Process every supported file under a directory",
	Long: `Process every supported file (.xlsx, .xlsm, .csv) under a directory.
Files run in parallel, each in its own transaction; one file failing does
not stop the others.

--since filters files by modification time. It accepts compact offsets
("-2d", "+6h"), natural language ("yesterday", "last monday"), RFC3339
timestamps, and plain dates ("2026-08-01").

The exit code is the worst individual result: a processing failure beats a
configuration error beats a rejected argument beats a duplicate offer.

Examples:
  sacks process-dir inbox/
  sacks process-dir --since -2d --parallel 8 inbox/`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runProcessDir(args[0])
	},
}

func init() {
	processDirCmd.Flags().IntVar(&processDirParallel, "parallel", 0, "Max files processed concurrently (0 = settings value, default 4)")
	processDirCmd.Flags().StringVar(&processDirSince, "since", "", "Only files modified at or after this time (\"-2d\", \"yesterday\", RFC3339)")
	processDirCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Run the full pipeline against an empty in-memory catalog; nothing is written")
	rootCmd.AddCommand(processDirCmd)
}

func runProcessDir(dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		fatal(err)
	}
	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		fatal(&types.ArgumentError{Name: "dir", Value: dir, Message: "not a directory"})
	}

	var cutoff time.Time
	if processDirSince != "" {
		cutoff, err = timeparsing.ParseRelativeTime(processDirSince, time.Now())
		if err != nil {
			fatal(&types.ArgumentError{Name: "since", Value: processDirSince, Message: err.Error()})
		}
	}

	files, err := collectFiles(absDir, cutoff)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		if jsonOutput {
			outputJSON([]*types.ProcessingResult{})
		} else {
			fmt.Println(ui.RenderMuted("no matching files under " + absDir))
		}
		return
	}

	parallel := processDirParallel
	if parallel <= 0 {
		parallel = appcfg.GetInt("parallel")
	}
	if parallel <= 0 {
		parallel = 4
	}

	proc := newProcessor()

	// Every file gets a slot up front so output order matches file order
	// no matter how the goroutines interleave.
	results := make([]*types.ProcessingResult, len(files))
	errs := make([]error, len(files))

	g, ctx := errgroup.WithContext(rootCtx)
	g.SetLimit(parallel)
	for i, path := range files {
		g.Go(func() error {
			results[i], errs[i] = proc.ProcessFile(ctx, path)
			// a file failure never cancels the batch
			return nil
		})
	}
	_ = g.Wait()

	if jsonOutput {
		outputJSON(results)
	} else {
		printBatch(results, errs)
		if dryRunFlag {
			fmt.Println(ui.RenderMuted("dry run: nothing was written to the catalog"))
		}
	}

	codes := make([]int, len(errs))
	for i, e := range errs {
		codes[i] = exitCode(e)
	}
	exitWithCode(worstExit(codes))
}

// collectFiles walks dir for supported spreadsheet files. Hidden directories
// are skipped; a non-zero cutoff drops files modified before it. The result
// is sorted so batch order is stable across platforms.
func collectFiles(dir string, cutoff time.Time) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !grid.SupportedExtension(path) {
			return nil
		}
		if !cutoff.IsZero() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().Before(cutoff) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &types.FileError{Path: dir, Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// exitRank orders exit codes by severity for batch aggregation. The numeric
// codes themselves are a contract and do not sort by severity.
var exitRank = map[int]int{
	exitOk:        0,
	exitDuplicate: 1,
	exitArgument:  2,
	exitConfig:    3,
	exitFailed:    4,
}

// worstExit folds per-file exit codes into the batch exit code.
func worstExit(codes []int) int {
	worst := exitOk
	for _, c := range codes {
		if exitRank[c] > exitRank[worst] {
			worst = c
		}
	}
	return worst
}

// printBatch renders one line per file and a closing summary.
func printBatch(results []*types.ProcessingResult, errs []error) {
	fmt.Println(ui.RenderTitle("Processing report"))

	var ok, dup, failed int
	var rows, products, lines int
	for i, res := range results {
		printBatchLine(res, errs[i])
		switch res.Status {
		case types.StatusOk:
			ok++
			rows += res.RowsParsed
			products += res.ProductsCreated
			lines += res.OfferLinesCreated
		case types.StatusDuplicateOffer:
			dup++
		default:
			failed++
		}
	}

	fmt.Println()
	fmt.Println(ui.RenderSeparator())
	fmt.Printf("%s %d processed  %s %d duplicates  %s %d failed\n",
		ui.RenderPassIcon(), ok,
		ui.RenderWarnIcon(), dup,
		ui.RenderFailIcon(), failed)
	if ok > 0 {
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d rows parsed, %d products created, %d offer lines", rows, products, lines)))
	}
}

func printBatchLine(res *types.ProcessingResult, err error) {
	base := filepath.Base(res.FilePath)
	switch res.Status {
	case types.StatusOk:
		fmt.Printf("%s %s %s\n", ui.RenderPassIcon(), base,
			ui.RenderMuted(fmt.Sprintf("%s, %d rows, %s", res.Supplier, res.RowsParsed, res.Duration.Round(time.Millisecond))))
	case types.StatusDuplicateOffer:
		fmt.Printf("%s %s %s\n", ui.RenderWarnIcon(), base, ui.RenderMuted("duplicate offer"))
	case types.StatusCanceled:
		fmt.Printf("%s %s %s\n", ui.RenderWarnIcon(), base, ui.RenderMuted("canceled"))
	default:
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		fmt.Printf("%s %s %s\n", ui.RenderFailIcon(), base, ui.RenderFail(ui.TruncateSimple(reason, 100)))
		if n := len(res.Warnings); n > 0 {
			fmt.Println(ui.RenderDetail(fmt.Sprintf("%d warnings, run 'sacks process' on the file for details", n)))
		}
	}
}
