package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sacksapp/sacks/internal/types"
	"github.com/sacksapp/sacks/internal/ui"
)

// Exit codes are the sacks CLI contract; automation branches on them.
const (
	exitOk        = 0
	exitFailed    = 1
	exitDuplicate = 2
	exitArgument  = 3
	exitConfig    = 4
)

// exitCode maps an error to the exit-code contract.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOk
	case types.IsDuplicateOffer(err):
		return exitDuplicate
	case types.IsArgument(err):
		return exitArgument
	case types.IsConfig(err):
		return exitConfig
	default:
		return exitFailed
	}
}

// errorTag names the error category in reports and JSON output.
func errorTag(err error) string {
	switch {
	case err == nil:
		return ""
	case types.IsDuplicateOffer(err):
		return "duplicate_offer"
	case types.IsArgument(err):
		return "argument"
	case types.IsConfig(err):
		return "config"
	default:
		return "failed"
	}
}

// exitWith ends the command with err's mapped exit code. A nil error
// returns so the normal cobra lifecycle (PersistentPostRun) runs.
func exitWith(err error) {
	exitWithCode(exitCode(err))
}

// exitWithCode releases shared resources and exits. os.Exit skips
// PersistentPostRun, so cleanup happens here for non-zero codes.
func exitWithCode(code int) {
	if code == exitOk {
		return
	}
	closeResources()
	if rootCancel != nil {
		rootCancel()
	}
	os.Exit(code)
}

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exitWithCode(exitFailed)
	}
}

// outputJSONError writes an error object to stderr and exits with the
// error's mapped code.
func outputJSONError(err error) {
	errObj := map[string]string{"error": err.Error(), "code": errorTag(err)}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj) // best effort
	exitWithCode(exitCode(err))
}

// fatal reports a startup or command failure and exits with the error's
// mapped code.
func fatal(err error) {
	if jsonOutput {
		outputJSONError(err)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitWithCode(exitCode(err))
}

// maxShownWarnings bounds the warning lines a report prints; the full list
// stays available through --json.
const maxShownWarnings = 10

// printResult renders one file's processing report.
func printResult(res *types.ProcessingResult, err error) {
	base := filepath.Base(res.FilePath)
	switch res.Status {
	case types.StatusOk:
		fmt.Printf("%s %s\n", ui.RenderPassIcon(), ui.RenderPass(base+" processed"))
	case types.StatusDuplicateOffer:
		fmt.Printf("%s %s %s\n", ui.RenderWarnIcon(), ui.RenderWarn(base+" skipped"), ui.RenderMuted("[duplicate_offer]"))
	case types.StatusCanceled:
		fmt.Printf("%s %s %s\n", ui.RenderWarnIcon(), ui.RenderWarn(base+" canceled"), ui.RenderMuted("[canceled]"))
	default:
		fmt.Printf("%s %s %s\n", ui.RenderFailIcon(), ui.RenderFail(base+" failed"), ui.RenderMuted("["+errorTag(err)+"]"))
	}

	if res.Supplier != "" {
		fmt.Println("  " + ui.RenderKeyValue("supplier", res.Supplier))
	}
	fmt.Println("  " + ui.RenderKeyValue("file", res.FilePath))
	if res.OfferName != "" {
		fmt.Println("  " + ui.RenderKeyValue("offer", res.OfferName))
	}

	if res.Status == types.StatusOk {
		fmt.Println("  " + ui.RenderKeyValue("rows",
			fmt.Sprintf("%d read, %d parsed, %d dropped", res.RowsRead, res.RowsParsed, res.RowsDropped)))
		fmt.Println("  " + ui.RenderKeyValue("products",
			fmt.Sprintf("%d created, %d updated", res.ProductsCreated, res.ProductsUpdated)))
		fmt.Println("  " + ui.RenderKeyValue("offer lines", strconv.Itoa(res.OfferLinesCreated)))
		fmt.Println("  " + ui.RenderKeyValue("duration", res.Duration.Round(time.Millisecond).String()))
	}

	for _, e := range res.Errors {
		fmt.Printf("  %s %s\n", ui.RenderFailIcon(), ui.RenderFail(e))
	}
	printWarnings(res.Warnings)
}

// printWarnings prints up to maxShownWarnings lines, then a muted count of
// the rest.
func printWarnings(warnings []string) {
	for i, w := range warnings {
		if i == maxShownWarnings {
			fmt.Println("  " + ui.RenderMuted(fmt.Sprintf("... and %d more warnings", len(warnings)-maxShownWarnings)))
			break
		}
		fmt.Printf("  %s %s\n", ui.RenderWarnIcon(), ui.TruncateSimple(w, 120))
	}
}
