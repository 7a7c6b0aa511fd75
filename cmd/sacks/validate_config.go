package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/parser"
	"github.com/sacksapp/sacks/internal/ui"
)

// supplierCheck holds the outcome of validating one supplier's format rules.
type supplierCheck struct {
	Supplier  string `json:"supplier"`
	Currency  string `json:"currency"`
	Patterns  int    `json:"patterns"`
	Columns   int    `json:"columns"`
	Actions   int    `json:"actions"`
	Subtitles int    `json:"subtitles,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// validationReport holds the outcome of validating a configuration directory.
type validationReport struct {
	Dir       string          `json:"dir"`
	Version   int             `json:"version,omitempty"`
	Lookups   int             `json:"lookups"`
	Suppliers []supplierCheck `json:"suppliers"`
	OverallOK bool            `json:"overall_ok"`
	Error     string          `json:"error,omitempty"`
}

var validateConfigCmd = &cobra.Command{
	Use:     "validate-config [dir]",
	GroupID: GroupConfig,
	Short:   "Validate the supplier format configuration",
	Long: `Validate the supplier format configuration without touching any data.

Every supplier is checked independently: structure (currency, detection
globs, row indexes, subtitle rules), lookup table references, and the full
action compile that processing would run. One broken supplier does not
mask problems in the others.

Exits 4 when anything fails, so deploy scripts can gate on it.

Examples:
  sacks validate-config              # Validate the discovered directory
  sacks validate-config ./formats    # Validate a specific directory
  sacks validate-config --json       # Machine-readable output`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var dir string
		var err error
		switch {
		case len(args) > 0:
			dir = args[0]
		case configDir != "":
			dir = configDir
		default:
			dir, err = config.Discover()
			if err != nil {
				fatal(err)
			}
		}

		report := runConfigValidation(dir)

		if jsonOutput {
			outputJSON(report)
		} else {
			printConfigValidation(report)
		}

		if !report.OverallOK {
			exitWithCode(exitConfig)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

func runConfigValidation(dir string) validationReport {
	report := validationReport{Dir: dir, OverallOK: true}

	doc, err := config.Load(dir)
	if err != nil {
		report.OverallOK = false
		report.Error = err.Error()
		return report
	}
	report.Version = doc.Version
	report.Lookups = len(doc.Lookups)

	if doc.Version <= 0 {
		report.OverallOK = false
		report.Error = fmt.Sprintf("Version must be a positive integer (got %d)", doc.Version)
		return report
	}

	for _, sup := range doc.Suppliers {
		check := checkSupplier(doc, sup)
		report.Suppliers = append(report.Suppliers, check)
		if !check.OK {
			report.OverallOK = false
		}
	}

	// Document-wide problems (duplicate supplier names) only surface here
	// when every individual supplier passed.
	if report.OverallOK {
		if err := doc.Validate(); err != nil {
			report.OverallOK = false
			report.Error = err.Error()
		}
	}

	return report
}

func checkSupplier(doc *config.Document, sup *config.SupplierConfig) supplierCheck {
	check := supplierCheck{
		Supplier: sup.Name,
		Currency: sup.Currency,
		Patterns: len(sup.FileStructure.Detection.FileNamePatterns),
		Columns:  len(sup.ParserConfig.ColumnRules),
		OK:       true,
	}
	for _, rule := range sup.ParserConfig.ColumnRules {
		check.Actions += len(rule.Actions)
	}
	if sup.SubtitleHandling != nil {
		check.Subtitles = len(sup.SubtitleHandling.Rules)
	}

	// Structural checks run on a single-supplier view so one broken
	// supplier does not hide the state of the rest.
	probe := &config.Document{Version: doc.Version, Lookups: doc.Lookups,
		Suppliers: []*config.SupplierConfig{sup}}
	if err := probe.Validate(); err != nil {
		check.OK = false
		check.Error = err.Error()
		return check
	}

	if _, err := parser.Compile(sup, doc.LookupsFor(sup)); err != nil {
		check.OK = false
		check.Error = err.Error()
	}
	return check
}

func printConfigValidation(report validationReport) {
	fmt.Println()
	fmt.Println(ui.RenderCategory("Supplier Formats"))
	fmt.Println(ui.RenderMuted("  " + report.Dir))
	fmt.Println()

	var passCount, failCount int

	for _, check := range report.Suppliers {
		name := check.Supplier
		if name == "" {
			name = "(unnamed)"
		}
		if check.OK {
			passCount++
			summary := fmt.Sprintf("%s, %d patterns, %d columns, %d actions", check.Currency, check.Patterns, check.Columns, check.Actions)
			if check.Subtitles > 0 {
				summary += fmt.Sprintf(", %d subtitle rules", check.Subtitles)
			}
			fmt.Printf("  %s  %s%s\n", ui.RenderPassIcon(), name, ui.RenderMuted(" "+summary))
		} else {
			failCount++
			fmt.Printf("  %s  %s\n", ui.RenderFailIcon(), name)
			fmt.Printf("     %s%s\n", ui.MutedStyle.Render(ui.TreeLast), ui.RenderMuted(check.Error))
		}
	}

	if report.Error != "" {
		fmt.Printf("  %s  %s\n", ui.RenderFailIcon(), report.Error)
	}

	fmt.Println()
	fmt.Println(ui.RenderSeparator())

	summary := fmt.Sprintf("%s %d suppliers ok  %s %d failed  %s",
		ui.RenderPassIcon(), passCount,
		ui.RenderFailIcon(), failCount,
		ui.RenderMuted(fmt.Sprintf("(%d lookup tables)", report.Lookups)),
	)
	fmt.Println(summary)

	if report.OverallOK {
		fmt.Println()
		fmt.Printf("%s\n", ui.RenderPass(ui.IconPass+" configuration valid"))
	}
}
