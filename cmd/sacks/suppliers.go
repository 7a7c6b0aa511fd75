package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/types"
	"github.com/sacksapp/sacks/internal/ui"
)

var suppliersCmd = &cobra.Command{
	Use:     "suppliers",
	GroupID: GroupConfig,
	Short:   "List configured suppliers",
	Long: `List the configured suppliers in detection order.

Detection order matters: when a filename matches several suppliers'
patterns, the first one listed wins.

Examples:
  sacks suppliers            # List all suppliers
  sacks suppliers show acme  # Show one supplier's rules
  sacks suppliers new        # Scaffold a supplier interactively`,
	Run: func(cmd *cobra.Command, args []string) {
		doc := cfgStore.Snapshot()

		if jsonOutput {
			outputJSON(doc.Suppliers)
			return
		}
		if len(doc.Suppliers) == 0 {
			fmt.Println(ui.RenderMuted("no suppliers configured, run 'sacks suppliers new' to add one"))
			return
		}

		nameWidth := 0
		for _, sup := range doc.Suppliers {
			if len(sup.Name) > nameWidth {
				nameWidth = len(sup.Name)
			}
		}
		for _, sup := range doc.Suppliers {
			patterns := strings.Join(sup.FileStructure.Detection.FileNamePatterns, ", ")
			fmt.Printf("  %s  %s  %s\n",
				ui.RenderAccent(fmt.Sprintf("%-*s", nameWidth, sup.Name)),
				sup.Currency,
				ui.RenderMuted(patterns))
		}
	},
}

var suppliersShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one supplier's format rules",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc := cfgStore.Snapshot()
		sup, ok := doc.FindSupplier(args[0])
		if !ok {
			fatal(&types.ArgumentError{Name: "supplier", Value: args[0], Message: "no such supplier"})
		}

		if jsonOutput {
			outputJSON(sup)
			return
		}

		content := ui.RenderMarkdown(supplierMarkdown(sup))
		if err := ui.ToPager(content, ui.PagerOptions{NoPager: noPager}); err != nil {
			fmt.Print(content)
		}
	},
}

var suppliersNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Scaffold a supplier using an interactive form",
	Long: `Scaffold a new supplier document using an interactive terminal form.

The form collects the basics: name, currency, filename patterns, and where
the data starts. It writes a supplier JSON file with one starter column
rule into the configuration directory; edit the column rules afterwards to
match the supplier's actual layout.

Keyboard navigation:
  - Tab/Shift+Tab: Move between fields
  - Enter: Submit the form (on the last field or submit button)
  - Ctrl+C: Cancel and exit`,
	Run: func(cmd *cobra.Command, args []string) {
		runSuppliersNew()
	},
}

func init() {
	suppliersCmd.AddCommand(suppliersShowCmd)
	suppliersCmd.AddCommand(suppliersNewCmd)
	rootCmd.AddCommand(suppliersCmd)
}

// supplierMarkdown renders one supplier's configuration as markdown for
// terminal display.
func supplierMarkdown(sup *config.SupplierConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sup.Name)
	if sup.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", sup.Description)
	}
	fmt.Fprintf(&b, "- Currency: %s\n", sup.Currency)
	fmt.Fprintf(&b, "- Detection: %s\n", strings.Join(sup.FileStructure.Detection.FileNamePatterns, ", "))
	fmt.Fprintf(&b, "- Header row %d, data starts at row %d\n",
		sup.FileStructure.HeaderRowIndex, sup.FileStructure.DataStartRowIndex)
	if sup.FileStructure.ExpectedColumnCount > 0 {
		fmt.Fprintf(&b, "- Expected columns: %d\n", sup.FileStructure.ExpectedColumnCount)
	}

	b.WriteString("\n## Column rules\n")
	for i := range sup.ParserConfig.ColumnRules {
		rule := &sup.ParserConfig.ColumnRules[i]
		fmt.Fprintf(&b, "\n### Column %s\n\n", rule.Column)
		for j := range rule.Actions {
			a := &rule.Actions[j]
			line := fmt.Sprintf("- **%s**", a.Op)
			if a.Input != "" {
				line += fmt.Sprintf(" on `%s`", a.Input)
			}
			if a.Output != "" {
				line += fmt.Sprintf(" -> `%s`", a.Output)
			}
			if !a.Assigns() {
				line += " (intermediate)"
			}
			if a.Condition != "" {
				line += fmt.Sprintf(" when `%s`", a.Condition)
			}
			b.WriteString(line + "\n")
			for _, name := range a.ParamNames() {
				v, _ := a.Param(name)
				fmt.Fprintf(&b, "  - %s: `%s`\n", name, v)
			}
		}
	}

	if sh := sup.SubtitleHandling; sh != nil && len(sh.Rules) > 0 {
		b.WriteString("\n## Subtitle rules\n\n")
		for i := range sh.Rules {
			r := &sh.Rules[i]
			fmt.Fprintf(&b, "- **%s** (%s)", r.Name, r.Method)
			if r.Action == "skip" {
				b.WriteString(": skip row")
			} else if len(r.Assignments) > 0 {
				targets := make([]string, 0, len(r.Assignments))
				for _, as := range r.Assignments {
					targets = append(targets, as.TargetProperty)
				}
				fmt.Fprintf(&b, ": sets %s", strings.Join(targets, ", "))
			}
			if r.ApplyToSubsequentRows {
				b.WriteString(", applies to following rows")
			}
			b.WriteString("\n")
		}
	}

	if len(sup.Lookups) > 0 {
		b.WriteString("\n## Supplier lookup tables\n\n")
		names := make([]string, 0, len(sup.Lookups))
		for name := range sup.Lookups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s (%d entries)\n", name, len(sup.Lookups[name]))
		}
	}

	return b.String()
}

func runSuppliersNew() {
	// Form field values
	var (
		name        string
		description string
		currency    string
		patternsIn  string
		headerRowIn string
		dataRowIn   string
		confirmed   bool
	)

	currencyOptions := []huh.Option[string]{
		huh.NewOption("EUR - Euro", "EUR"),
		huh.NewOption("USD - US Dollar", "USD"),
		huh.NewOption("GBP - Pound Sterling", "GBP"),
		huh.NewOption("CHF - Swiss Franc", "CHF"),
		huh.NewOption("PLN - Polish Zloty", "PLN"),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Unique supplier name (required)").
				Placeholder("e.g., Candle Factory").
				Value(&name).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return fmt.Errorf("name is required")
					}
					if _, dup := cfgStore.Snapshot().FindSupplier(s); dup {
						return fmt.Errorf("supplier %q already exists", s)
					}
					return nil
				}),

			huh.NewText().
				Title("Description").
				Description("Notes about this supplier's files (optional)").
				Placeholder("Monthly price list, prices in cents...").
				CharLimit(500).
				Value(&description),

			huh.NewSelect[string]().
				Title("Currency").
				Description("Currency of the offer prices").
				Options(currencyOptions...).
				Value(&currency),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Filename patterns").
				Description("Comma-separated globs that route files here (required)").
				Placeholder("e.g., candle-*.xlsx, cf_pricelist_*.csv").
				Value(&patternsIn).
				Validate(func(s string) error {
					pats := splitList(s)
					if len(pats) == 0 {
						return fmt.Errorf("at least one pattern is required")
					}
					for _, p := range pats {
						if _, err := path.Match(strings.ToLower(p), "probe"); err != nil {
							return fmt.Errorf("pattern %q: %v", p, err)
						}
					}
					return nil
				}),

			huh.NewInput().
				Title("Header row").
				Description("0-based row index of the column headers (default 0)").
				Placeholder("0").
				Value(&headerRowIn).
				Validate(validateRowIndex),

			huh.NewInput().
				Title("First data row").
				Description("0-based row index where data starts (default 1)").
				Placeholder("1").
				Value(&dataRowIn).
				Validate(validateRowIndex),

			huh.NewConfirm().
				Title("Write this supplier file?").
				Affirmative("Write").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeDracula())

	err := form.Run()
	if err != nil {
		if err == huh.ErrUserAborted {
			fmt.Fprintln(os.Stderr, "Supplier creation cancelled.")
			os.Exit(0)
		}
		fatal(err)
	}
	if !confirmed {
		fmt.Fprintln(os.Stderr, "Supplier creation cancelled.")
		os.Exit(0)
	}

	name = strings.TrimSpace(name)
	sup := &config.SupplierConfig{
		Name:        name,
		Currency:    currency,
		Description: strings.TrimSpace(description),
		FileStructure: config.FileStructure{
			HeaderRowIndex:    parseRowIndex(headerRowIn, 0),
			DataStartRowIndex: parseRowIndex(dataRowIn, 1),
			Detection:         config.Detection{FileNamePatterns: splitList(patternsIn)},
		},
		ParserConfig: config.ParserConfig{
			// Starter rule so the document compiles. Edit to match the file.
			ColumnRules: []config.ColumnRule{
				{Column: "A", Actions: []config.ActionConfig{
					{Op: "Assign", Input: "Text", Output: "Product.Name"},
				}},
			},
		},
	}

	filePath := filepath.Join(cfgStore.Dir(), supplierFileName(name))
	if _, err := os.Stat(filePath); err == nil {
		fatal(&types.ConfigError{File: filePath, Message: "file already exists"})
	}
	if err := config.Save(filePath, sup); err != nil {
		fatal(err)
	}
	if err := cfgStore.Reload(); err != nil {
		// The file is on disk but the aggregate no longer compiles.
		fatal(err)
	}

	fmt.Printf("\n%s Created supplier: %s\n", ui.RenderPassIcon(), name)
	fmt.Println(ui.RenderKeyValue("file", filePath))
	fmt.Println(ui.RenderKeyValue("patterns", strings.Join(splitList(patternsIn), ", ")))
	fmt.Println(ui.RenderMuted("  Edit the column rules, then run 'sacks validate-config'."))
}

func validateRowIndex(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("want a non-negative row index")
	}
	return nil
}

// parseRowIndex parses a 0-based row index, falling back to def when the
// field was left empty. Form validation already rejected bad values.
func parseRowIndex(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// supplierFileName derives the JSON filename for a supplier: lowercase,
// separators collapsed to single dashes, anything else dropped.
func supplierFileName(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "supplier"
	}
	return slug + ".json"
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
