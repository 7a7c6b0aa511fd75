package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/appcfg"
	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/types"
	"github.com/sacksapp/sacks/internal/ui"
)

var initYes bool

// starterDocument is the main document init writes: valid, empty, with one
// example lookup table to edit.
const starterDocument = `{
  "Version": 1,
  "Lookups": {
    "Units": {
      "milliliter": "ml",
      "gram": "g"
    }
  },
  "Suppliers": []
}
`

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	GroupID: GroupConfig,
	Short:   "Initialize a configuration directory",
	Long: `Initialize a configuration directory with an empty supplier-formats.json.

Optionally writes a sacks.yaml pointing db-path at <dir>/catalog, so the
whole setup is self-contained: configuration, settings, and the embedded
database all live under one directory.

Suppliers are added afterwards with 'sacks suppliers new' or by dropping
per-supplier JSON files next to the main document.

Examples:
  sacks init             # Initialize in the current directory
  sacks init ./formats   # Initialize a specific directory
  sacks init -y          # Skip the prompts`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		runInit(dir)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.AddCommand(initCmd)
}

func runInit(dir string) {
	writeSettings := true

	if !initYes {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Configuration directory").
					Description("Where supplier-formats.json will live").
					Value(&dir),

				huh.NewConfirm().
					Title("Write a sacks.yaml with the embedded database default?").
					Description("Points db-path at <dir>/catalog so the CLI works with no flags").
					Affirmative("Yes").
					Negative("No").
					Value(&writeSettings),
			),
		).WithTheme(huh.ThemeDracula())

		if err := form.Run(); err != nil {
			if err == huh.ErrUserAborted {
				fmt.Fprintln(os.Stderr, "Init cancelled.")
				os.Exit(0)
			}
			fatal(err)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fatal(err)
	}
	mainPath := filepath.Join(absDir, config.MainDocumentName)
	if _, err := os.Stat(mainPath); err == nil {
		fatal(&types.ConfigError{File: mainPath, Message: "already exists"})
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		fatal(&types.FileError{Path: absDir, Err: err})
	}
	if err := os.WriteFile(mainPath, []byte(starterDocument), 0o644); err != nil {
		fatal(&types.FileError{Path: mainPath, Err: err})
	}

	if writeSettings {
		settings := &appcfg.LocalSettings{DBPath: filepath.Join(absDir, "catalog")}
		if err := appcfg.WriteLocalSettings(absDir, settings); err != nil && !errors.Is(err, os.ErrExist) {
			fatal(err)
		}
	}

	fmt.Printf("\n%s Initialized configuration in %s\n", ui.RenderPassIcon(), absDir)
	fmt.Println(ui.RenderKeyValue("main document", mainPath))
	if writeSettings {
		fmt.Println(ui.RenderKeyValue("settings", filepath.Join(absDir, appcfg.FileName)))
	}
	fmt.Println(ui.RenderMuted("  Run 'sacks suppliers new' to add your first supplier."))
}
