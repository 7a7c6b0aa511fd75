package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sacksapp/sacks/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: GroupMaint,
	Short:   "Show catalog statistics",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := store.Stats(rootCtx)
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}

		fmt.Printf("\n%s\n\n", ui.RenderCategory("Catalog"))
		fmt.Printf("Suppliers:     %d\n", stats.Suppliers)
		fmt.Printf("Offers:        %d\n", stats.Offers)
		fmt.Printf("Products:      %d\n", stats.Products)
		fmt.Printf("Offer lines:   %d\n", stats.ProductOffers)
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
