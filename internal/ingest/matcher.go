// Package ingest drives supplier files through the pipeline: detection,
// grid read, subtitle pass, per-row parsing, normalization, and the single
// transaction that lands the offer in the catalog.
package ingest

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/types"
)

// MatchSupplier routes a file to the supplier whose detection globs match
// its base name. Matching is case-insensitive and runs in document order,
// first match wins, so more specific suppliers belong earlier in the merged
// configuration.
func MatchSupplier(doc *config.Document, filePath string) (*config.SupplierConfig, error) {
	base := strings.ToLower(filepath.Base(filePath))
	for _, sup := range doc.Suppliers {
		for _, pattern := range sup.FileStructure.Detection.FileNamePatterns {
			// patterns are glob-checked at config load, Match cannot fail here
			ok, err := path.Match(strings.ToLower(pattern), base)
			if err == nil && ok {
				return sup, nil
			}
		}
	}
	return nil, &types.SupplierNotDetectedError{Path: filePath}
}
