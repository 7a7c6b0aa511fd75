package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sacksapp/sacks/internal/types"
)

// appConfigNames are JSON files in the configuration directory that belong
// to the application itself, not to any supplier.
var appConfigNames = map[string]bool{
	"sacks.json": true,
}

// Load reads the main document plus every sibling supplier document from
// dir and merges them into one aggregate. Suppliers merge by name,
// case-insensitively: a later file replaces an earlier definition but keeps
// its original position, so detection priority follows first appearance.
func Load(dir string) (*Document, error) {
	mainPath := filepath.Join(dir, MainDocumentName)
	doc, err := parseMain(mainPath)
	if err != nil {
		return nil, err
	}

	siblings, err := supplierFiles(dir)
	if err != nil {
		return nil, &types.ConfigError{File: dir, Message: "listing configuration directory", Err: err}
	}

	for _, path := range siblings {
		sup, err := parseSupplier(path)
		if err != nil {
			return nil, err
		}
		mergeSupplier(doc, sup)
		log.WithFields(log.Fields{"file": filepath.Base(path), "supplier": sup.Name}).
			Debug("merged supplier document")
	}

	return doc, nil
}

func parseMain(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{File: path, Message: "reading main document", Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.ConfigError{File: path, Message: fmt.Sprintf("parsing JSON: %v", err), Err: err}
	}
	return &doc, nil
}

func parseSupplier(path string) (*SupplierConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{File: path, Message: "reading supplier document", Err: err}
	}
	var sup SupplierConfig
	if err := json.Unmarshal(data, &sup); err != nil {
		return nil, &types.ConfigError{File: path, Message: fmt.Sprintf("parsing JSON: %v", err), Err: err}
	}
	if sup.Name == "" {
		return nil, &types.ConfigError{File: path, Message: "supplier document has no Name"}
	}
	return &sup, nil
}

// supplierFiles lists the per-supplier documents in dir, sorted by name so
// merge order is stable across platforms.
func supplierFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".json") {
			continue
		}
		if name == MainDocumentName || appConfigNames[strings.ToLower(name)] || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func mergeSupplier(doc *Document, sup *SupplierConfig) {
	for i, existing := range doc.Suppliers {
		if strings.EqualFold(existing.Name, sup.Name) {
			doc.Suppliers[i] = sup
			return
		}
	}
	doc.Suppliers = append(doc.Suppliers, sup)
}

// Save writes a supplier document as indented JSON. Used by the scaffolding
// commands; the ingestion path never writes configuration.
func Save(path string, sup *SupplierConfig) error {
	data, err := json.MarshalIndent(sup, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling supplier config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
