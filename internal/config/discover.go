package config

import (
	"os"
	"path/filepath"

	"github.com/sacksapp/sacks/internal/types"
)

// EnvConfigDir names the environment variable that pins the configuration
// directory, bypassing discovery.
const EnvConfigDir = "SACKS_CONFIG_DIR"

// maxClimb bounds how far up discovery walks looking for the main document.
const maxClimb = 6

// Discover resolves the configuration directory: the SACKS_CONFIG_DIR
// environment variable when set, otherwise climbing from the binary's
// directory, then from the working directory, up to six levels each,
// looking for supplier-formats.json.
func Discover() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		if !hasMainDocument(dir) {
			return "", &types.ConfigError{File: dir,
				Message: EnvConfigDir + " does not contain " + MainDocumentName}
		}
		return dir, nil
	}

	var roots []string
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}

	for _, root := range roots {
		if dir, ok := climb(root); ok {
			return dir, nil
		}
	}
	return "", &types.ConfigError{
		Message: MainDocumentName + " not found; set " + EnvConfigDir + " or run near a configuration directory"}
}

func climb(start string) (string, bool) {
	dir := start
	for i := 0; i <= maxClimb; i++ {
		if hasMainDocument(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func hasMainDocument(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MainDocumentName))
	return err == nil && !info.IsDir()
}
