// Package appcfg holds application-level settings for the sacks CLI:
// database coordinates, logging, and output preferences. Settings come
// from three layers with increasing precedence: built-in defaults, an
// optional sacks.yaml discovered by walking up from the working
// directory, and SACKS_* environment variables. Command-line flags are
// merged on top by the cmd layer.
//
// Supplier format documents are a separate concern, owned by
// internal/config.
package appcfg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// FileName is the optional settings file discovered near the working
// directory.
const FileName = "sacks.yaml"

// maxClimb bounds how far up discovery walks looking for sacks.yaml.
const maxClimb = 6

var v *viper.Viper

// Initialize builds the settings instance: defaults, then sacks.yaml
// when one is found, then environment overrides. Safe to call again;
// each call starts from a fresh instance.
func Initialize() error {
	fresh := viper.New()

	fresh.SetDefault("json", false)
	fresh.SetDefault("no-pager", false)
	fresh.SetDefault("db-path", "")
	fresh.SetDefault("db-addr", "")
	fresh.SetDefault("db-user", "root")
	fresh.SetDefault("db-password", "")
	fresh.SetDefault("db-name", "")
	fresh.SetDefault("db-tls", false)
	fresh.SetDefault("log-level", "info")
	fresh.SetDefault("log-format", "text")
	fresh.SetDefault("parallel", 4)
	fresh.SetDefault("config-dir", "")

	// Explicit bindings rather than AutomaticEnv so unrelated SACKS_*
	// variables can never leak into settings.
	bindings := map[string]string{
		"json":        "SACKS_JSON",
		"no-pager":    "SACKS_NO_PAGER",
		"db-path":     "SACKS_DB_PATH",
		"db-addr":     "SACKS_DB_ADDR",
		"db-user":     "SACKS_DB_USER",
		"db-password": "SACKS_DB_PASSWORD",
		"db-name":     "SACKS_DB_NAME",
		"db-tls":      "SACKS_DB_TLS",
		"log-level":   "SACKS_LOG_LEVEL",
		"log-format":  "SACKS_LOG_FORMAT",
		"parallel":    "SACKS_PARALLEL",
		"config-dir":  config.EnvConfigDir,
	}
	for key, env := range bindings {
		if err := fresh.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path := findSettingsFile(); path != "" {
		fresh.SetConfigFile(path)
		fresh.SetConfigType("yaml")
		if err := fresh.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	v = fresh
	return nil
}

// findSettingsFile walks up from the working directory looking for
// sacks.yaml. Returns "" when there is none; the file is optional.
func findSettingsFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := cwd
	for i := 0; i <= maxClimb; i++ {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// GetString returns the string value for key, "" when uninitialized.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v.Get(key))
}

// GetBool returns the bool value for key, false when uninitialized.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return cast.ToBool(v.Get(key))
}

// GetInt returns the int value for key, 0 when uninitialized.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return cast.ToInt(v.Get(key))
}

// Set overrides a value for the current process. No-op when
// uninitialized.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}
