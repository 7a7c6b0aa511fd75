package appcfg

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalSettings is the subset of sacks.yaml read directly from disk,
// bypassing the viper singleton. Used when settings are needed for a
// directory other than the one Initialize ran in, e.g. when init
// inspects a target directory before scaffolding.
type LocalSettings struct {
	JSON      bool   `yaml:"json,omitempty"`
	DBPath    string `yaml:"db-path,omitempty"`
	DBAddr    string `yaml:"db-addr,omitempty"`
	DBUser    string `yaml:"db-user,omitempty"`
	DBName    string `yaml:"db-name,omitempty"`
	LogLevel  string `yaml:"log-level,omitempty"`
	LogFormat string `yaml:"log-format,omitempty"`
	Parallel  int    `yaml:"parallel,omitempty"`
}

// LoadLocalSettings reads sacks.yaml from dir. Returns an empty
// LocalSettings (not nil) when the file is missing or unparseable, so
// callers can read fields unconditionally.
func LoadLocalSettings(dir string) *LocalSettings {
	data, err := os.ReadFile(filepath.Join(dir, FileName)) // #nosec G304 -- caller picks the directory
	if err != nil {
		return &LocalSettings{}
	}

	var s LocalSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return &LocalSettings{}
	}
	return &s
}

// WriteLocalSettings writes s as sacks.yaml into dir, refusing to
// overwrite an existing file.
func WriteLocalSettings(dir string, s *LocalSettings) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
