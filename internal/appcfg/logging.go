package appcfg

import (
	"fmt"
	"os"

	"github.com/sacksapp/sacks/internal/types"
	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the log-level and log-format settings to the
// global logrus logger. The verbose and quiet flags win over the
// configured level. Logs go to stderr so stdout stays clean for report
// and --json output.
func ConfigureLogging(verbose, quiet bool) error {
	level, err := log.ParseLevel(GetString("log-level"))
	if err != nil {
		return &types.ConfigError{
			Message: fmt.Sprintf("invalid log-level %q", GetString("log-level"))}
	}
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.WarnLevel
	}
	log.SetLevel(level)

	switch format := GetString("log-format"); format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return &types.ConfigError{
			Message: fmt.Sprintf("invalid log-format %q (valid: text, json)", format)}
	}

	log.SetOutput(os.Stderr)
	return nil
}
