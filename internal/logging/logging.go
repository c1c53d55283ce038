// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger writing JSON to the specified file.
// If file is empty, logs go to stderr. The returned closer releases the
// log file.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func Setup(level string, file string) (func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return closer, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writer := os.Stderr
	if file != "" {
		logsDir := filepath.Dir(file)
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return closer, fmt.Errorf("create logs dir: %w", err)
		}

		osFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, err
		}
		closer = func() { _ = osFile.Close() }
		writer = osFile
	}

	log.Logger = zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return closer, nil
}

// Component creates a new logger with a component identifier.
// Uses the "cmp" key for consistency with zerolog conventions.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
