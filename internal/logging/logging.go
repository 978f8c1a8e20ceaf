// Package logging builds the zap logger used across concord. Logs go to a
// date-stamped JSON file only: the terminal belongs to the TUI, so nothing
// may write to stdout or stderr while the program runs.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Open creates a logger writing to dir/concord_YYYY-MM-DD.log. The caller
// owns the returned close func and should run it on shutdown.
func Open(dir string, debug bool) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("logging.Open: %w", err)
	}

	name := fmt.Sprintf("concord_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("logging.Open: %w", err)
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		level,
	)
	log := zap.New(core, zap.AddCaller())

	closer := func() {
		log.Sync() //nolint:errcheck // best-effort flush
		file.Close() //nolint:errcheck // best-effort close
	}
	return log, closer, nil
}

// Dir returns the default log directory under the concord config dir.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("logging.Dir: %w", err)
	}
	return filepath.Join(home, ".concord", "log"), nil
}
