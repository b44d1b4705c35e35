// Package logging sets up the per-run log file. Each invocation writes to
// its own timestamped file under the log directory so runs never interleave
// and old logs rotate naturally by filename.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// RunLogger is the structured logger for one encode run plus its backing
// file handle.
type RunLogger struct {
	Logger zerolog.Logger
	Path   string
	file   *os.File
}

// Setup creates <logDir>/drapto_encode_run_<timestamp>.log and returns a
// logger writing to it. Verbose lowers the level to debug.
func Setup(logDir string, verbose bool) (*RunLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(logDir, fmt.Sprintf("drapto_encode_run_%s.log", timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(file).Level(level).With().Timestamp().Logger()

	return &RunLogger{Logger: logger, Path: path, file: file}, nil
}

// Writer returns the underlying log file writer.
func (r *RunLogger) Writer() io.Writer {
	return r.file
}

// Close flushes and closes the log file.
func (r *RunLogger) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
