// Package temp manages per-input scratch directories for extracted samples
// and trial encodes. Trial encodes consume disk proportional to sample count
// times level count, so release on every exit path is a correctness
// requirement, not hygiene.
package temp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ScratchDir is a uniquely named working directory under the configured
// temp root.
type ScratchDir struct {
	path string
	keep bool
}

// NewScratchDir creates <baseDir>/drapto_<uuid>/. When baseDir is empty the
// system temp directory is used. Set keep to leave the directory on disk
// after Close (the --keep-temp flag).
func NewScratchDir(baseDir string, keep bool) (*ScratchDir, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	path := filepath.Join(baseDir, "drapto_"+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory %s: %w", path, err)
	}

	return &ScratchDir{path: path, keep: keep}, nil
}

// Path returns the scratch directory path.
func (s *ScratchDir) Path() string {
	return s.path
}

// Close removes the directory and its contents unless keep was requested.
// Safe to call multiple times and from deferred cleanup on error paths.
func (s *ScratchDir) Close() error {
	if s.keep || s.path == "" {
		return nil
	}
	err := os.RemoveAll(s.path)
	s.path = ""
	return err
}
