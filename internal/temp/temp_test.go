package temp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScratchDirLifecycle(t *testing.T) {
	base := t.TempDir()

	scratch, err := NewScratchDir(base, false)
	if err != nil {
		t.Fatalf("NewScratchDir() error = %v", err)
	}

	if !strings.HasPrefix(filepath.Base(scratch.Path()), "drapto_") {
		t.Errorf("scratch dir %q missing drapto_ prefix", scratch.Path())
	}

	// Populate and close: everything must go.
	if err := os.WriteFile(filepath.Join(scratch.Path(), "sample_1.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := scratch.Path()
	if err := scratch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("scratch dir %q still exists after Close", path)
	}

	// Close is idempotent.
	if err := scratch.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestScratchDirKeep(t *testing.T) {
	base := t.TempDir()

	scratch, err := NewScratchDir(base, true)
	if err != nil {
		t.Fatalf("NewScratchDir() error = %v", err)
	}

	path := scratch.Path()
	if err := scratch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("kept scratch dir %q was removed", path)
	}
}

func TestScratchDirsAreUnique(t *testing.T) {
	base := t.TempDir()

	a, err := NewScratchDir(base, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	b, err := NewScratchDir(base, false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()

	if a.Path() == b.Path() {
		t.Errorf("two scratch dirs share the path %q", a.Path())
	}
}
