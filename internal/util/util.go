// Package util provides small filesystem and formatting helpers shared
// across the pipeline.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// GetFilename returns the base name of a path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// FileExists reports whether the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// EnsureDirectory creates the directory and any parents.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// ResolveOutputPath maps an input file to its output location. The override,
// when non-empty, replaces the filename (single-file encodes with an
// explicit target name). Outputs always use the .mkv container.
func ResolveOutputPath(inputPath, outputDir, overrideFilename string) string {
	filename := overrideFilename
	if filename == "" {
		base := filepath.Base(inputPath)
		filename = strings.TrimSuffix(base, filepath.Ext(base)) + ".mkv"
	}
	return filepath.Join(outputDir, filename)
}

// FormatDuration renders seconds as "1h 42m 35s".
func FormatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatSize renders bytes with a binary unit suffix.
func FormatSize(bytes uint64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case bytes >= gib:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/gib)
	case bytes >= mib:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/mib)
	case bytes >= kib:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// CalculateSizeReduction returns the percent reduction from input to output.
func CalculateSizeReduction(inputSize, outputSize uint64) float64 {
	if inputSize == 0 {
		return 0
	}
	if outputSize >= inputSize {
		return 0
	}
	return float64(inputSize-outputSize) / float64(inputSize) * 100
}

// SystemInfo summarizes the host hardware for the hardware event.
type SystemInfo struct {
	Hostname  string
	CPUModel  string
	CoreCount int
	MemoryGB  float64
}

// GetSystemInfo collects host details. Fields degrade to empty/zero when a
// probe fails; the hardware summary is informational only.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{CoreCount: runtime.NumCPU()}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
	} else if hn, err := os.Hostname(); err == nil {
		info.Hostname = hn
	}

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryGB = float64(vm.Total) / (1 << 30)
	}

	return info
}

// ResponsiveProcessorCap returns the logical processor cap used when
// responsive encoding is requested: all cores minus two, with a floor of
// one, so the machine stays usable during long encodes.
func ResponsiveProcessorCap() uint32 {
	cores := runtime.NumCPU()
	if cores <= 3 {
		return 1
	}
	return uint32(cores - 2)
}
