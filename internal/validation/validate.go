// Package validation re-probes encoded outputs and checks them against the
// source expectations. Validation failures are reported, never fatal: the
// output file stays on disk and the batch continues.
package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/mediainfo"
)

const (
	// durationToleranceSecs is the allowed difference between source and
	// output duration.
	durationToleranceSecs = 1.0

	// maxSyncDriftSecs is the allowed A/V stream start-time misalignment.
	maxSyncDriftSecs = 0.5

	// requiredBitDepth for AV1 output.
	requiredBitDepth = 10
)

// Step is one named validation check.
type Step struct {
	Name    string
	Passed  bool
	Details string
}

// Result is the outcome of validating one output file.
type Result struct {
	IsValid bool
	Steps   []Step
}

// Expectations describes what the output should look like, derived from the
// source probe and the applied crop.
type Expectations struct {
	Width       uint32
	Height      uint32
	Duration    float64
	IsHDR       bool
	AudioTracks int
}

// MediaAnalyzer is the probe surface validation depends on. Production uses
// the ffprobe and mediainfo adapters; tests substitute fixed values.
type MediaAnalyzer interface {
	VideoDetails(ctx context.Context, path string) (*ffprobe.VideoStreamDetails, error)
	AudioStreams(ctx context.Context, path string) ([]ffprobe.AudioStreamInfo, error)
	HDRInfo(ctx context.Context, path string) (mediainfo.HDRInfo, error)
}

// DefaultAnalyzer wires the real external tools.
type DefaultAnalyzer struct{}

func (DefaultAnalyzer) VideoDetails(ctx context.Context, path string) (*ffprobe.VideoStreamDetails, error) {
	return ffprobe.GetVideoStreamDetails(ctx, path)
}

func (DefaultAnalyzer) AudioStreams(ctx context.Context, path string) ([]ffprobe.AudioStreamInfo, error) {
	return ffprobe.GetAudioStreams(ctx, path)
}

func (DefaultAnalyzer) HDRInfo(ctx context.Context, path string) (mediainfo.HDRInfo, error) {
	resp, err := mediainfo.GetMediaInfo(ctx, path)
	if err != nil {
		return mediainfo.HDRInfo{}, err
	}
	return mediainfo.DetectHDR(resp), nil
}

// ValidateOutput re-probes the output and runs the seven checks in their
// stable order: codec, bit depth, dimensions, duration, dynamic range,
// audio track count, A/V sync.
func ValidateOutput(ctx context.Context, outputPath string, expected Expectations) (*Result, error) {
	return ValidateWithAnalyzer(ctx, DefaultAnalyzer{}, outputPath, expected)
}

// ValidateWithAnalyzer runs validation against a substitutable analyzer.
func ValidateWithAnalyzer(ctx context.Context, analyzer MediaAnalyzer, outputPath string, expected Expectations) (*Result, error) {
	details, err := analyzer.VideoDetails(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe output %s: %w", outputPath, err)
	}

	result := &Result{}

	result.append(validateCodec(details))
	result.append(validateBitDepth(details))
	result.append(validateDimensions(details, expected))
	result.append(validateDuration(details.DurationSecs, expected.Duration))
	result.append(validateDynamicRange(ctx, analyzer, outputPath, details, expected.IsHDR))

	audioStreams, audioErr := analyzer.AudioStreams(ctx, outputPath)
	result.append(validateAudioTracks(audioStreams, audioErr, expected.AudioTracks))
	result.append(validateSync(details, audioStreams))

	result.IsValid = true
	for _, s := range result.Steps {
		if !s.Passed {
			result.IsValid = false
			break
		}
	}

	return result, nil
}

func (r *Result) append(s Step) {
	r.Steps = append(r.Steps, s)
}

func validateCodec(details *ffprobe.VideoStreamDetails) Step {
	codec := strings.ToLower(details.CodecName)
	isAV1 := strings.Contains(codec, "av1") || strings.Contains(codec, "av01")

	detail := fmt.Sprintf("AV1 codec (%s)", details.CodecName)
	if !isAV1 {
		detail = fmt.Sprintf("Expected AV1, found: %s", details.CodecName)
	}
	return Step{Name: "Video codec", Passed: isAV1, Details: detail}
}

func validateBitDepth(details *ffprobe.VideoStreamDetails) Step {
	depth, source := deriveBitDepth(details)

	if depth == requiredBitDepth {
		return Step{
			Name:    "Bit depth",
			Passed:  true,
			Details: fmt.Sprintf("10-bit depth (%s)", source),
		}
	}
	if depth == 0 {
		return Step{
			Name:    "Bit depth",
			Passed:  false,
			Details: fmt.Sprintf("Could not determine bit depth (pixel format: %s)", details.PixelFormat),
		}
	}
	return Step{
		Name:    "Bit depth",
		Passed:  false,
		Details: fmt.Sprintf("Expected 10-bit, found %d-bit (pixel format: %s)", depth, details.PixelFormat),
	}
}

// deriveBitDepth resolves bit depth from bits_per_raw_sample when present,
// then from the pixel format name, then from the codec profile.
func deriveBitDepth(details *ffprobe.VideoStreamDetails) (uint8, string) {
	if details.BitDepth != nil {
		return *details.BitDepth, "bits_per_raw_sample"
	}

	pixFmt := strings.ToLower(details.PixelFormat)
	for _, marker := range []string{"10le", "10be", "p010"} {
		if strings.Contains(pixFmt, marker) {
			return 10, "pixel format " + details.PixelFormat
		}
	}
	if strings.Contains(pixFmt, "12le") || strings.Contains(pixFmt, "12be") {
		return 12, "pixel format " + details.PixelFormat
	}
	if pixFmt == "yuv420p" || pixFmt == "yuv422p" || pixFmt == "yuv444p" || pixFmt == "nv12" {
		return 8, "pixel format " + details.PixelFormat
	}

	if strings.Contains(details.Profile, "10") {
		return 10, "profile " + details.Profile
	}

	return 0, ""
}

func validateDimensions(details *ffprobe.VideoStreamDetails, expected Expectations) Step {
	if details.Width == expected.Width && details.Height == expected.Height {
		return Step{
			Name:    "Dimensions",
			Passed:  true,
			Details: fmt.Sprintf("Dimensions match: %dx%d", details.Width, details.Height),
		}
	}
	return Step{
		Name:   "Dimensions",
		Passed: false,
		Details: fmt.Sprintf("Expected %dx%d, found %dx%d",
			expected.Width, expected.Height, details.Width, details.Height),
	}
}

func validateDuration(actual, expected float64) Step {
	diff := math.Abs(actual - expected)
	if diff <= durationToleranceSecs {
		return Step{
			Name:    "Duration",
			Passed:  true,
			Details: fmt.Sprintf("Duration matches input (%.1fs)", actual),
		}
	}
	return Step{
		Name:   "Duration",
		Passed: false,
		Details: fmt.Sprintf("Expected %.1fs, found %.1fs (diff: %.1fs)",
			expected, actual, diff),
	}
}

func validateDynamicRange(
	ctx context.Context,
	analyzer MediaAnalyzer,
	outputPath string,
	details *ffprobe.VideoStreamDetails,
	expectedHDR bool,
) Step {
	// Prefer the analyzer's verdict; fall back to the color metadata ffprobe
	// already returned when the analyzer is unavailable.
	actualHDR := colorMetadataIndicatesHDR(details)
	if hdrInfo, err := analyzer.HDRInfo(ctx, outputPath); err == nil {
		actualHDR = hdrInfo.IsHDR
	}

	rangeName := func(hdr bool) string {
		if hdr {
			return "HDR"
		}
		return "SDR"
	}

	if actualHDR == expectedHDR {
		return Step{
			Name:    "Dynamic range",
			Passed:  true,
			Details: rangeName(expectedHDR) + " preserved",
		}
	}
	return Step{
		Name:   "Dynamic range",
		Passed: false,
		Details: fmt.Sprintf("Expected %s, found %s",
			rangeName(expectedHDR), rangeName(actualHDR)),
	}
}

func colorMetadataIndicatesHDR(details *ffprobe.VideoStreamDetails) bool {
	switch details.ColorTransfer {
	case "smpte2084", "arib-std-b67", "smpte428", "bt2020-10", "bt2020-12":
		return true
	}
	if details.ColorPrimaries == "bt2020" {
		return true
	}
	switch details.ColorSpace {
	case "bt2020nc", "bt2020c":
		return true
	}
	return false
}

func validateAudioTracks(streams []ffprobe.AudioStreamInfo, probeErr error, expectedTracks int) Step {
	if probeErr != nil {
		return Step{
			Name:    "Audio tracks",
			Passed:  false,
			Details: fmt.Sprintf("Failed to probe audio streams: %v", probeErr),
		}
	}

	if len(streams) == expectedTracks {
		detail := fmt.Sprintf("%d audio tracks preserved", len(streams))
		if expectedTracks == 0 {
			detail = "No audio tracks (matches source)"
		}
		return Step{Name: "Audio tracks", Passed: true, Details: detail}
	}
	return Step{
		Name:    "Audio tracks",
		Passed:  false,
		Details: fmt.Sprintf("Expected %d audio tracks, found %d", expectedTracks, len(streams)),
	}
}

func validateSync(details *ffprobe.VideoStreamDetails, streams []ffprobe.AudioStreamInfo) Step {
	// Without both start times the container gives no basis to measure
	// drift; treat the check as passed rather than guessing.
	if details.StartTime == nil || len(streams) == 0 || streams[0].StartTime == nil {
		return Step{
			Name:    "A/V sync",
			Passed:  true,
			Details: "No stream start-time data; sync assumed",
		}
	}

	driftSecs := math.Abs(*details.StartTime - *streams[0].StartTime)
	driftMs := driftSecs * 1000
	if driftSecs <= maxSyncDriftSecs {
		return Step{
			Name:    "A/V sync",
			Passed:  true,
			Details: fmt.Sprintf("Audio/video sync preserved (drift: %.1fms)", driftMs),
		}
	}
	return Step{
		Name:   "A/V sync",
		Passed: false,
		Details: fmt.Sprintf("Audio/video sync drift too large: %.1fms (max: %.0fms)",
			driftMs, maxSyncDriftSecs*1000),
	}
}
