// Package processing orchestrates the per-file encoding pipeline: crop
// detection, grain analysis, parameter assembly, encoding, and validation.
package processing

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"sort"
	"strconv"

	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/reporter"
)

// Crop detection constants
const (
	// cropThresholdSDR is the black bar detection threshold for SDR content.
	cropThresholdSDR uint32 = 16

	// cropThresholdHDR is the initial detection threshold for HDR content,
	// refined by black level analysis when possible.
	cropThresholdHDR uint32 = 128

	// cropThresholdMin and cropThresholdMax clamp the refined HDR threshold.
	cropThresholdMin uint32 = 16
	cropThresholdMax uint32 = 256

	// cropMinSamples is the minimum number of sampled frames.
	cropMinSamples uint32 = 20

	// cropSecsPerSample targets roughly one sample every five seconds.
	cropSecsPerSample float64 = 5.0
)

// CropResult is the outcome of crop detection for one file.
type CropResult struct {
	CropFilter string // e.g. "crop=1920:800:0:140", empty when not required
	Required   bool
	Message    string
}

var (
	cropRegex       = regexp.MustCompile(`crop=(\d+):(\d+):(\d+):(\d+)`)
	blackLevelRegex = regexp.MustCompile(`black_level:\s*([0-9.]+)`)
)

// DetectCrop analyzes the source for letterboxing and returns the crop
// decision. Crop detection never fails the pipeline: every error path
// degrades to no crop with a warning.
func DetectCrop(
	ctx context.Context,
	inputPath string,
	props *ffprobe.VideoProperties,
	mode string,
	rep reporter.Reporter,
) CropResult {
	if mode == "none" {
		return CropResult{Message: "Skipped"}
	}

	threshold, isHDR := determineCropThreshold(props)

	if isHDR {
		rep.StageProgress(reporter.StageProgress{
			Stage:   "Crop detection",
			Message: "Performing HDR black level analysis",
		})
		refined, err := runHDRBlackdetect(ctx, inputPath, threshold)
		if err != nil {
			rep.Warning(fmt.Sprintf("HDR black level analysis failed, using threshold %d: %v", threshold, err))
		} else {
			threshold = refined
		}
	}

	creditsSkip := calculateCreditsSkip(props.DurationSecs)
	analysisDuration := props.DurationSecs
	if analysisDuration > creditsSkip {
		analysisDuration -= creditsSkip
	}

	output, err := runCropdetect(ctx, inputPath, threshold, analysisDuration)
	if err != nil {
		rep.Warning(fmt.Sprintf("Crop detection failed, using full frame: %v", err))
		return CropResult{Message: "Detection failed"}
	}

	return chooseCrop(output, props.Width, props.Height)
}

// determineCropThreshold picks the initial detection threshold from the
// source color metadata and reports whether the content is HDR.
func determineCropThreshold(props *ffprobe.VideoProperties) (uint32, bool) {
	isHDR := false
	switch props.ColorTransfer {
	case "smpte2084", "arib-std-b67", "smpte428", "bt2020-10", "bt2020-12":
		isHDR = true
	}
	if props.ColorPrimaries == "bt2020" {
		isHDR = true
	}
	switch props.ColorSpace {
	case "bt2020nc", "bt2020c":
		isHDR = true
	}

	if isHDR {
		return cropThresholdHDR, true
	}
	return cropThresholdSDR, false
}

// runHDRBlackdetect measures the black level on three sample frames and
// refines the crop threshold from their mean.
func runHDRBlackdetect(ctx context.Context, inputPath string, initial uint32) (uint32, error) {
	stderr, err := runFFmpegFilter(ctx, inputPath,
		"select='eq(n,0)+eq(n,100)+eq(n,200)',blackdetect=d=0:pic_th=0.1", 0)
	if err != nil {
		return initial, err
	}

	levels := parseBlackLevels(stderr)
	return refineThresholdFromBlackLevels(levels, initial), nil
}

// parseBlackLevels extracts every black_level value from blackdetect output.
func parseBlackLevels(output string) []float64 {
	var levels []float64
	for _, m := range blackLevelRegex.FindAllStringSubmatch(output, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			levels = append(levels, v)
		}
	}
	return levels
}

// refineThresholdFromBlackLevels converts measured black levels into a crop
// threshold: mean x 1.5, clamped to [16, 256]. Without measurements the
// initial threshold stands.
func refineThresholdFromBlackLevels(levels []float64, initial uint32) uint32 {
	if len(levels) == 0 {
		return initial
	}

	sum := 0.0
	for _, l := range levels {
		sum += l
	}
	mean := sum / float64(len(levels))

	refined := uint32(math.Round(mean * 1.5))
	if refined < cropThresholdMin {
		refined = cropThresholdMin
	}
	if refined > cropThresholdMax {
		refined = cropThresholdMax
	}
	return refined
}

// calculateCreditsSkip returns the seconds deducted from the analysis
// window so end credits do not skew the crop statistics.
func calculateCreditsSkip(durationSecs float64) float64 {
	switch {
	case durationSecs > 3600:
		return 180
	case durationSecs > 1200:
		return 60
	case durationSecs > 300:
		return 30
	default:
		return 0
	}
}

// cropSampleCount returns the number of candidate frames to request,
// roughly one every five seconds with a floor of twenty.
func cropSampleCount(analysisDuration float64) uint32 {
	samples := uint32(math.Ceil(analysisDuration / cropSecsPerSample))
	if samples < cropMinSamples {
		samples = cropMinSamples
	}
	return samples
}

// runCropdetect scans sampled frames with the cropdetect filter and returns
// the raw filter output.
func runCropdetect(ctx context.Context, inputPath string, threshold uint32, analysisDuration float64) (string, error) {
	samples := cropSampleCount(analysisDuration)
	filter := fmt.Sprintf("cropdetect=limit=%d:round=2:reset=1", threshold)
	return runFFmpegFilter(ctx, inputPath, filter, samples*2)
}

// runFFmpegFilter runs ffmpeg with a filter chain and a null output,
// returning the stderr text where filters report their findings. A frame
// limit of zero scans only what the filter selects.
func runFFmpegFilter(ctx context.Context, inputPath, filter string, frames uint32) (string, error) {
	args := []string{"-hide_banner", "-i", inputPath, "-filter_complex", filter}
	if frames > 0 {
		args = append(args, "-frames:v", fmt.Sprintf("%d", frames))
	}
	args = append(args, "-f", "null", "-")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg filter %q failed: %w", filter, err)
	}
	return stderr.String(), nil
}

// chooseCrop aggregates cropdetect candidates and picks the final decision.
// Only candidates spanning the full source width count; the most frequent
// geometry wins, and a full-frame winner means no crop.
func chooseCrop(cropdetectOutput string, srcWidth, srcHeight uint32) CropResult {
	type geometry struct{ w, h, x, y uint32 }
	counts := make(map[geometry]int)

	for _, m := range cropRegex.FindAllStringSubmatch(cropdetectOutput, -1) {
		w := parseUint32(m[1])
		h := parseUint32(m[2])
		x := parseUint32(m[3])
		y := parseUint32(m[4])
		if w != srcWidth {
			continue
		}
		counts[geometry{w, h, x, y}]++
	}

	if len(counts) == 0 {
		return CropResult{Message: "No crop candidates detected"}
	}

	// Deterministic mode selection: highest count, ties broken by geometry.
	type candidate struct {
		geo   geometry
		count int
	}
	sorted := make([]candidate, 0, len(counts))
	total := 0
	for geo, count := range counts {
		sorted = append(sorted, candidate{geo, count})
		total += count
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].geo.h > sorted[j].geo.h
	})

	best := sorted[0].geo

	if best.w == srcWidth && best.h == srcHeight && best.x == 0 && best.y == 0 {
		return CropResult{Message: fmt.Sprintf("Analyzed %d samples, no black bars", total)}
	}

	if best.w+best.x > srcWidth || best.h+best.y > srcHeight {
		return CropResult{Message: "Detected crop exceeds source dimensions"}
	}

	return CropResult{
		CropFilter: fmt.Sprintf("crop=%d:%d:%d:%d", best.w, best.h, best.x, best.y),
		Required:   true,
		Message:    "Black bars detected",
	}
}

// GetOutputDimensions returns the post-crop output dimensions.
func GetOutputDimensions(srcWidth, srcHeight uint32, cropFilter string) (uint32, uint32) {
	if cropFilter == "" {
		return srcWidth, srcHeight
	}
	m := cropRegex.FindStringSubmatch(cropFilter)
	if len(m) != 5 {
		return srcWidth, srcHeight
	}
	return parseUint32(m[1]), parseUint32(m[2])
}

func parseUint32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}
