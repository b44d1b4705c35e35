package processing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/coreerr"
	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/grain"
	"github.com/five82/drapto/internal/mediainfo"
	"github.com/five82/drapto/internal/reporter"
	"github.com/five82/drapto/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter captures event names in emission order.
type recordingReporter struct {
	mu       sync.Mutex
	events   []string
	warnings []string
	errors   []reporter.Error
	summary  *reporter.BatchSummary
}

func (r *recordingReporter) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingReporter) Hardware(reporter.HardwareSummary)             { r.add("hardware") }
func (r *recordingReporter) Initialization(reporter.InitializationSummary) { r.add("initialization") }
func (r *recordingReporter) StageProgress(reporter.StageProgress)          { r.add("stage_progress") }
func (r *recordingReporter) CropResult(reporter.CropSummary)               { r.add("crop_result") }
func (r *recordingReporter) EncodingConfig(reporter.EncodingConfigSummary) { r.add("encoding_config") }
func (r *recordingReporter) EncodingStarted(uint64)                        { r.add("encoding_started") }
func (r *recordingReporter) EncodingProgress(reporter.ProgressSnapshot)    { r.add("encoding_progress") }
func (r *recordingReporter) ValidationComplete(reporter.ValidationSummary) { r.add("validation_complete") }
func (r *recordingReporter) EncodingComplete(reporter.EncodingOutcome)     { r.add("encoding_complete") }

func (r *recordingReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "warning")
	r.warnings = append(r.warnings, message)
}

func (r *recordingReporter) Error(e reporter.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errors = append(r.errors, e)
}

func (r *recordingReporter) OperationComplete(string)                  { r.add("operation_complete") }
func (r *recordingReporter) BatchStarted(reporter.BatchStartInfo)      { r.add("batch_started") }
func (r *recordingReporter) FileProgress(reporter.FileProgressContext) { r.add("file_progress") }

func (r *recordingReporter) BatchComplete(s reporter.BatchSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "batch_complete")
	r.summary = &s
}

func (r *recordingReporter) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

// fakeGrainTools answers VeryLight for every sample without touching disk.
type fakeGrainTools struct{}

func (fakeGrainTools) ExtractSample(_ context.Context, _ string, start float64, dur uint32, destDir string) (string, error) {
	return filepath.Join(destDir, fmt.Sprintf("raw_%.0f_%d.mkv", start, dur)), nil
}

func (fakeGrainTools) EncodeSample(_ context.Context, params *ffmpeg.EncodeParams) (uint64, error) {
	// VeryLight smallest reduction beyond which nothing improves.
	switch params.VideoDenoiseFilter {
	case "":
		return 110000, nil
	case grain.LevelVeryLight.Hqdn3dParams():
		return 100000, nil
	default:
		return 105000, nil
	}
}

func (fakeGrainTools) MeasureXPSNR(context.Context, string, string, string) (float64, error) {
	return 45.0, nil
}

// fakeTooling builds a Tooling where every external tool succeeds with
// plausible values. The encoded output file is written so size lookups work.
func fakeTooling(t *testing.T) *Tooling {
	t.Helper()
	return &Tooling{
		VideoProperties: func(_ context.Context, path string) (*ffprobe.VideoProperties, error) {
			return &ffprobe.VideoProperties{
				Width: 1920, Height: 1080, DurationSecs: 6155.0,
				ColorTransfer: "bt709", ColorPrimaries: "bt709", ColorSpace: "bt709",
			}, nil
		},
		AudioStreams: func(context.Context, string) ([]ffprobe.AudioStreamInfo, error) {
			return []ffprobe.AudioStreamInfo{{Channels: 6, CodecName: "ac3", Index: 0}}, nil
		},
		MediaInfo: func(context.Context, string) (*ffprobe.MediaInfo, error) {
			return &ffprobe.MediaInfo{Duration: 6155.0, Width: 1920, Height: 1080, TotalFrames: 147600}, nil
		},
		HDRInfo: func(context.Context, string) (mediainfo.HDRInfo, error) {
			return mediainfo.HDRInfo{}, nil
		},
		DetectCrop: func(_ context.Context, _ string, _ *ffprobe.VideoProperties, _ string, _ reporter.Reporter) CropResult {
			return CropResult{CropFilter: "crop=1920:1040:0:20", Required: true, Message: "Black bars detected"}
		},
		GrainTools: fakeGrainTools{},
		RunEncode: func(_ context.Context, params *ffmpeg.EncodeParams, totalFrames uint64, cb ffmpeg.ProgressCallback) error {
			if cb != nil {
				cb(ffmpeg.Progress{CurrentFrame: totalFrames, TotalFrames: totalFrames, Percent: 100})
			}
			return os.WriteFile(params.OutputPath, make([]byte, 1024), 0o644)
		},
		Validate: func(context.Context, string, validation.Expectations) (*validation.Result, error) {
			return &validation.Result{
				IsValid: true,
				Steps:   []validation.Step{{Name: "Video codec", Passed: true, Details: "AV1 codec (av1)"}},
			}, nil
		},
		FileSize: func(path string) (uint64, error) { return 1024, nil },
		Sleep:    func(time.Duration) {},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	outDir := t.TempDir()
	cfg := config.New("/in", outDir, filepath.Join(outDir, "logs"))
	cfg.TempDir = t.TempDir()
	return cfg
}

func TestProcessVideos_SingleFileHappyPath(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}

	results, err := ProcessVideos(context.Background(), cfg, fakeTooling(t),
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, "movie.mkv", result.Filename)
	assert.True(t, result.ValidationPassed)
	assert.Equal(t, 6155.0, result.VideoDurationSecs)

	// Events arrive in strict pipeline order for a single input.
	wantOrder := []string{
		"hardware", "initialization", "crop_result",
		"encoding_config", "encoding_started", "encoding_progress",
		"validation_complete", "encoding_complete", "operation_complete",
	}
	var gotFiltered []string
	for _, e := range rep.events {
		if e == "stage_progress" || e == "warning" {
			continue // analysis chatter is interleaved and unordered
		}
		gotFiltered = append(gotFiltered, e)
	}
	assert.Equal(t, wantOrder, gotFiltered)
}

func TestProcessVideos_SkipsExistingOutput(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}

	existing := filepath.Join(cfg.OutputDir, "movie.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	results, err := ProcessVideos(context.Background(), cfg, fakeTooling(t),
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)

	assert.Empty(t, results)
	require.NotEmpty(t, rep.warnings)
	assert.Contains(t, rep.warnings[0], "already exists")
	assert.False(t, rep.has("initialization"), "probe must not run for skipped outputs")
}

func TestProcessVideos_ProbeFailureSkipsFile(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)
	tools.VideoProperties = func(context.Context, string) (*ffprobe.VideoProperties, error) {
		return nil, coreerr.New(coreerr.KindProbeStatus, "ffprobe exited with 1")
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)

	assert.Empty(t, results)
	require.Len(t, rep.errors, 1)
	assert.Equal(t, "Analysis Error", rep.errors[0].Title)
}

func TestProcessVideos_AnalyzerFailureDefaultsToSDR(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)
	tools.HDRInfo = func(context.Context, string) (mediainfo.HDRInfo, error) {
		return mediainfo.HDRInfo{}, coreerr.New(coreerr.KindAnalyzer, "mediainfo missing")
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)

	// Non-fatal: the encode still happens, with a warning.
	require.Len(t, results, 1)
	found := false
	for _, w := range rep.warnings {
		if strings.Contains(w, "assuming SDR") {
			found = true
		}
	}
	assert.True(t, found, "expected an assuming-SDR warning, got %v", rep.warnings)
}

func TestProcessVideos_EncoderFailureContinuesBatch(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)

	failed := map[string]bool{"/in/bad.mkv": true}
	realEncode := tools.RunEncode
	tools.RunEncode = func(ctx context.Context, params *ffmpeg.EncodeParams, totalFrames uint64, cb ffmpeg.ProgressCallback) error {
		if failed[params.InputPath] {
			return coreerr.New(coreerr.KindEncoderExit, "ffmpeg exited with 1")
		}
		return realEncode(ctx, params, totalFrames, cb)
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/bad.mkv", "/in/good.mkv"}, "", rep)
	require.NoError(t, err)

	// The failed file records no result; the batch continues.
	require.Len(t, results, 1)
	assert.Equal(t, "good.mkv", results[0].Filename)
	require.Len(t, rep.errors, 1)
	assert.Equal(t, "Encoding Error", rep.errors[0].Title)
	require.NotNil(t, rep.summary)
	assert.Equal(t, 1, rep.summary.SuccessfulCount)
	assert.Equal(t, 2, rep.summary.TotalFiles)
}

func TestProcessVideos_NoStreamsIsWarningNotError(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)
	tools.RunEncode = func(context.Context, *ffmpeg.EncodeParams, uint64, ffmpeg.ProgressCallback) error {
		return coreerr.New(coreerr.KindNoStreamsFound, "no streams")
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Empty(t, rep.errors, "no-streams must not raise an error event")
	assert.True(t, rep.has("warning"))
}

func TestProcessVideos_CancellationHaltsBatch(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)

	encodeCalls := 0
	tools.RunEncode = func(context.Context, *ffmpeg.EncodeParams, uint64, ffmpeg.ProgressCallback) error {
		encodeCalls++
		return coreerr.New(coreerr.KindCancelled, "encoding cancelled")
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/a.mkv", "/in/b.mkv", "/in/c.mkv"}, "", rep)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Equal(t, 1, encodeCalls, "cancellation must halt the batch")
}

func TestProcessVideos_BatchSummaryMath(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)

	inputSize := uint64(10_000)
	outputSize := uint64(2_500)
	tools.FileSize = func(path string) (uint64, error) {
		if filepath.Dir(path) == cfg.OutputDir {
			return outputSize, nil
		}
		return inputSize, nil
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/a.mkv", "/in/b.mkv"}, "", rep)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NotNil(t, rep.summary)
	assert.Equal(t, 2, rep.summary.SuccessfulCount)
	assert.Equal(t, uint64(20_000), rep.summary.TotalOriginalSize)
	assert.Equal(t, uint64(5_000), rep.summary.TotalEncodedSize)
	assert.Equal(t, 2, rep.summary.ValidationPassedCount)
	assert.Equal(t, 0, rep.summary.ValidationFailedCount)
	require.Len(t, rep.summary.FileResults, 2)
	assert.InDelta(t, 75.0, rep.summary.FileResults[0].Reduction, 0.01)
}

func TestProcessVideos_ValidationFailureIsNonFatal(t *testing.T) {
	cfg := testConfig(t)
	rep := &recordingReporter{}
	tools := fakeTooling(t)
	tools.Validate = func(context.Context, string, validation.Expectations) (*validation.Result, error) {
		return &validation.Result{
			IsValid: false,
			Steps:   []validation.Step{{Name: "Duration", Passed: false, Details: "off by 3s"}},
		}, nil
	}

	results, err := ProcessVideos(context.Background(), cfg, tools,
		[]string{"/in/movie.mkv"}, "", rep)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].ValidationPassed)
	assert.Empty(t, rep.errors, "validation failure is reported, not an error")
}
