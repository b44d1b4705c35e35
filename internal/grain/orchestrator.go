package grain

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/five82/drapto/internal/coreerr"
	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/reporter"
)

const (
	// minSamples is extracted regardless of video duration.
	minSamples = 3

	// maxSamples bounds analysis cost for very long sources.
	maxSamples = 7

	// secsPerSampleTarget is the seconds of video one sample represents when
	// computing the sample count (20 minutes).
	secsPerSampleTarget = 1200.0

	// Sampling window boundaries avoid intros and credits.
	windowStartFraction = 0.15
	windowEndFraction   = 0.85
)

// Tools is the narrow external-tool surface grain analysis depends on.
// Production wires the ffmpeg package; tests substitute deterministic fakes
// so the analysis logic runs without launching any subprocess.
type Tools interface {
	// ExtractSample cuts a clip from the source at the given offset.
	ExtractSample(ctx context.Context, inputPath string, startSecs float64, durationSecs uint32, destDir string) (string, error)

	// EncodeSample trial-encodes a clip and returns the output size in bytes.
	EncodeSample(ctx context.Context, params *ffmpeg.EncodeParams) (uint64, error)

	// MeasureXPSNR scores a trial encode against its raw clip.
	MeasureXPSNR(ctx context.Context, referencePath, distortedPath, cropFilter string) (float64, error)
}

// FFmpegTools implements Tools with the real external encoder.
type FFmpegTools struct{}

func (FFmpegTools) ExtractSample(ctx context.Context, inputPath string, startSecs float64, durationSecs uint32, destDir string) (string, error) {
	return ffmpeg.ExtractSample(ctx, inputPath, startSecs, durationSecs, destDir)
}

func (FFmpegTools) EncodeSample(ctx context.Context, params *ffmpeg.EncodeParams) (uint64, error) {
	return ffmpeg.EncodeSample(ctx, params)
}

func (FFmpegTools) MeasureXPSNR(ctx context.Context, referencePath, distortedPath, cropFilter string) (float64, error) {
	return ffmpeg.CalculateXPSNR(ctx, referencePath, distortedPath, cropFilter)
}

// AnalysisOptions configures grain analysis.
type AnalysisOptions struct {
	SampleDurationSecs uint32
	KneeThreshold      float64
	MaxLevel           Level

	// Rand drives sample placement. Nil uses a time-seeded source; tests
	// pass a fixed seed for deterministic placement.
	Rand *rand.Rand
}

// Analyze determines the optimal denoising level for a source file.
//
// Multiple short samples are extracted from the interior of the timeline,
// each trial-encoded at every denoise level, and each sample's size/quality
// curve is reduced to a level by knee-point analysis. The final answer is
// the median of the per-sample answers, capped at the configured maximum.
//
// Returns (nil, nil) when the source is too short to sample; the caller then
// falls back to the configured default. Sample extraction or trial encode
// failure aborts the analysis; XPSNR failure only degrades confidence.
func Analyze(
	ctx context.Context,
	inputPath string,
	durationSecs float64,
	baseParams *ffmpeg.EncodeParams,
	opts AnalysisOptions,
	tools Tools,
	rep reporter.Reporter,
	workDir string,
) (*Result, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	if tools == nil {
		tools = FFmpegTools{}
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	numSamples := sampleCount(durationSecs)

	sampleDuration := float64(opts.SampleDurationSecs)
	minRequired := sampleDuration * float64(numSamples)
	if durationSecs < minRequired {
		rep.StageProgress(reporter.StageProgress{
			Stage: "Grain analysis",
			Message: fmt.Sprintf(
				"Video too short for %d samples (%.0fs < %.0fs); skipping grain analysis",
				numSamples, durationSecs, minRequired),
		})
		return nil, nil
	}

	startBoundary := durationSecs * windowStartFraction
	latestStart := durationSecs*windowEndFraction - sampleDuration
	if latestStart <= startBoundary {
		rep.StageProgress(reporter.StageProgress{
			Stage:   "Grain analysis",
			Message: "Sampling window too small; skipping grain analysis",
		})
		return nil, nil
	}

	startTimes := make([]float64, numSamples)
	for i := range startTimes {
		startTimes[i] = startBoundary + rng.Float64()*(latestStart-startBoundary)
	}
	sort.Float64s(startTimes)

	rep.StageProgress(reporter.StageProgress{
		Stage:   "Grain analysis",
		Message: fmt.Sprintf("Extracting %d samples for analysis", numSamples),
	})

	var estimates []Level
	for i, startTime := range startTimes {
		if err := ctx.Err(); err != nil {
			return nil, coreerr.Wrap(coreerr.KindCancelled, "grain analysis cancelled", err)
		}

		rep.StageProgress(reporter.StageProgress{
			Stage:   "Grain analysis",
			Message: fmt.Sprintf("Sample %d/%d at %.1fs", i+1, numSamples, startTime),
		})

		rawSamplePath, err := tools.ExtractSample(ctx, inputPath, startTime, opts.SampleDurationSecs, workDir)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.KindFilmGrainEncodingFailed,
				fmt.Sprintf("failed to extract sample %d", i+1), err)
		}

		results, err := testSample(ctx, i+1, rawSamplePath, baseParams, opts, tools, rep, workDir)
		if err != nil {
			return nil, err
		}

		estimate := analyzeSampleKneePoint(results, opts.KneeThreshold, func(msg string) {
			rep.Warning(fmt.Sprintf("Sample %d: %s", i+1, msg))
		})
		rep.StageProgress(reporter.StageProgress{
			Stage:   "Grain analysis",
			Message: fmt.Sprintf("Sample %d: selected %s", i+1, estimate),
		})
		estimates = append(estimates, estimate)

		if shouldExitEarly(estimates, rep) {
			break
		}
	}

	if len(estimates) == 0 {
		return nil, coreerr.New(coreerr.KindFilmGrainAnalysisFailed,
			"no grain estimates were produced")
	}

	finalLevel := medianLevel(estimates)
	if finalLevel > opts.MaxLevel {
		rep.StageProgress(reporter.StageProgress{
			Stage: "Grain analysis",
			Message: fmt.Sprintf("Detected level %s exceeds maximum %s; using maximum",
				finalLevel, opts.MaxLevel),
		})
		finalLevel = opts.MaxLevel
	}
	if finalLevel == LevelBaseline {
		// Analysis never recommends encoding without any denoising.
		finalLevel = LevelVeryLight
	}

	rep.StageProgress(reporter.StageProgress{
		Stage:   "Grain analysis",
		Message: fmt.Sprintf("Detected grain: %s", finalLevel),
	})

	return &Result{DetectedLevel: finalLevel}, nil
}

// testSample trial-encodes one clip at every level and collects sizes and
// XPSNR scores.
func testSample(
	ctx context.Context,
	sampleIndex int,
	rawSamplePath string,
	baseParams *ffmpeg.EncodeParams,
	opts AnalysisOptions,
	tools Tools,
	rep reporter.Reporter,
	workDir string,
) (SampleResult, error) {
	results := make(SampleResult, len(TestLevels()))

	for _, level := range TestLevels() {
		if err := ctx.Err(); err != nil {
			return nil, coreerr.Wrap(coreerr.KindCancelled, "grain analysis cancelled", err)
		}

		params := baseParams.Clone()
		params.InputPath = rawSamplePath
		params.OutputPath = filepath.Join(workDir,
			ffmpeg.SanitizeFilename(fmt.Sprintf("sample_%d_%s.mkv", sampleIndex, level)))
		params.VideoDenoiseFilter = level.Hqdn3dParams()
		params.Duration = float64(opts.SampleDurationSecs)

		size, err := tools.EncodeSample(ctx, params)
		if err != nil {
			if coreerr.IsCancelled(err) {
				return nil, err
			}
			return nil, coreerr.Wrap(coreerr.KindFilmGrainAnalysisFailed,
				fmt.Sprintf("failed to encode sample %d at level %s", sampleIndex, level), err)
		}

		result := TestResult{FileSize: size}

		// XPSNR is measured against the raw clip with the crop applied to
		// both sides. A failed measurement leaves the score nil.
		xpsnr, err := tools.MeasureXPSNR(ctx, rawSamplePath, params.OutputPath, params.CropFilter)
		if err == nil {
			result.XPSNR = &xpsnr
			rep.StageProgress(reporter.StageProgress{
				Stage: "Grain analysis",
				Message: fmt.Sprintf("  %-13s %.1f MB, XPSNR: %.1f dB",
					level.String()+":", float64(size)/(1024*1024), xpsnr),
			})
		} else {
			rep.StageProgress(reporter.StageProgress{
				Stage: "Grain analysis",
				Message: fmt.Sprintf("  %-13s %.1f MB",
					level.String()+":", float64(size)/(1024*1024)),
			})
		}

		results[level] = result
	}

	return results, nil
}

// sampleCount derives the number of samples from the duration: one per 20
// minutes, clamped to [3, 7], and bumped to odd so the median is a real
// sample's answer.
func sampleCount(durationSecs float64) int {
	n := int(math.Ceil(durationSecs / secsPerSampleTarget))
	n = clampInt(n, minSamples, maxSamples)
	if n%2 == 0 {
		n = clampInt(n+1, minSamples, maxSamples)
	}
	return n
}

// shouldExitEarly stops sampling once the answers have converged: three or
// more identical answers, or four or more within one ordinal of each other.
func shouldExitEarly(estimates []Level, rep reporter.Reporter) bool {
	if len(estimates) < 3 {
		return false
	}

	allSame := true
	for _, e := range estimates[1:] {
		if e != estimates[0] {
			allSame = false
			break
		}
	}
	if allSame {
		rep.StageProgress(reporter.StageProgress{
			Stage:   "Grain analysis",
			Message: fmt.Sprintf("Early exit: consistent results (%s)", estimates[0]),
		})
		return true
	}

	if len(estimates) >= 4 {
		minL, maxL := estimates[0], estimates[0]
		for _, e := range estimates[1:] {
			if e < minL {
				minL = e
			}
			if e > maxL {
				maxL = e
			}
		}
		if maxL-minL <= 1 {
			rep.StageProgress(reporter.StageProgress{
				Stage:   "Grain analysis",
				Message: fmt.Sprintf("Early exit: consistent range (%s to %s)", minL, maxL),
			})
			return true
		}
	}

	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

