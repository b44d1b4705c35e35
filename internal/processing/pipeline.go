package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/coreerr"
	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/grain"
	"github.com/five82/drapto/internal/hwdecode"
	"github.com/five82/drapto/internal/mediainfo"
	"github.com/five82/drapto/internal/reporter"
	"github.com/five82/drapto/internal/temp"
	"github.com/five82/drapto/internal/util"
	"github.com/five82/drapto/internal/validation"
)

// EncodeResult contains the result of a single file encode.
type EncodeResult struct {
	Filename          string
	Duration          time.Duration
	InputSize         uint64
	OutputSize        uint64
	VideoDurationSecs float64
	EncodingSpeed     float32
	ValidationPassed  bool
	ValidationSteps   []validation.Step
}

// Tooling carries the external-tool entry points the pipeline calls. The
// zero value is unusable; DefaultTooling wires the real tools, and tests
// replace individual fields with deterministic fakes so the pipeline logic
// runs without launching any subprocess.
type Tooling struct {
	VideoProperties func(ctx context.Context, path string) (*ffprobe.VideoProperties, error)
	AudioStreams    func(ctx context.Context, path string) ([]ffprobe.AudioStreamInfo, error)
	MediaInfo       func(ctx context.Context, path string) (*ffprobe.MediaInfo, error)
	HDRInfo         func(ctx context.Context, path string) (mediainfo.HDRInfo, error)
	DetectCrop      func(ctx context.Context, path string, props *ffprobe.VideoProperties, mode string, rep reporter.Reporter) CropResult
	GrainTools      grain.Tools
	RunEncode       func(ctx context.Context, params *ffmpeg.EncodeParams, totalFrames uint64, cb ffmpeg.ProgressCallback) error
	Validate        func(ctx context.Context, outputPath string, expected validation.Expectations) (*validation.Result, error)
	FileSize        func(path string) (uint64, error)
	Sleep           func(d time.Duration)
}

// DefaultTooling returns the production tool wiring.
func DefaultTooling() *Tooling {
	return &Tooling{
		VideoProperties: ffprobe.GetVideoProperties,
		AudioStreams:    ffprobe.GetAudioStreams,
		MediaInfo:       ffprobe.GetMediaInfo,
		HDRInfo: func(ctx context.Context, path string) (mediainfo.HDRInfo, error) {
			resp, err := mediainfo.GetMediaInfo(ctx, path)
			if err != nil {
				return mediainfo.HDRInfo{}, err
			}
			return mediainfo.DetectHDR(resp), nil
		},
		DetectCrop: DetectCrop,
		GrainTools: grain.FFmpegTools{},
		RunEncode: func(ctx context.Context, params *ffmpeg.EncodeParams, totalFrames uint64, cb ffmpeg.ProgressCallback) error {
			return ffmpeg.RunEncode(ctx, params, false, totalFrames, cb)
		},
		Validate: validation.ValidateOutput,
		FileSize: util.GetFileSize,
		Sleep:    time.Sleep,
	}
}

// ProcessVideos drives the full pipeline for a list of input files:
// probe, crop detection, grain analysis, parameter assembly, encoding,
// validation, and batch reporting.
//
// Per-file failures are reported and skip to the next file; only
// cancellation halts the batch.
func ProcessVideos(
	ctx context.Context,
	cfg *config.Config,
	tools *Tooling,
	filesToProcess []string,
	targetFilenameOverride string,
	rep reporter.Reporter,
) ([]EncodeResult, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	if tools == nil {
		tools = DefaultTooling()
	}

	var results []EncodeResult

	sysInfo := util.GetSystemInfo()
	rep.Hardware(reporter.HardwareSummary{
		Hostname:  sysInfo.Hostname,
		CPUModel:  sysInfo.CPUModel,
		CoreCount: sysInfo.CoreCount,
		MemoryGB:  sysInfo.MemoryGB,
		Decoder:   hwdecode.Detect().Name(),
	})

	if len(filesToProcess) > 1 {
		fileNames := make([]string, 0, len(filesToProcess))
		for _, f := range filesToProcess {
			fileNames = append(fileNames, util.GetFilename(f))
		}
		rep.BatchStarted(reporter.BatchStartInfo{
			TotalFiles: len(filesToProcess),
			FileList:   fileNames,
			OutputDir:  cfg.OutputDir,
		})
	}

	for fileIdx, inputPath := range filesToProcess {
		if ctx.Err() != nil {
			rep.Warning(fmt.Sprintf("Encoding cancelled: %v", ctx.Err()))
			break
		}

		if len(filesToProcess) > 1 {
			rep.FileProgress(reporter.FileProgressContext{
				CurrentFile: fileIdx + 1,
				TotalFiles:  len(filesToProcess),
			})
		}

		result, halt := processOne(ctx, cfg, tools, inputPath, fileIdx, len(filesToProcess), targetFilenameOverride, rep)
		if result != nil {
			results = append(results, *result)
		}
		if halt {
			break
		}

		if len(filesToProcess) > 1 && fileIdx < len(filesToProcess)-1 && cfg.EncodeCooldownSecs > 0 {
			tools.Sleep(time.Duration(cfg.EncodeCooldownSecs) * time.Second)
		}
	}

	emitSummary(rep, results, len(filesToProcess))
	return results, nil
}

// processOne runs the pipeline for a single input. It returns the encode
// result when the file completed, and halt=true when the batch must stop
// (cancellation).
func processOne(
	ctx context.Context,
	cfg *config.Config,
	tools *Tooling,
	inputPath string,
	fileIdx, totalFiles int,
	targetFilenameOverride string,
	rep reporter.Reporter,
) (*EncodeResult, bool) {
	fileStartTime := time.Now()
	inputFilename := util.GetFilename(inputPath)

	override := ""
	if totalFiles == 1 {
		override = targetFilenameOverride
	}
	outputPath := util.ResolveOutputPath(inputPath, cfg.OutputDir, override)

	if util.FileExists(outputPath) {
		rep.Warning(fmt.Sprintf("Output file already exists: %s. Skipping encode.", outputPath))
		return nil, false
	}

	// Probe the source. Failure skips the file.
	props, err := tools.VideoProperties(ctx, inputPath)
	if err != nil {
		rep.Error(reporter.Error{
			Title:      "Analysis Error",
			Message:    fmt.Sprintf("Could not analyze %s: %v", inputFilename, err),
			Context:    fmt.Sprintf("File: %s", inputPath),
			Suggestion: "Check if the file is a valid video format",
		})
		return nil, false
	}

	// HDR detection is advisory: analyzer failure degrades to SDR.
	hdrInfo, err := tools.HDRInfo(ctx, inputPath)
	if err != nil {
		rep.Warning(fmt.Sprintf("Media analyzer failed for %s, assuming SDR: %v", inputFilename, err))
		hdrInfo = mediainfo.HDRInfo{}
	}
	if hdrInfo.IsDolbyVision {
		rep.Warning("Dolby Vision metadata detected; encoding base layer only")
	}

	audioStreams, err := tools.AudioStreams(ctx, inputPath)
	if err != nil {
		rep.Warning(fmt.Sprintf("Could not read audio streams for %s: %v", inputFilename, err))
		audioStreams = nil
	}
	for _, s := range audioStreams {
		if s.Channels == 0 {
			rep.Warning(fmt.Sprintf("Audio track %d reports no channels; treating as zero", s.Index))
		}
	}
	audioChannels := ffprobe.AudioChannels(audioStreams)

	quality, category := determineQualitySettings(props, cfg)

	rep.Initialization(reporter.InitializationSummary{
		InputFile:        inputFilename,
		OutputFile:       util.GetFilename(outputPath),
		Duration:         util.FormatDuration(props.DurationSecs),
		Resolution:       fmt.Sprintf("%dx%d", props.Width, props.Height),
		Category:         category,
		DynamicRange:     formatDynamicRange(hdrInfo.IsHDR),
		AudioDescription: FormatAudioDescription(audioChannels),
	})

	cropResult := tools.DetectCrop(ctx, inputPath, props, cfg.CropMode, rep)
	rep.CropResult(reporter.CropSummary{
		Message:  cropResult.Message,
		Crop:     cropResult.CropFilter,
		Required: cropResult.Required,
		Disabled: cfg.CropMode == "none",
	})

	// Grain analysis runs against base parameters carrying the same CRF and
	// crop the final encode will use.
	var grainLevel *grain.Level
	if cfg.EnableDenoise && cfg.VideoDenoiseFilter == "" {
		baseParams, err := AssembleEncodeParams(cfg, inputPath, outputPath, quality, props, hdrInfo, cropResult, nil, audioStreams)
		if err != nil {
			rep.Error(reporter.Error{
				Title:   "Configuration Error",
				Message: fmt.Sprintf("Invalid encode parameters for %s: %v", inputFilename, err),
				Context: fmt.Sprintf("File: %s", inputPath),
			})
			return nil, false
		}

		level, err := analyzeGrain(ctx, cfg, tools, inputPath, props, baseParams, rep)
		if err != nil {
			if coreerr.IsCancelled(err) {
				rep.Warning(fmt.Sprintf("Grain analysis cancelled: %v", err))
				return nil, true
			}
			// Grain analysis failure is fatal to this file; the batch moves on.
			rep.Error(reporter.Error{
				Title:      "Grain Analysis Error",
				Message:    fmt.Sprintf("Grain analysis failed for %s: %v", inputFilename, err),
				Context:    fmt.Sprintf("File: %s", inputPath),
				Suggestion: "Re-run with --disable-denoise to encode without grain analysis",
			})
			return nil, false
		}
		grainLevel = level
	}

	params, err := AssembleEncodeParams(cfg, inputPath, outputPath, quality, props, hdrInfo, cropResult, grainLevel, audioStreams)
	if err != nil {
		rep.Error(reporter.Error{
			Title:   "Configuration Error",
			Message: fmt.Sprintf("Invalid encode parameters for %s: %v", inputFilename, err),
			Context: fmt.Sprintf("File: %s", inputPath),
		})
		return nil, false
	}

	rep.EncodingConfig(reporter.EncodingConfigSummary{
		Encoder:            "SVT-AV1",
		Preset:             fmt.Sprintf("%d", params.Preset),
		Tune:               fmt.Sprintf("%d", params.Tune),
		Quality:            fmt.Sprintf("CRF %d", params.Quality),
		PixelFormat:        params.PixelFormat,
		MatrixCoefficients: params.MatrixCoefficients,
		AudioCodec:         "Opus",
		AudioDescription:   FormatAudioDescriptionConfig(audioStreams),
		DraptoPreset:       formatPreset(cfg.Preset),
		PresetSettings:     collectPresetSettings(params),
		SVTAV1Params:       params.SVTAV1CLIParams(),
	})

	var totalFrames uint64
	if mediaInfo, err := tools.MediaInfo(ctx, inputPath); err == nil {
		totalFrames = mediaInfo.TotalFrames
	}

	rep.EncodingStarted(totalFrames)

	err = tools.RunEncode(ctx, params, totalFrames, func(progress ffmpeg.Progress) {
		rep.EncodingProgress(reporter.ProgressSnapshot{
			CurrentFrame: progress.CurrentFrame,
			TotalFrames:  progress.TotalFrames,
			Percent:      progress.Percent,
			Speed:        progress.Speed,
			FPS:          progress.FPS,
			ETA:          progress.ETA,
			Bitrate:      progress.Bitrate,
		})
	})
	if err != nil {
		switch coreerr.KindOf(err) {
		case coreerr.KindCancelled:
			rep.Warning(fmt.Sprintf("Encoding cancelled: %v", err))
			return nil, true
		case coreerr.KindNoStreamsFound:
			rep.Warning(fmt.Sprintf("No streams found in %s, skipping", inputFilename))
			return nil, false
		default:
			rep.Error(reporter.Error{
				Title:      "Encoding Error",
				Message:    fmt.Sprintf("FFmpeg failed to encode %s: %v", inputFilename, err),
				Context:    fmt.Sprintf("File: %s", inputPath),
				Suggestion: "Check the drapto log file for the encoder stderr tail",
			})
			return nil, false
		}
	}

	fileElapsed := time.Since(fileStartTime)
	inputSize, _ := tools.FileSize(inputPath)
	outputSize, _ := tools.FileSize(outputPath)

	encodingSpeed := float32(0)
	if fileElapsed.Seconds() > 0 {
		encodingSpeed = float32(props.DurationSecs / fileElapsed.Seconds())
	}

	expectedWidth, expectedHeight := GetOutputDimensions(props.Width, props.Height, params.CropFilter)

	validationResult, err := tools.Validate(ctx, outputPath, validation.Expectations{
		Width:       expectedWidth,
		Height:      expectedHeight,
		Duration:    props.DurationSecs,
		IsHDR:       hdrInfo.IsHDR,
		AudioTracks: len(audioChannels),
	})

	var validationPassed bool
	var validationSteps []validation.Step
	if err != nil {
		validationPassed = false
		validationSteps = []validation.Step{
			{Name: "Validation", Passed: false, Details: err.Error()},
		}
	} else {
		validationPassed = validationResult.IsValid
		validationSteps = validationResult.Steps
	}

	repSteps := make([]reporter.ValidationStep, 0, len(validationSteps))
	for _, s := range validationSteps {
		repSteps = append(repSteps, reporter.ValidationStep{
			Name:    s.Name,
			Passed:  s.Passed,
			Details: s.Details,
		})
	}
	rep.ValidationComplete(reporter.ValidationSummary{
		Passed: validationPassed,
		Steps:  repSteps,
	})

	rep.EncodingComplete(reporter.EncodingOutcome{
		InputFile:    inputFilename,
		OutputFile:   util.GetFilename(outputPath),
		OriginalSize: inputSize,
		EncodedSize:  outputSize,
		VideoStream:  fmt.Sprintf("AV1 (libsvtav1), %dx%d", expectedWidth, expectedHeight),
		AudioStream:  GenerateAudioResultsDescription(audioChannels),
		TotalTime:    fileElapsed,
		AverageSpeed: encodingSpeed,
		OutputPath:   outputPath,
	})

	return &EncodeResult{
		Filename:          inputFilename,
		Duration:          fileElapsed,
		InputSize:         inputSize,
		OutputSize:        outputSize,
		VideoDurationSecs: props.DurationSecs,
		EncodingSpeed:     encodingSpeed,
		ValidationPassed:  validationPassed,
		ValidationSteps:   validationSteps,
	}, false
}

// analyzeGrain runs grain analysis inside a per-input scratch directory.
// A nil level with a nil error means the source was too short to analyze and
// the caller falls back to the configured default.
func analyzeGrain(
	ctx context.Context,
	cfg *config.Config,
	tools *Tooling,
	inputPath string,
	props *ffprobe.VideoProperties,
	baseParams *ffmpeg.EncodeParams,
	rep reporter.Reporter,
) (*grain.Level, error) {
	scratch, err := temp.NewScratchDir(cfg.TempDir, cfg.KeepTemp)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "could not create scratch directory", err)
	}
	defer func() { _ = scratch.Close() }()

	result, err := grain.Analyze(ctx, inputPath, props.DurationSecs, baseParams, grain.AnalysisOptions{
		SampleDurationSecs: cfg.SampleDurationSecs,
		KneeThreshold:      cfg.KneeThreshold,
		MaxLevel:           cfg.MaxGrainLevel,
	}, tools.GrainTools, rep, scratch.Path())
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &result.DetectedLevel, nil
}

func emitSummary(rep reporter.Reporter, results []EncodeResult, totalFiles int) {
	switch {
	case len(results) == 0:
		rep.Warning("No files were successfully encoded")
	case totalFiles == 1:
		rep.OperationComplete(fmt.Sprintf("Successfully encoded %s", results[0].Filename))
	default:
		var totalDuration time.Duration
		var totalOriginalSize, totalEncodedSize uint64
		var totalVideoDuration float64
		var fileResults []reporter.FileResult
		validationPassedCount := 0

		for _, r := range results {
			totalDuration += r.Duration
			totalOriginalSize += r.InputSize
			totalEncodedSize += r.OutputSize
			totalVideoDuration += r.VideoDurationSecs
			fileResults = append(fileResults, reporter.FileResult{
				Filename:  r.Filename,
				Reduction: util.CalculateSizeReduction(r.InputSize, r.OutputSize),
			})
			if r.ValidationPassed {
				validationPassedCount++
			}
		}

		avgSpeed := float32(0)
		if totalDuration.Seconds() > 0 {
			avgSpeed = float32(totalVideoDuration / totalDuration.Seconds())
		}

		rep.BatchComplete(reporter.BatchSummary{
			SuccessfulCount:       len(results),
			TotalFiles:            totalFiles,
			TotalOriginalSize:     totalOriginalSize,
			TotalEncodedSize:      totalEncodedSize,
			TotalDuration:         totalDuration,
			AverageSpeed:          avgSpeed,
			FileResults:           fileResults,
			ValidationPassedCount: validationPassedCount,
			ValidationFailedCount: len(results) - validationPassedCount,
		})
	}
}

func formatDynamicRange(isHDR bool) string {
	if isHDR {
		return "HDR"
	}
	return "SDR"
}

func formatPreset(p *config.Preset) string {
	if p == nil {
		return "Default"
	}
	switch *p {
	case config.PresetGrain:
		return "Grain"
	case config.PresetClean:
		return "Clean"
	case config.PresetQuick:
		return "Quick"
	default:
		return "Default"
	}
}
