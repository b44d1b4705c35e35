package reporter

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogReporter writes pipeline events to a structured zerolog logger,
// typically backed by the per-run log file. Progress bursts are throttled by
// bucketing percent into integer steps so the log stays readable.
type LogReporter struct {
	log           zerolog.Logger
	bucketPercent uint8
	lastBucket    int
}

// NewLogReporter creates a log sink with the given percent bucket size
// (typically 5). A bucket size of 0 logs every progress event.
func NewLogReporter(log zerolog.Logger, bucketPercent uint8) *LogReporter {
	return &LogReporter{log: log, bucketPercent: bucketPercent, lastBucket: -1}
}

func (l *LogReporter) Hardware(s HardwareSummary) {
	l.log.Info().
		Str("hostname", s.Hostname).
		Str("cpu", s.CPUModel).
		Int("cores", s.CoreCount).
		Float64("memory_gb", s.MemoryGB).
		Str("decoder", s.Decoder).
		Msg("hardware")
}

func (l *LogReporter) Initialization(s InitializationSummary) {
	l.log.Info().
		Str("input", s.InputFile).
		Str("output", s.OutputFile).
		Str("duration", s.Duration).
		Str("resolution", s.Resolution).
		Str("category", s.Category).
		Str("dynamic_range", s.DynamicRange).
		Str("audio", s.AudioDescription).
		Msg("initialization")
}

func (l *LogReporter) StageProgress(u StageProgress) {
	l.log.Info().Str("stage", u.Stage).Msg(u.Message)
}

func (l *LogReporter) CropResult(s CropSummary) {
	ev := l.log.Info().Bool("required", s.Required).Bool("disabled", s.Disabled)
	if s.Crop != "" {
		ev = ev.Str("crop", s.Crop)
	}
	ev.Msg("crop detection: " + s.Message)
}

func (l *LogReporter) EncodingConfig(s EncodingConfigSummary) {
	settings := make([]string, 0, len(s.PresetSettings))
	for _, kv := range s.PresetSettings {
		settings = append(settings, kv[0]+"="+kv[1])
	}
	l.log.Info().
		Str("encoder", s.Encoder).
		Str("preset", s.Preset).
		Str("quality", s.Quality).
		Str("pixel_format", s.PixelFormat).
		Str("matrix", s.MatrixCoefficients).
		Str("audio_codec", s.AudioCodec).
		Str("drapto_preset", s.DraptoPreset).
		Str("settings", strings.Join(settings, ", ")).
		Str("svtav1_params", s.SVTAV1Params).
		Msg("encoding configuration")
}

func (l *LogReporter) EncodingStarted(totalFrames uint64) {
	l.lastBucket = -1
	l.log.Info().Uint64("total_frames", totalFrames).Msg("encoding started")
}

func (l *LogReporter) EncodingProgress(p ProgressSnapshot) {
	if l.bucketPercent > 0 {
		bucket := int(p.Percent) / int(l.bucketPercent)
		if bucket == l.lastBucket {
			return
		}
		l.lastBucket = bucket
	}
	l.log.Info().
		Uint64("frame", p.CurrentFrame).
		Uint64("total_frames", p.TotalFrames).
		Float32("percent", p.Percent).
		Float32("fps", p.FPS).
		Float32("speed", p.Speed).
		Str("bitrate", p.Bitrate).
		Dur("eta", p.ETA).
		Msg("encoding progress")
}

func (l *LogReporter) ValidationComplete(s ValidationSummary) {
	for _, step := range s.Steps {
		ev := l.log.Info()
		if !step.Passed {
			ev = l.log.Warn()
		}
		ev.Str("check", step.Name).Bool("passed", step.Passed).Msg(step.Details)
	}
	l.log.Info().Bool("passed", s.Passed).Msg("validation complete")
}

func (l *LogReporter) EncodingComplete(o EncodingOutcome) {
	l.log.Info().
		Str("input", o.InputFile).
		Str("output", o.OutputFile).
		Uint64("original_size", o.OriginalSize).
		Uint64("encoded_size", o.EncodedSize).
		Dur("total_time", o.TotalTime).
		Float32("average_speed", o.AverageSpeed).
		Msg("encoding complete")
}

func (l *LogReporter) Warning(message string) {
	l.log.Warn().Msg(message)
}

func (l *LogReporter) Error(e Error) {
	ev := l.log.Error().Str("title", e.Title)
	if e.Context != "" {
		ev = ev.Str("context", e.Context)
	}
	if e.Suggestion != "" {
		ev = ev.Str("suggestion", e.Suggestion)
	}
	ev.Msg(e.Message)
}

func (l *LogReporter) OperationComplete(message string) {
	l.log.Info().Msg(message)
}

func (l *LogReporter) BatchStarted(info BatchStartInfo) {
	l.log.Info().
		Int("total_files", info.TotalFiles).
		Str("output_dir", info.OutputDir).
		Strs("files", info.FileList).
		Msg("batch started")
}

func (l *LogReporter) FileProgress(ctx FileProgressContext) {
	l.lastBucket = -1
	l.log.Info().
		Int("current", ctx.CurrentFile).
		Int("total", ctx.TotalFiles).
		Msg("processing file")
}

func (l *LogReporter) BatchComplete(s BatchSummary) {
	for _, fr := range s.FileResults {
		l.log.Info().
			Str("file", fr.Filename).
			Float64("reduction_pct", fr.Reduction).
			Msg("file result")
	}
	l.log.Info().
		Int("successful", s.SuccessfulCount).
		Int("total", s.TotalFiles).
		Uint64("original_bytes", s.TotalOriginalSize).
		Uint64("encoded_bytes", s.TotalEncodedSize).
		Dur("total_time", s.TotalDuration).
		Float32("average_speed", s.AverageSpeed).
		Int("validation_passed", s.ValidationPassedCount).
		Int("validation_failed", s.ValidationFailedCount).
		Msg("batch complete")
}
