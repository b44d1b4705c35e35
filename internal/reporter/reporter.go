// Package reporter defines the typed event stream emitted by the encoding
// pipeline and the sinks that consume it.
//
// Every pipeline stage reports through the Reporter interface. Sinks are
// synchronous: a slow sink slows the pipeline, so sinks must be fast or
// buffer internally. Events for a single file are emitted in strict pipeline
// order and batches never interleave per-file sequences.
package reporter

import "time"

// HardwareSummary describes the host the encode runs on.
type HardwareSummary struct {
	Hostname  string
	CPUModel  string
	CoreCount int
	MemoryGB  float64
	Decoder   string // "VideoToolbox", "VAAPI", or "" when software only
}

// InitializationSummary is emitted once per file after probing.
type InitializationSummary struct {
	InputFile        string
	OutputFile       string
	Duration         string
	Resolution       string
	Category         string // SD, HD, or UHD
	DynamicRange     string // SDR or HDR
	AudioDescription string
}

// StageProgress is a free-form progress line for long-running analysis
// stages (crop detection, grain analysis).
type StageProgress struct {
	Stage   string
	Message string
}

// CropSummary reports the crop detection outcome.
type CropSummary struct {
	Message  string
	Crop     string // crop filter string, empty when no crop
	Required bool
	Disabled bool
}

// EncodingConfigSummary is the resolved encoder configuration for one file.
type EncodingConfigSummary struct {
	Encoder            string
	Preset             string
	Tune               string
	Quality            string
	PixelFormat        string
	MatrixCoefficients string
	AudioCodec         string
	AudioDescription   string
	DraptoPreset       string
	PresetSettings     [][2]string
	SVTAV1Params       string
}

// ProgressSnapshot is a single encoder progress update.
type ProgressSnapshot struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32 // realtime factor
	FPS          float32
	ETA          time.Duration
	Bitrate      string
}

// ValidationStep is one named check from output validation.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// ValidationSummary reports the post-encode validation outcome.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// EncodingOutcome is emitted when a file finishes encoding.
type EncodingOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	VideoStream  string
	AudioStream  string
	TotalTime    time.Duration
	AverageSpeed float32
	OutputPath   string
}

// Error is a surfaced pipeline error with enough context for any sink to
// render it uniformly.
type Error struct {
	Title      string
	Message    string
	Context    string // typically "File: <path>"
	Suggestion string
}

// BatchStartInfo is emitted once when processing more than one file.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgressContext announces which file of the batch is starting.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// FileResult is a per-file entry in the batch summary.
type FileResult struct {
	Filename  string
	Reduction float64 // percent size reduction
}

// BatchSummary is emitted after the last file of a multi-file batch.
type BatchSummary struct {
	SuccessfulCount       int
	TotalFiles            int
	TotalOriginalSize     uint64
	TotalEncodedSize      uint64
	TotalDuration         time.Duration
	AverageSpeed          float32
	FileResults           []FileResult
	ValidationPassedCount int
	ValidationFailedCount int
}

// Reporter receives pipeline events. Implementations may ignore any event;
// NullReporter ignores them all and is the default.
type Reporter interface {
	Hardware(summary HardwareSummary)
	Initialization(summary InitializationSummary)
	StageProgress(update StageProgress)
	CropResult(summary CropSummary)
	EncodingConfig(summary EncodingConfigSummary)
	EncodingStarted(totalFrames uint64)
	EncodingProgress(progress ProgressSnapshot)
	ValidationComplete(summary ValidationSummary)
	EncodingComplete(outcome EncodingOutcome)
	Warning(message string)
	Error(err Error)
	OperationComplete(message string)
	BatchStarted(info BatchStartInfo)
	FileProgress(context FileProgressContext)
	BatchComplete(summary BatchSummary)
}

// NullReporter discards every event.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) Initialization(InitializationSummary) {}
func (NullReporter) StageProgress(StageProgress)          {}
func (NullReporter) CropResult(CropSummary)               {}
func (NullReporter) EncodingConfig(EncodingConfigSummary) {}
func (NullReporter) EncodingStarted(uint64)               {}
func (NullReporter) EncodingProgress(ProgressSnapshot)    {}
func (NullReporter) ValidationComplete(ValidationSummary) {}
func (NullReporter) EncodingComplete(EncodingOutcome)     {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(Error)                          {}
func (NullReporter) OperationComplete(string)             {}
func (NullReporter) BatchStarted(BatchStartInfo)          {}
func (NullReporter) FileProgress(FileProgressContext)     {}
func (NullReporter) BatchComplete(BatchSummary)           {}

// Composite broadcasts every event to a list of sinks in registration order.
type Composite struct {
	sinks []Reporter
}

// NewComposite creates a reporter that fans out to the given sinks.
func NewComposite(sinks ...Reporter) *Composite {
	return &Composite{sinks: sinks}
}

func (c *Composite) Hardware(s HardwareSummary) {
	for _, r := range c.sinks {
		r.Hardware(s)
	}
}

func (c *Composite) Initialization(s InitializationSummary) {
	for _, r := range c.sinks {
		r.Initialization(s)
	}
}

func (c *Composite) StageProgress(u StageProgress) {
	for _, r := range c.sinks {
		r.StageProgress(u)
	}
}

func (c *Composite) CropResult(s CropSummary) {
	for _, r := range c.sinks {
		r.CropResult(s)
	}
}

func (c *Composite) EncodingConfig(s EncodingConfigSummary) {
	for _, r := range c.sinks {
		r.EncodingConfig(s)
	}
}

func (c *Composite) EncodingStarted(totalFrames uint64) {
	for _, r := range c.sinks {
		r.EncodingStarted(totalFrames)
	}
}

func (c *Composite) EncodingProgress(p ProgressSnapshot) {
	for _, r := range c.sinks {
		r.EncodingProgress(p)
	}
}

func (c *Composite) ValidationComplete(s ValidationSummary) {
	for _, r := range c.sinks {
		r.ValidationComplete(s)
	}
}

func (c *Composite) EncodingComplete(o EncodingOutcome) {
	for _, r := range c.sinks {
		r.EncodingComplete(o)
	}
}

func (c *Composite) Warning(message string) {
	for _, r := range c.sinks {
		r.Warning(message)
	}
}

func (c *Composite) Error(e Error) {
	for _, r := range c.sinks {
		r.Error(e)
	}
}

func (c *Composite) OperationComplete(message string) {
	for _, r := range c.sinks {
		r.OperationComplete(message)
	}
}

func (c *Composite) BatchStarted(info BatchStartInfo) {
	for _, r := range c.sinks {
		r.BatchStarted(info)
	}
}

func (c *Composite) FileProgress(ctx FileProgressContext) {
	for _, r := range c.sinks {
		r.FileProgress(ctx)
	}
}

func (c *Composite) BatchComplete(s BatchSummary) {
	for _, r := range c.sinks {
		r.BatchComplete(s)
	}
}
