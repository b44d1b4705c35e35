package reporter

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONReporter writes one JSON object per event to a writer, for machine
// consumption. Progress events are bucketed the same way as the log sink so
// a 20 Hz progress stream does not flood the output.
type JSONReporter struct {
	mu            sync.Mutex
	enc           *json.Encoder
	bucketPercent uint8
	lastBucket    int
}

type jsonEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewJSONReporter creates a JSON-lines sink with the given percent bucket
// size (typically 5).
func NewJSONReporter(w io.Writer, bucketPercent uint8) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w), bucketPercent: bucketPercent, lastBucket: -1}
}

func (j *JSONReporter) emit(event string, data any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// Encoding failures are swallowed: a broken pipe on a secondary sink must
	// not take down the encode.
	_ = j.enc.Encode(jsonEvent{Event: event, Data: data})
}

func (j *JSONReporter) Hardware(s HardwareSummary)             { j.emit("hardware", s) }
func (j *JSONReporter) Initialization(s InitializationSummary) { j.emit("initialization", s) }
func (j *JSONReporter) StageProgress(u StageProgress)          { j.emit("stage_progress", u) }
func (j *JSONReporter) CropResult(s CropSummary)               { j.emit("crop_result", s) }
func (j *JSONReporter) EncodingConfig(s EncodingConfigSummary) { j.emit("encoding_config", s) }

func (j *JSONReporter) EncodingStarted(totalFrames uint64) {
	j.lastBucket = -1
	j.emit("encoding_started", map[string]uint64{"total_frames": totalFrames})
}

func (j *JSONReporter) EncodingProgress(p ProgressSnapshot) {
	if j.bucketPercent > 0 {
		bucket := int(p.Percent) / int(j.bucketPercent)
		if bucket == j.lastBucket {
			return
		}
		j.lastBucket = bucket
	}
	j.emit("encoding_progress", p)
}

func (j *JSONReporter) ValidationComplete(s ValidationSummary) { j.emit("validation_complete", s) }
func (j *JSONReporter) EncodingComplete(o EncodingOutcome)     { j.emit("encoding_complete", o) }

func (j *JSONReporter) Warning(message string) {
	j.emit("warning", map[string]string{"message": message})
}

func (j *JSONReporter) Error(e Error) { j.emit("error", e) }

func (j *JSONReporter) OperationComplete(message string) {
	j.emit("operation_complete", map[string]string{"message": message})
}

func (j *JSONReporter) BatchStarted(info BatchStartInfo)     { j.emit("batch_started", info) }
func (j *JSONReporter) FileProgress(ctx FileProgressContext) { j.emit("file_progress", ctx) }
func (j *JSONReporter) BatchComplete(s BatchSummary)         { j.emit("batch_complete", s) }
