package ui

import "github.com/five82/drapto/internal/reporter"

// Messages delivered to the Bubbletea model. The pipeline runs on its own
// goroutine and sends these through Program.Send via the TerminalReporter.

// HardwareMsg carries the host summary shown in the header.
type HardwareMsg struct{ Summary reporter.HardwareSummary }

// InitializationMsg announces a probed input file.
type InitializationMsg struct{ Summary reporter.InitializationSummary }

// StageProgressMsg is a free-form analysis progress line.
type StageProgressMsg struct{ Update reporter.StageProgress }

// CropMsg carries the crop detection outcome.
type CropMsg struct{ Summary reporter.CropSummary }

// ConfigMsg carries the resolved encoder configuration.
type ConfigMsg struct{ Summary reporter.EncodingConfigSummary }

// EncodingStartedMsg switches the view to the progress bar.
type EncodingStartedMsg struct{ TotalFrames uint64 }

// ProgressMsg updates the encode progress bar.
type ProgressMsg struct{ Snapshot reporter.ProgressSnapshot }

// ValidationMsg carries the validation step results.
type ValidationMsg struct{ Summary reporter.ValidationSummary }

// EncodingCompleteMsg announces a finished file.
type EncodingCompleteMsg struct{ Outcome reporter.EncodingOutcome }

// WarningMsg is a non-fatal condition to surface.
type WarningMsg struct{ Message string }

// ErrorMsg is a surfaced pipeline error.
type ErrorMsg struct{ Err reporter.Error }

// OperationCompleteMsg announces the end of a single-file run.
type OperationCompleteMsg struct{ Message string }

// BatchStartedMsg announces a multi-file run.
type BatchStartedMsg struct{ Info reporter.BatchStartInfo }

// FileProgressMsg announces the next file in a batch.
type FileProgressMsg struct{ Context reporter.FileProgressContext }

// BatchCompleteMsg carries the batch summary.
type BatchCompleteMsg struct{ Summary reporter.BatchSummary }

// AllDoneMsg tells the UI the pipeline goroutine has finished.
type AllDoneMsg struct{}
