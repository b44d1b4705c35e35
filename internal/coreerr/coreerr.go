// Package coreerr defines the error taxonomy shared by the encoding
// pipeline. Callers branch on the Kind to decide whether a failure skips the
// current file, degrades to a warning, or halts the batch, so errors must
// keep their kind through wrapping.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota

	// KindConfig is an invalid configuration (bad CRF, preset, or mutually
	// required fields). Fatal to the input before any encode starts.
	KindConfig

	// Probe failures. All fatal to the current input; the batch continues.
	KindProbeIO       // could not launch the probe tool
	KindProbeStatus   // probe exited non-zero
	KindProbeParse    // probe output did not match the expected schema
	KindNoVideoStream // probe found no video stream

	// KindAnalyzer is a media analyzer (HDR metadata) failure. Non-fatal:
	// dynamic range defaults to SDR with a warning.
	KindAnalyzer

	// KindCropDetect is any crop detection sub-step failure. Non-fatal: the
	// decision degrades to no crop with a warning.
	KindCropDetect

	// Grain analysis failures. Sample extraction and trial encodes are fatal
	// to the current file's grain analysis; XPSNR failure only degrades
	// analyzer confidence.
	KindSampleExtraction
	KindFilmGrainEncodingFailed
	KindFilmGrainAnalysisFailed
	KindXPSNR

	// Encoder failures.
	KindEncoderLaunch  // could not launch the encoder; fatal to the input
	KindEncoderExit    // encoder exited non-zero; fatal to the input
	KindNoStreamsFound // encoder found no streams; warning, file skipped
	KindCancelled      // cancellation requested; halts the batch

	// KindValidation is a failed output check. Reported, never fatal.
	KindValidation

	// KindIO is an unreadable input or unwritable output. Fatal to the input.
	KindIO
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Stderr  string // captured tool stderr tail, when available
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsCancelled reports whether the error chain is a cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
