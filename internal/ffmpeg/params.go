// Package ffmpeg builds and executes ffmpeg invocations: the main AV1
// encode, grain-analysis sample extraction and trial encodes, and the XPSNR
// quality measurement.
package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/five82/drapto/internal/coreerr"
	"github.com/five82/drapto/internal/ffprobe"
)

// EncodeParams is the single descriptor for one encoder invocation.
// Assembled once per file by the pipeline and validated before use.
type EncodeParams struct {
	InputPath  string
	OutputPath string

	// Video encoder settings
	Quality               uint32 // CRF, 0-63
	Preset                uint8  // SVT-AV1 preset, 0-13
	Tune                  uint8
	ACBias                float32
	EnableVarianceBoost   bool
	VarianceBoostStrength uint8
	VarianceOctile        uint8

	// Optional film grain synthesis. FilmGrainDenoise requires FilmGrain.
	FilmGrain        *uint8
	FilmGrainDenoise *bool

	// LogicalProcessors caps encoder threading (SVT-AV1 lp parameter).
	LogicalProcessors *uint32

	// Filters, composed left-to-right as denoise then crop.
	VideoDenoiseFilter string // e.g. "hqdn3d=1.0:0.7:4:4", empty for none
	CropFilter         string // e.g. "crop=1920:800:0:140", empty for none

	// Audio settings. AudioStreams is optional detail used for display.
	AudioChannels []uint32
	AudioStreams  []ffprobe.AudioStreamInfo

	// Duration in seconds, for progress estimation.
	Duration float64

	// Codec strings as they appear on the ffmpeg command line.
	VideoCodec         string
	PixelFormat        string
	MatrixCoefficients string
	AudioCodec         string

	// HardwareDecode enables the platform decode preamble when available.
	HardwareDecode bool
}

// Validate checks the parameter set against encoder limits and mutually
// required fields.
func (p *EncodeParams) Validate() error {
	if p.InputPath == "" {
		return coreerr.New(coreerr.KindConfig, "encode params: input path is required")
	}
	if p.OutputPath == "" {
		return coreerr.New(coreerr.KindConfig, "encode params: output path is required")
	}
	if p.Quality > 63 {
		return coreerr.Newf(coreerr.KindConfig, "encode params: quality must be 0-63, got %d", p.Quality)
	}
	if p.Preset > 13 {
		return coreerr.Newf(coreerr.KindConfig, "encode params: preset must be 0-13, got %d", p.Preset)
	}
	if p.FilmGrainDenoise != nil && p.FilmGrain == nil {
		return coreerr.New(coreerr.KindConfig, "encode params: film_grain_denoise requires film_grain")
	}
	return nil
}

// Clone returns a deep copy. Grain analysis clones the base parameters for
// every trial encode.
func (p *EncodeParams) Clone() *EncodeParams {
	clone := *p
	if p.FilmGrain != nil {
		v := *p.FilmGrain
		clone.FilmGrain = &v
	}
	if p.FilmGrainDenoise != nil {
		v := *p.FilmGrainDenoise
		clone.FilmGrainDenoise = &v
	}
	if p.LogicalProcessors != nil {
		v := *p.LogicalProcessors
		clone.LogicalProcessors = &v
	}
	clone.AudioChannels = append([]uint32(nil), p.AudioChannels...)
	clone.AudioStreams = append([]ffprobe.AudioStreamInfo(nil), p.AudioStreams...)
	return &clone
}

// SVTAV1CLIParams renders the key=value parameter string passed via
// -svtav1-params.
func (p *EncodeParams) SVTAV1CLIParams() string {
	parts := []string{
		fmt.Sprintf("tune=%d", p.Tune),
		fmt.Sprintf("ac-bias=%.2f", p.ACBias),
	}

	if p.EnableVarianceBoost {
		parts = append(parts,
			"enable-variance-boost=1",
			fmt.Sprintf("variance-boost-strength=%d", p.VarianceBoostStrength),
			fmt.Sprintf("variance-octile=%d", p.VarianceOctile),
		)
	}

	if p.FilmGrain != nil {
		parts = append(parts, fmt.Sprintf("film-grain=%d", *p.FilmGrain))
		if p.FilmGrainDenoise != nil {
			denoise := 0
			if *p.FilmGrainDenoise {
				denoise = 1
			}
			parts = append(parts, fmt.Sprintf("film-grain-denoise=%d", denoise))
		}
	}

	if p.LogicalProcessors != nil {
		parts = append(parts, fmt.Sprintf("lp=%d", *p.LogicalProcessors))
	}

	return strings.Join(parts, ":")
}

// VideoFilterChain composes the -vf value: denoise first, then crop.
// Returns empty when neither filter is set.
func (p *EncodeParams) VideoFilterChain() string {
	var filters []string
	if p.VideoDenoiseFilter != "" {
		filters = append(filters, p.VideoDenoiseFilter)
	}
	if p.CropFilter != "" {
		filters = append(filters, p.CropFilter)
	}
	return strings.Join(filters, ",")
}

// CalculateAudioBitrate returns the Opus bitrate in kbps for a channel
// count: mono 64, stereo 128, 5.1 256, 7.1 384, otherwise 48 per channel.
func CalculateAudioBitrate(channels uint32) uint32 {
	switch channels {
	case 1:
		return 64
	case 2:
		return 128
	case 6:
		return 256
	case 8:
		return 384
	default:
		return channels * 48
	}
}
