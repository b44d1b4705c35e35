// Package config provides configuration types and defaults for drapto.
package config

import (
	"fmt"

	"github.com/five82/drapto/internal/grain"
)

// Default constants
const (
	// DefaultQualitySD is the default CRF quality setting for SD content (<1920 width).
	DefaultQualitySD uint8 = 25

	// DefaultQualityHD is the default CRF quality setting for HD content (>=1920, <3840 width).
	DefaultQualityHD uint8 = 27

	// DefaultQualityUHD is the default CRF quality setting for UHD content (>=3840 width).
	DefaultQualityUHD uint8 = 29

	// HDWidthThreshold is the minimum width for HD resolution.
	HDWidthThreshold uint32 = 1920

	// UHDWidthThreshold is the minimum width for UHD resolution.
	UHDWidthThreshold uint32 = 3840

	// DefaultSVTAV1Preset is the SVT-AV1 preset (0-13, lower is slower/better).
	DefaultSVTAV1Preset uint8 = 6

	// DefaultSVTAV1Tune is the SVT-AV1 tune parameter.
	DefaultSVTAV1Tune uint8 = 0

	// DefaultSVTAV1ACBias is the SVT-AV1 ac-bias parameter.
	DefaultSVTAV1ACBias float32 = 0.1

	// DefaultCropMode is the crop mode for the main encode.
	DefaultCropMode string = "auto"

	// DefaultEncodeCooldownSecs is the cooldown period between batch encodes.
	DefaultEncodeCooldownSecs uint64 = 3

	// DefaultSampleDurationSecs is the length of each extracted grain sample.
	DefaultSampleDurationSecs uint32 = 10

	// DefaultKneeThreshold is the knee point threshold for grain analysis.
	DefaultKneeThreshold float64 = 0.8

	// ProgressLogIntervalPercent is the progress logging interval for
	// non-terminal reporter sinks.
	ProgressLogIntervalPercent uint8 = 5
)

// Preset identifies a named bundle of encoding defaults. It is distinct from
// the SVT-AV1 preset integer, which is a speed/quality dial.
type Preset int

const (
	PresetGrain Preset = iota
	PresetClean
	PresetQuick
)

// String returns the lowercase preset name.
func (p Preset) String() string {
	switch p {
	case PresetGrain:
		return "grain"
	case PresetClean:
		return "clean"
	case PresetQuick:
		return "quick"
	default:
		return "unknown"
	}
}

// ParsePreset converts a CLI preset name to a Preset.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "grain":
		return PresetGrain, nil
	case "clean":
		return PresetClean, nil
	case "quick":
		return PresetQuick, nil
	default:
		return 0, fmt.Errorf("invalid preset %q (expected grain, clean, or quick)", s)
	}
}

// PresetValues is the bundle of defaults a named preset expands to.
type PresetValues struct {
	QualitySD             uint8
	QualityHD             uint8
	QualityUHD            uint8
	SVTAV1Preset          uint8
	SVTAV1Tune            uint8
	SVTAV1ACBias          float32
	EnableVarianceBoost   bool
	VarianceBoostStrength uint8
	VarianceOctile        uint8
	VideoDenoiseFilter    string // empty means no hard-coded denoise
	FilmGrain             *uint8
	FilmGrainDenoise      *bool
}

// Values returns the fixed defaults for this preset.
func (p Preset) Values() PresetValues {
	switch p {
	case PresetClean:
		return PresetValues{
			QualitySD:    27,
			QualityHD:    29,
			QualityUHD:   31,
			SVTAV1Preset: DefaultSVTAV1Preset,
			SVTAV1Tune:   DefaultSVTAV1Tune,
			SVTAV1ACBias: 0.05,
		}
	case PresetQuick:
		return PresetValues{
			QualitySD:    32,
			QualityHD:    35,
			QualityUHD:   36,
			SVTAV1Preset: 8,
			SVTAV1Tune:   DefaultSVTAV1Tune,
			SVTAV1ACBias: 0.0,
		}
	default: // PresetGrain
		return PresetValues{
			QualitySD:    DefaultQualitySD,
			QualityHD:    DefaultQualityHD,
			QualityUHD:   DefaultQualityUHD,
			SVTAV1Preset: DefaultSVTAV1Preset,
			SVTAV1Tune:   DefaultSVTAV1Tune,
			SVTAV1ACBias: DefaultSVTAV1ACBias,
		}
	}
}

// Config holds all configuration for video processing.
type Config struct {
	// Input/output paths
	InputPath string
	OutputDir string
	LogDir    string
	TempDir   string // Optional, defaults to os.TempDir()

	// SVT-AV1 parameters
	SVTAV1Preset                uint8
	SVTAV1Tune                  uint8
	SVTAV1ACBias                float32
	SVTAV1EnableVarianceBoost   bool
	SVTAV1VarianceBoostStrength uint8
	SVTAV1VarianceOctile        uint8
	SVTAV1FilmGrain             *uint8
	SVTAV1FilmGrainDenoise      *bool

	// Optional denoise filter applied via -vf (e.g. "hqdn3d=1.5:1.0:6:6").
	// When set it takes precedence over grain analysis.
	VideoDenoiseFilter string

	// Quality settings (CRF value 0-63) by resolution
	QualitySD  uint8
	QualityHD  uint8
	QualityUHD uint8

	// Processing options
	CropMode           string // "auto" or "none"
	EnableDenoise      bool   // Run grain analysis to pick a denoise filter
	EncodeCooldownSecs uint64
	ResponsiveEncoding bool // Cap encoder logical processors, leaving headroom
	KeepTemp           bool

	// Grain analysis configuration
	SampleDurationSecs uint32
	KneeThreshold      float64
	MaxGrainLevel      grain.Level

	// Notification settings
	NtfyTopic string

	// Selected named preset, if any (recorded for display).
	Preset *Preset

	// Debug options
	Verbose bool
}

// New creates a Config with required paths and default values.
func New(inputPath, outputDir, logDir string) *Config {
	return &Config{
		InputPath:          inputPath,
		OutputDir:          outputDir,
		LogDir:             logDir,
		SVTAV1Preset:       DefaultSVTAV1Preset,
		SVTAV1Tune:         DefaultSVTAV1Tune,
		SVTAV1ACBias:       DefaultSVTAV1ACBias,
		QualitySD:          DefaultQualitySD,
		QualityHD:          DefaultQualityHD,
		QualityUHD:         DefaultQualityUHD,
		CropMode:           DefaultCropMode,
		EnableDenoise:      true,
		EncodeCooldownSecs: DefaultEncodeCooldownSecs,
		SampleDurationSecs: DefaultSampleDurationSecs,
		KneeThreshold:      DefaultKneeThreshold,
		MaxGrainLevel:      grain.LevelElevated,
	}
}

// ApplyPreset overwrites the encoder defaults with a named preset bundle.
// Explicit CLI overrides should be applied after this.
func (c *Config) ApplyPreset(p Preset) {
	v := p.Values()
	c.QualitySD = v.QualitySD
	c.QualityHD = v.QualityHD
	c.QualityUHD = v.QualityUHD
	c.SVTAV1Preset = v.SVTAV1Preset
	c.SVTAV1Tune = v.SVTAV1Tune
	c.SVTAV1ACBias = v.SVTAV1ACBias
	c.SVTAV1EnableVarianceBoost = v.EnableVarianceBoost
	c.SVTAV1VarianceBoostStrength = v.VarianceBoostStrength
	c.SVTAV1VarianceOctile = v.VarianceOctile
	c.VideoDenoiseFilter = v.VideoDenoiseFilter
	c.SVTAV1FilmGrain = v.FilmGrain
	c.SVTAV1FilmGrainDenoise = v.FilmGrainDenoise
	c.Preset = &p
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SVTAV1Preset > 13 {
		return fmt.Errorf("svt_av1_preset must be 0-13, got %d", c.SVTAV1Preset)
	}

	if c.QualitySD > 63 {
		return fmt.Errorf("quality-sd must be 0-63, got %d", c.QualitySD)
	}
	if c.QualityHD > 63 {
		return fmt.Errorf("quality-hd must be 0-63, got %d", c.QualityHD)
	}
	if c.QualityUHD > 63 {
		return fmt.Errorf("quality-uhd must be 0-63, got %d", c.QualityUHD)
	}

	if c.CropMode != "auto" && c.CropMode != "none" {
		return fmt.Errorf("crop mode must be auto or none, got %q", c.CropMode)
	}

	if c.SampleDurationSecs == 0 {
		return fmt.Errorf("sample duration must be positive")
	}

	if c.KneeThreshold <= 0 || c.KneeThreshold >= 1 {
		return fmt.Errorf("knee threshold must be in (0, 1), got %g", c.KneeThreshold)
	}

	if c.SVTAV1FilmGrainDenoise != nil && c.SVTAV1FilmGrain == nil {
		return fmt.Errorf("film_grain_denoise requires film_grain to be set")
	}

	return nil
}

// QualityForWidth returns the appropriate CRF value based on video width.
func (c *Config) QualityForWidth(width uint32) uint8 {
	if width >= UHDWidthThreshold {
		return c.QualityUHD
	}
	if width >= HDWidthThreshold {
		return c.QualityHD
	}
	return c.QualitySD
}
