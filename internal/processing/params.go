package processing

import (
	"fmt"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/grain"
	"github.com/five82/drapto/internal/mediainfo"
	"github.com/five82/drapto/internal/util"
)

// determineQualitySettings selects CRF and the tier name from the source
// width.
func determineQualitySettings(props *ffprobe.VideoProperties, cfg *config.Config) (uint32, string) {
	if props.Width >= config.UHDWidthThreshold {
		return uint32(cfg.QualityUHD), "UHD"
	}
	if props.Width >= config.HDWidthThreshold {
		return uint32(cfg.QualityHD), "HD"
	}
	return uint32(cfg.QualitySD), "SD"
}

// AssembleEncodeParams fuses source properties, the crop decision, the
// grain analysis result, and the configuration into the validated encoder
// descriptor.
//
// Denoise resolution: a configured denoise filter always wins; otherwise a
// detected grain level maps through the fixed hqdn3d table; otherwise no
// denoising.
func AssembleEncodeParams(
	cfg *config.Config,
	inputPath, outputPath string,
	quality uint32,
	props *ffprobe.VideoProperties,
	hdrInfo mediainfo.HDRInfo,
	crop CropResult,
	grainLevel *grain.Level,
	audioStreams []ffprobe.AudioStreamInfo,
) (*ffmpeg.EncodeParams, error) {
	params := &ffmpeg.EncodeParams{
		InputPath:             inputPath,
		OutputPath:            outputPath,
		Quality:               quality,
		Preset:                cfg.SVTAV1Preset,
		Tune:                  cfg.SVTAV1Tune,
		ACBias:                cfg.SVTAV1ACBias,
		EnableVarianceBoost:   cfg.SVTAV1EnableVarianceBoost,
		VarianceBoostStrength: cfg.SVTAV1VarianceBoostStrength,
		VarianceOctile:        cfg.SVTAV1VarianceOctile,
		FilmGrain:             cfg.SVTAV1FilmGrain,
		FilmGrainDenoise:      cfg.SVTAV1FilmGrainDenoise,
		AudioChannels:         ffprobe.AudioChannels(audioStreams),
		AudioStreams:          audioStreams,
		Duration:              props.DurationSecs,
		VideoCodec:            "libsvtav1",
		PixelFormat:           "yuv420p10le",
		AudioCodec:            "libopus",
		HardwareDecode:        true,
	}

	switch {
	case cfg.VideoDenoiseFilter != "":
		params.VideoDenoiseFilter = cfg.VideoDenoiseFilter
	case grainLevel != nil:
		params.VideoDenoiseFilter = grainLevel.Hqdn3dParams()
	}

	if crop.Required {
		params.CropFilter = crop.CropFilter
	}

	if hdrInfo.IsHDR {
		params.MatrixCoefficients = hdrInfo.MatrixCoefficients
		if params.MatrixCoefficients == "" {
			params.MatrixCoefficients = "bt2020nc"
		}
	} else {
		params.MatrixCoefficients = "bt709"
	}

	if cfg.ResponsiveEncoding {
		lp := util.ResponsiveProcessorCap()
		params.LogicalProcessors = &lp
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// collectPresetSettings renders the resolved encoder settings for the
// encoding-config event.
func collectPresetSettings(params *ffmpeg.EncodeParams) [][2]string {
	settings := [][2]string{
		{"CRF", fmt.Sprintf("%d", params.Quality)},
		{"SVT preset", fmt.Sprintf("%d", params.Preset)},
		{"Tune", fmt.Sprintf("%d", params.Tune)},
		{"AC bias", fmt.Sprintf("%.2f", params.ACBias)},
	}

	if params.EnableVarianceBoost {
		settings = append(settings, [2]string{"Variance boost",
			fmt.Sprintf("enabled (strength %d, octile %d)",
				params.VarianceBoostStrength, params.VarianceOctile)})
	} else {
		settings = append(settings, [2]string{"Variance boost", "disabled"})
	}

	if params.VideoDenoiseFilter != "" {
		settings = append(settings, [2]string{"Denoise", params.VideoDenoiseFilter})
	}

	if params.FilmGrain != nil {
		denoise := "-"
		if params.FilmGrainDenoise != nil {
			if *params.FilmGrainDenoise {
				denoise = "1"
			} else {
				denoise = "0"
			}
		}
		settings = append(settings, [2]string{"Film grain synth",
			fmt.Sprintf("film-grain %d, denoise %s", *params.FilmGrain, denoise)})
	}

	if params.LogicalProcessors != nil {
		settings = append(settings, [2]string{"Logical processors",
			fmt.Sprintf("%d", *params.LogicalProcessors)})
	}

	return settings
}
