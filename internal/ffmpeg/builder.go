package ffmpeg

import (
	"fmt"

	"github.com/five82/drapto/internal/hwdecode"
)

// buildFFmpegArgs assembles the full ffmpeg argument list for an encode.
//
// Argument order matters: the hardware decode preamble must precede -i, and
// -progress must precede the output path. Grain sample encodes disable audio
// and keep the same video settings the final encode would use, so trial
// sizes are representative.
func buildFFmpegArgs(params *EncodeParams, isGrainSample bool) []string {
	args := []string{"-hide_banner", "-y"}

	if params.HardwareDecode && !isGrainSample {
		args = append(args, hwdecode.Detect().FFmpegArgs()...)
	}

	args = append(args, "-i", params.InputPath)

	// Stream mapping: primary video always; audio only on the main encode.
	args = append(args, "-map", "0:v:0")
	if isGrainSample || len(params.AudioChannels) == 0 {
		args = append(args, "-an")
	} else {
		args = append(args, "-map", "0:a")
	}

	args = append(args,
		"-c:v", params.VideoCodec,
		"-pix_fmt", params.PixelFormat,
		"-crf", fmt.Sprintf("%d", params.Quality),
		"-preset", fmt.Sprintf("%d", params.Preset),
		"-svtav1-params", params.SVTAV1CLIParams(),
	)

	if params.MatrixCoefficients != "" {
		args = append(args, "-colorspace", params.MatrixCoefficients)
	}

	if chain := params.VideoFilterChain(); chain != "" {
		args = append(args, "-vf", chain)
	}

	if !isGrainSample && len(params.AudioChannels) > 0 {
		for i, channels := range params.AudioChannels {
			args = append(args,
				fmt.Sprintf("-c:a:%d", i), params.AudioCodec,
				fmt.Sprintf("-b:a:%d", i), fmt.Sprintf("%dk", CalculateAudioBitrate(channels)),
			)
		}
	}

	args = append(args, "-progress", "pipe:1", "-nostats")
	args = append(args, params.OutputPath)

	return args
}
