package processing

import (
	"fmt"
	"strings"

	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/ffprobe"
)

// channelLayoutName maps a channel count to its conventional layout name.
func channelLayoutName(channels uint32) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

// FormatAudioDescription renders a short per-track summary for the
// initialization event, e.g. "5.1 + Stereo".
func FormatAudioDescription(channels []uint32) string {
	if len(channels) == 0 {
		return "No audio"
	}
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, channelLayoutName(ch))
	}
	return strings.Join(parts, " + ")
}

// FormatAudioDescriptionConfig renders the per-track transcode plan for the
// encoding-config event, including source codec and target bitrate.
func FormatAudioDescriptionConfig(streams []ffprobe.AudioStreamInfo) string {
	if len(streams) == 0 {
		return "No audio"
	}

	parts := make([]string, 0, len(streams))
	for _, s := range streams {
		desc := fmt.Sprintf("%s %s -> Opus %dk",
			strings.ToUpper(s.CodecName),
			channelLayoutName(s.Channels),
			ffmpeg.CalculateAudioBitrate(s.Channels))
		if s.IsSpatial() {
			desc += " (spatial source)"
		}
		parts = append(parts, desc)
	}
	return strings.Join(parts, ", ")
}

// GenerateAudioResultsDescription renders the completion event's audio
// stream description.
func GenerateAudioResultsDescription(channels []uint32) string {
	if len(channels) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, fmt.Sprintf("Opus %s %dk",
			channelLayoutName(ch), ffmpeg.CalculateAudioBitrate(ch)))
	}
	return strings.Join(parts, ", ")
}
