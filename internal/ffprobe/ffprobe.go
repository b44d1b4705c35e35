// Package ffprobe wraps the external ffprobe tool and maps its JSON output
// to typed video, audio, and media properties.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/drapto/internal/coreerr"
)

// VideoProperties holds the probed properties of the primary video stream.
type VideoProperties struct {
	Width          uint32
	Height         uint32
	DurationSecs   float64
	PixelFormat    string
	ColorSpace     string
	ColorTransfer  string
	ColorPrimaries string
}

// AudioStreamInfo describes one audio stream of the source.
type AudioStreamInfo struct {
	Channels  uint32
	CodecName string
	Profile   string // codec profile string, e.g. "Dolby TrueHD + Dolby Atmos"
	Index     int
	StartTime *float64 // seconds, when the container records one
}

// IsSpatial reports whether the track carries a spatial audio profile
// (Atmos, DTS:X). Informational only: all tracks are transcoded the same way.
func (a AudioStreamInfo) IsSpatial() bool {
	p := strings.ToLower(a.Profile)
	return strings.Contains(p, "atmos") ||
		strings.Contains(p, "dts:x") ||
		strings.Contains(p, "joc")
}

// MediaInfo holds whole-file properties used for progress estimation.
type MediaInfo struct {
	Duration    float64
	Width       uint32
	Height      uint32
	TotalFrames uint64
}

// --- ffprobe JSON wire types ---

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	Index            int    `json:"index"`
	CodecName        string `json:"codec_name"`
	CodecType        string `json:"codec_type"`
	Profile          string `json:"profile"`
	Width            uint32 `json:"width"`
	Height           uint32 `json:"height"`
	Channels         int    `json:"channels"`
	PixFmt           string `json:"pix_fmt"`
	NbFrames         string `json:"nb_frames"`
	RFrameRate       string `json:"r_frame_rate"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	ColorSpace       string `json:"color_space"`
	ColorTransfer    string `json:"color_transfer"`
	ColorPrimaries   string `json:"color_primaries"`
	Duration         string `json:"duration"`
	StartTime        string `json:"start_time"`
	Disposition      struct {
		Default  int `json:"default"`
		Dub      int `json:"dub"`
		Original int `json:"original"`
	} `json:"disposition"`
}

// run executes ffprobe against the path and returns the parsed document.
func run(ctx context.Context, path string) (*probeOutput, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, coreerr.Wrap(coreerr.KindProbeStatus,
				fmt.Sprintf("ffprobe exited with %d for %s", exitErr.ExitCode(), path), err)
		}
		return nil, coreerr.Wrap(coreerr.KindProbeIO,
			fmt.Sprintf("failed to launch ffprobe for %s", path), err)
	}

	return parseFFprobeOutput(out)
}

// parseFFprobeOutput decodes raw ffprobe JSON. Exported to tests via the
// package-internal name so fixtures can be parsed without a real binary.
func parseFFprobeOutput(data []byte) (*probeOutput, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, coreerr.Wrap(coreerr.KindProbeParse, "failed to parse ffprobe output", err)
	}
	return &out, nil
}

// GetVideoProperties probes the file and extracts the primary video stream
// properties.
func GetVideoProperties(ctx context.Context, path string) (*VideoProperties, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return nil, err
	}
	return extractVideoProperties(probe, path)
}

func extractVideoProperties(probe *probeOutput, path string) (*VideoProperties, error) {
	video := findVideoStream(probe)
	if video == nil {
		return nil, coreerr.Newf(coreerr.KindNoVideoStream, "no video stream found in %s", path)
	}

	if video.Width == 0 || video.Height == 0 {
		return nil, coreerr.Newf(coreerr.KindProbeParse,
			"could not determine video dimensions for %s", path)
	}

	duration := parseFloat(probe.Format.Duration)
	if duration == 0 {
		duration = parseFloat(video.Duration)
	}

	return &VideoProperties{
		Width:          video.Width,
		Height:         video.Height,
		DurationSecs:   duration,
		PixelFormat:    video.PixFmt,
		ColorSpace:     video.ColorSpace,
		ColorTransfer:  video.ColorTransfer,
		ColorPrimaries: video.ColorPrimaries,
	}, nil
}

func findVideoStream(probe *probeOutput) *probeStream {
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			return &probe.Streams[i]
		}
	}
	return nil
}

// GetAudioStreams probes the file and returns info for every audio stream in
// source order. Negative channel counts are clamped to zero; the caller is
// expected to warn about them.
func GetAudioStreams(ctx context.Context, path string) ([]AudioStreamInfo, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return nil, err
	}
	return extractAudioStreams(probe), nil
}

func extractAudioStreams(probe *probeOutput) []AudioStreamInfo {
	var streams []AudioStreamInfo
	audioIdx := 0
	for i := range probe.Streams {
		s := &probe.Streams[i]
		if s.CodecType != "audio" {
			continue
		}
		channels := s.Channels
		if channels < 0 {
			channels = 0
		}
		info := AudioStreamInfo{
			Channels:  uint32(channels),
			CodecName: s.CodecName,
			Profile:   s.Profile,
			Index:     audioIdx,
		}
		if st, err := strconv.ParseFloat(strings.TrimSpace(s.StartTime), 64); err == nil {
			info.StartTime = &st
		}
		streams = append(streams, info)
		audioIdx++
	}
	return streams
}

// AudioChannels returns the per-track channel counts from a stream list.
func AudioChannels(streams []AudioStreamInfo) []uint32 {
	channels := make([]uint32, 0, len(streams))
	for _, s := range streams {
		channels = append(channels, s.Channels)
	}
	return channels
}

// GetMediaInfo probes the file and extracts duration, dimensions, and the
// total frame count used for progress estimation.
func GetMediaInfo(ctx context.Context, path string) (*MediaInfo, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return nil, err
	}
	return extractMediaInfo(probe), nil
}

func extractMediaInfo(probe *probeOutput) *MediaInfo {
	info := &MediaInfo{
		Duration: parseFloat(probe.Format.Duration),
	}

	video := findVideoStream(probe)
	if video == nil {
		return info
	}

	info.Width = video.Width
	info.Height = video.Height

	// Prefer the container's frame count; fall back to duration x frame rate
	// when the muxer did not record one.
	if frames, err := strconv.ParseUint(video.NbFrames, 10, 64); err == nil && frames > 0 {
		info.TotalFrames = frames
	} else if fps := parseFrameRate(video.RFrameRate); fps > 0 && info.Duration > 0 {
		info.TotalFrames = uint64(info.Duration * fps)
	}

	return info
}

// VideoStreamDetails carries the video stream fields output validation
// checks: codec, bit depth, dimensions, duration, and color metadata.
type VideoStreamDetails struct {
	CodecName      string
	Profile        string
	Width          uint32
	Height         uint32
	PixelFormat    string
	BitDepth       *uint8 // from bits_per_raw_sample when recorded
	DurationSecs   float64
	StartTime      *float64
	ColorSpace     string
	ColorTransfer  string
	ColorPrimaries string
}

// GetVideoStreamDetails probes the file and extracts the detailed video
// stream description used by output validation.
func GetVideoStreamDetails(ctx context.Context, path string) (*VideoStreamDetails, error) {
	probe, err := run(ctx, path)
	if err != nil {
		return nil, err
	}
	return extractVideoStreamDetails(probe, path)
}

func extractVideoStreamDetails(probe *probeOutput, path string) (*VideoStreamDetails, error) {
	video := findVideoStream(probe)
	if video == nil {
		return nil, coreerr.Newf(coreerr.KindNoVideoStream, "no video stream found in %s", path)
	}

	details := &VideoStreamDetails{
		CodecName:      video.CodecName,
		Profile:        video.Profile,
		Width:          video.Width,
		Height:         video.Height,
		PixelFormat:    video.PixFmt,
		DurationSecs:   streamDuration(probe, video),
		ColorSpace:     video.ColorSpace,
		ColorTransfer:  video.ColorTransfer,
		ColorPrimaries: video.ColorPrimaries,
	}

	if depth, err := strconv.ParseUint(strings.TrimSpace(video.BitsPerRawSample), 10, 8); err == nil && depth > 0 {
		d := uint8(depth)
		details.BitDepth = &d
	}

	if st, err := strconv.ParseFloat(strings.TrimSpace(video.StartTime), 64); err == nil {
		details.StartTime = &st
	}

	return details, nil
}

// streamDuration resolves duration with the fallback chain: stream duration,
// then format duration, then frame count divided by frame rate.
func streamDuration(probe *probeOutput, video *probeStream) float64 {
	if d := parseFloat(video.Duration); d > 0 {
		return d
	}
	if d := parseFloat(probe.Format.Duration); d > 0 {
		return d
	}
	frames := parseFloat(video.NbFrames)
	fps := parseFrameRate(video.RFrameRate)
	if frames > 0 && fps > 0 {
		return frames / fps
	}
	return 0
}

// parseFrameRate parses an ffprobe rational frame rate like "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
