package ffprobe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/drapto/internal/coreerr"
)

// loadTestData loads a JSON fixture from the testdata directory.
func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func TestParseFFprobeOutput_Valid1080pSDR(t *testing.T) {
	data := loadTestData(t, "video_1080p_sdr.json")

	probe, err := parseFFprobeOutput(data)
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	if probe.Format.Duration != "120.500000" {
		t.Errorf("Duration = %q, want %q", probe.Format.Duration, "120.500000")
	}
	if len(probe.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(probe.Streams))
	}

	video := probe.Streams[0]
	if video.CodecType != "video" {
		t.Errorf("video.CodecType = %q, want %q", video.CodecType, "video")
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", video.Width, video.Height)
	}

	audio := probe.Streams[1]
	if audio.CodecType != "audio" {
		t.Errorf("audio.CodecType = %q, want %q", audio.CodecType, "audio")
	}
	if audio.Channels != 2 {
		t.Errorf("audio.Channels = %d, want 2", audio.Channels)
	}
}

func TestParseFFprobeOutput_MalformedJSON(t *testing.T) {
	_, err := parseFFprobeOutput([]byte(`{"format": {"duration": "120.5"}, "streams": [}`))
	if err == nil {
		t.Fatal("parseFFprobeOutput() expected error for malformed JSON")
	}
	if kind := coreerr.KindOf(err); kind != coreerr.KindProbeParse {
		t.Errorf("error kind = %v, want KindProbeParse", kind)
	}
}

func TestExtractVideoProperties_SDR(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_1080p_sdr.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	props, err := extractVideoProperties(probe, "test.mkv")
	if err != nil {
		t.Fatalf("extractVideoProperties() error = %v", err)
	}

	if props.Width != 1920 {
		t.Errorf("Width = %d, want 1920", props.Width)
	}
	if props.Height != 1080 {
		t.Errorf("Height = %d, want 1080", props.Height)
	}
	if props.DurationSecs != 120.5 {
		t.Errorf("DurationSecs = %f, want 120.5", props.DurationSecs)
	}
	if props.ColorTransfer != "bt709" {
		t.Errorf("ColorTransfer = %q, want bt709", props.ColorTransfer)
	}
}

func TestExtractVideoProperties_HDR(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_4k_hdr_pq.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	props, err := extractVideoProperties(probe, "test.mkv")
	if err != nil {
		t.Fatalf("extractVideoProperties() error = %v", err)
	}

	if props.Width != 3840 || props.Height != 2160 {
		t.Errorf("dimensions = %dx%d, want 3840x2160", props.Width, props.Height)
	}
	if props.ColorTransfer != "smpte2084" {
		t.Errorf("ColorTransfer = %q, want smpte2084", props.ColorTransfer)
	}
	if props.ColorPrimaries != "bt2020" {
		t.Errorf("ColorPrimaries = %q, want bt2020", props.ColorPrimaries)
	}
}

func TestExtractVideoProperties_NoVideoStream(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_no_video_stream.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	_, err = extractVideoProperties(probe, "test.mkv")
	if err == nil {
		t.Fatal("extractVideoProperties() expected error for missing video stream")
	}
	if kind := coreerr.KindOf(err); kind != coreerr.KindNoVideoStream {
		t.Errorf("error kind = %v, want KindNoVideoStream", kind)
	}
}

func TestExtractAudioStreams(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_4k_hdr_pq.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	streams := extractAudioStreams(probe)
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want 2", len(streams))
	}

	if streams[0].CodecName != "truehd" {
		t.Errorf("streams[0].CodecName = %q, want truehd", streams[0].CodecName)
	}
	if streams[0].Channels != 8 {
		t.Errorf("streams[0].Channels = %d, want 8", streams[0].Channels)
	}
	if streams[0].Index != 0 {
		t.Errorf("streams[0].Index = %d, want 0", streams[0].Index)
	}
	if !streams[0].IsSpatial() {
		t.Error("streams[0].IsSpatial() = false, want true for TrueHD Atmos")
	}

	if streams[1].CodecName != "ac3" {
		t.Errorf("streams[1].CodecName = %q, want ac3", streams[1].CodecName)
	}
	if streams[1].Channels != 6 {
		t.Errorf("streams[1].Channels = %d, want 6", streams[1].Channels)
	}
	if streams[1].IsSpatial() {
		t.Error("streams[1].IsSpatial() = true, want false for plain AC-3")
	}

	channels := AudioChannels(streams)
	if len(channels) != 2 || channels[0] != 8 || channels[1] != 6 {
		t.Errorf("AudioChannels() = %v, want [8 6]", channels)
	}
}

func TestExtractAudioStreams_NegativeChannelsClampedToZero(t *testing.T) {
	probe := &probeOutput{
		Streams: []probeStream{
			{CodecType: "audio", CodecName: "aac", Channels: -2},
		},
	}

	streams := extractAudioStreams(probe)
	if len(streams) != 1 {
		t.Fatalf("len(streams) = %d, want 1", len(streams))
	}
	if streams[0].Channels != 0 {
		t.Errorf("Channels = %d, want 0 for negative input", streams[0].Channels)
	}
}

func TestExtractMediaInfo(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "video_1080p_sdr.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	info := extractMediaInfo(probe)
	if info.Duration != 120.5 {
		t.Errorf("Duration = %f, want 120.5", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.TotalFrames != 2892 {
		t.Errorf("TotalFrames = %d, want 2892 (from nb_frames)", info.TotalFrames)
	}
}

func TestExtractMediaInfo_FrameCountFallback(t *testing.T) {
	// Without nb_frames the count derives from duration x frame rate.
	probe := &probeOutput{
		Format: probeFormat{Duration: "10.0"},
		Streams: []probeStream{
			{CodecType: "video", Width: 1280, Height: 720, RFrameRate: "30000/1001"},
		},
	}

	info := extractMediaInfo(probe)
	// 10s x 29.97 fps = 299 frames (truncated).
	if info.TotalFrames != 299 {
		t.Errorf("TotalFrames = %d, want 299", info.TotalFrames)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"24/1", 24},
		{"30000/1001", 29.97002997002997},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractVideoStreamDetails(t *testing.T) {
	probe, err := parseFFprobeOutput(loadTestData(t, "output_av1_cropped.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	details, err := extractVideoStreamDetails(probe, "out.mkv")
	if err != nil {
		t.Fatalf("extractVideoStreamDetails() error = %v", err)
	}

	if details.CodecName != "av1" {
		t.Errorf("CodecName = %q, want av1", details.CodecName)
	}
	if details.Width != 1920 || details.Height != 1040 {
		t.Errorf("dimensions = %dx%d, want 1920x1040", details.Width, details.Height)
	}
	if details.PixelFormat != "yuv420p10le" {
		t.Errorf("PixelFormat = %q, want yuv420p10le", details.PixelFormat)
	}
	if details.BitDepth != nil {
		t.Errorf("BitDepth = %v, want nil (no bits_per_raw_sample in fixture)", *details.BitDepth)
	}
	if details.DurationSecs != 6155.1 {
		t.Errorf("DurationSecs = %f, want 6155.1", details.DurationSecs)
	}
	if details.StartTime == nil || *details.StartTime != 0 {
		t.Errorf("StartTime = %v, want 0", details.StartTime)
	}
}

func TestStreamDurationFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		probe probeOutput
		want  float64
	}{
		{
			name: "stream duration wins",
			probe: probeOutput{
				Format:  probeFormat{Duration: "100"},
				Streams: []probeStream{{CodecType: "video", Duration: "99"}},
			},
			want: 99,
		},
		{
			name: "format duration fallback",
			probe: probeOutput{
				Format:  probeFormat{Duration: "100"},
				Streams: []probeStream{{CodecType: "video"}},
			},
			want: 100,
		},
		{
			name: "frames over rate fallback",
			probe: probeOutput{
				Streams: []probeStream{{CodecType: "video", NbFrames: "240", RFrameRate: "24/1"}},
			},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video := &tt.probe.Streams[0]
			if got := streamDuration(&tt.probe, video); got != tt.want {
				t.Errorf("streamDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
