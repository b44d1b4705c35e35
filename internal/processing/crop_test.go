package processing

import (
	"strings"
	"testing"

	"github.com/five82/drapto/internal/ffprobe"
)

func TestDetermineCropThreshold(t *testing.T) {
	tests := []struct {
		name    string
		props   ffprobe.VideoProperties
		want    uint32
		wantHDR bool
	}{
		{
			name:  "SDR bt709",
			props: ffprobe.VideoProperties{ColorTransfer: "bt709", ColorPrimaries: "bt709", ColorSpace: "bt709"},
			want:  16,
		},
		{
			name:    "HDR PQ transfer",
			props:   ffprobe.VideoProperties{ColorTransfer: "smpte2084"},
			want:    128,
			wantHDR: true,
		},
		{
			name:    "HDR HLG transfer",
			props:   ffprobe.VideoProperties{ColorTransfer: "arib-std-b67"},
			want:    128,
			wantHDR: true,
		},
		{
			name:    "HDR via primaries",
			props:   ffprobe.VideoProperties{ColorPrimaries: "bt2020"},
			want:    128,
			wantHDR: true,
		},
		{
			name:    "HDR via color space",
			props:   ffprobe.VideoProperties{ColorSpace: "bt2020nc"},
			want:    128,
			wantHDR: true,
		},
		{
			name:  "empty metadata is SDR",
			props: ffprobe.VideoProperties{},
			want:  16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isHDR := determineCropThreshold(&tt.props)
			if got != tt.want || isHDR != tt.wantHDR {
				t.Errorf("determineCropThreshold() = (%d, %v), want (%d, %v)",
					got, isHDR, tt.want, tt.wantHDR)
			}
		})
	}
}

func TestParseBlackLevels(t *testing.T) {
	output := `
[blackdetect @ 0x55] black_start:0 black_end:0.04 black_level: 64
[blackdetect @ 0x55] black_start:4.1 black_end:4.2 black_level: 80
[blackdetect @ 0x55] black_start:8.3 black_end:8.4 black_level: 96
`
	levels := parseBlackLevels(output)
	if len(levels) != 3 {
		t.Fatalf("len(levels) = %d, want 3", len(levels))
	}
	if levels[0] != 64 || levels[1] != 80 || levels[2] != 96 {
		t.Errorf("levels = %v, want [64 80 96]", levels)
	}
}

func TestRefineThresholdFromBlackLevels(t *testing.T) {
	tests := []struct {
		name    string
		levels  []float64
		initial uint32
		want    uint32
	}{
		// mean 80 x 1.5 = 120 (the HDR UHD scenario)
		{"mean of measurements", []float64{64, 80, 96}, 128, 120},
		// no measurements keeps the initial threshold
		{"empty keeps initial", nil, 128, 128},
		// tiny levels clamp to the floor
		{"clamped low", []float64{1, 2}, 128, 16},
		// huge levels clamp to the ceiling
		{"clamped high", []float64{500, 600}, 128, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refineThresholdFromBlackLevels(tt.levels, tt.initial)
			if got != tt.want {
				t.Errorf("refineThresholdFromBlackLevels(%v) = %d, want %d", tt.levels, got, tt.want)
			}
			if got < 16 || got > 256 {
				t.Errorf("threshold %d outside [16, 256]", got)
			}
		})
	}
}

func TestCalculateCreditsSkip(t *testing.T) {
	tests := []struct {
		durationSecs float64
		want         float64
	}{
		{7200, 180}, // two hours skips three minutes
		{3601, 180},
		{3600, 60}, // exactly one hour falls to the next band
		{1800, 60},
		{1201, 60},
		{1200, 30},
		{600, 30},
		{301, 30},
		{300, 0},
		{90, 0},
	}

	for _, tt := range tests {
		if got := calculateCreditsSkip(tt.durationSecs); got != tt.want {
			t.Errorf("calculateCreditsSkip(%.0f) = %.0f, want %.0f", tt.durationSecs, got, tt.want)
		}
	}
}

func TestCropSampleCount(t *testing.T) {
	tests := []struct {
		analysisDuration float64
		want             uint32
	}{
		{50, 20},   // short content floors at 20
		{100, 20},  // exactly at the floor
		{500, 100}, // one sample per 5s
		{6155, 1231},
	}

	for _, tt := range tests {
		if got := cropSampleCount(tt.analysisDuration); got != tt.want {
			t.Errorf("cropSampleCount(%.0f) = %d, want %d", tt.analysisDuration, got, tt.want)
		}
	}
}

func cropLines(crops ...string) string {
	var b strings.Builder
	for _, c := range crops {
		b.WriteString("[Parsed_cropdetect_0 @ 0x55] x1:0 x2:1919 y1:20 y2:1059 w:1920 h:1040 x:0 y:20 pts:1 t:0.04 crop=" + c + "\n")
	}
	return b.String()
}

func TestChooseCrop(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		srcW, srcH uint32
		wantFilter string
		wantReq    bool
	}{
		{
			name: "dominant letterbox crop",
			output: cropLines(
				"1920:1040:0:20", "1920:1040:0:20", "1920:1040:0:20",
				"1920:1080:0:0",
			),
			srcW: 1920, srcH: 1080,
			wantFilter: "crop=1920:1040:0:20",
			wantReq:    true,
		},
		{
			name:   "full frame mode means no crop",
			output: cropLines("3840:2160:0:0", "3840:2160:0:0"),
			srcW:   3840, srcH: 2160,
		},
		{
			name:   "width-changing candidates are ignored",
			output: cropLines("1900:1080:10:0", "1900:1080:10:0"),
			srcW:   1920, srcH: 1080,
		},
		{
			name:   "no candidates",
			output: "frame=100 fps=50\n",
			srcW:   1920, srcH: 1080,
		},
		{
			name:   "out-of-bounds crop rejected",
			output: cropLines("1920:1080:0:40", "1920:1080:0:40"),
			srcW:   1920, srcH: 1080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chooseCrop(tt.output, tt.srcW, tt.srcH)
			if got.CropFilter != tt.wantFilter {
				t.Errorf("CropFilter = %q, want %q", got.CropFilter, tt.wantFilter)
			}
			if got.Required != tt.wantReq {
				t.Errorf("Required = %v, want %v", got.Required, tt.wantReq)
			}
		})
	}
}

func TestChooseCrop_BoundsInvariant(t *testing.T) {
	// Whatever wins, a required crop must satisfy w+x <= W and h+y <= H.
	output := cropLines("1920:1040:0:20", "1920:1040:0:20", "1920:800:0:140")
	got := chooseCrop(output, 1920, 1080)
	if !got.Required {
		t.Fatal("expected a crop")
	}
	w, h := GetOutputDimensions(1920, 1080, got.CropFilter)
	if w > 1920 || h > 1080 {
		t.Errorf("crop %q exceeds source dimensions", got.CropFilter)
	}
}

func TestGetOutputDimensions(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		wantW  uint32
		wantH  uint32
	}{
		{"no filter", "", 1920, 1080},
		{"letterbox crop", "crop=1920:800:0:140", 1920, 800},
		{"garbage filter", "crop=bogus", 1920, 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := GetOutputDimensions(1920, 1080, tt.filter)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("GetOutputDimensions() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
