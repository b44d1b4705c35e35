package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/five82/drapto/internal/coreerr"
)

// xpsnrMinimumRegex and xpsnrLumaRegex match the summary line the xpsnr filter prints, e.g.
// "XPSNR  y: 40.1265  u: 44.2234  v: 45.0912  (minimum: 40.1265)".
var (
	xpsnrMinimumRegex = regexp.MustCompile(`XPSNR[^\n]*minimum:\s*([0-9]+(?:\.[0-9]+)?)`)
	xpsnrLumaRegex    = regexp.MustCompile(`XPSNR\s+y:\s*([0-9]+(?:\.[0-9]+)?)`)
)

// CalculateXPSNR compares a distorted encode against its reference clip and
// returns the XPSNR score in dB. When a crop filter is in play it is applied
// to both sides so the comparison covers identical pixels.
//
// XPSNR failure is non-fatal to grain analysis; callers record a missing
// score and the analyzer degrades gracefully.
func CalculateXPSNR(ctx context.Context, referencePath, distortedPath, cropFilter string) (float64, error) {
	var filter string
	if cropFilter != "" {
		filter = fmt.Sprintf("[0:v]%s[dis];[1:v]%s[ref];[dis][ref]xpsnr", cropFilter, cropFilter)
	} else {
		filter = "[0:v][1:v]xpsnr"
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-i", distortedPath,
		"-i", referencePath,
		"-lavfi", filter,
		"-f", "null", "-",
	)

	// The xpsnr filter reports on stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, &coreerr.Error{
			Kind:    coreerr.KindXPSNR,
			Message: fmt.Sprintf("xpsnr measurement failed for %s", distortedPath),
			Stderr:  tailOf(string(out)),
			Err:     err,
		}
	}

	return parseXPSNROutput(string(out))
}

// parseXPSNROutput extracts the scalar score, preferring the reported
// cross-plane minimum and falling back to the luma value.
func parseXPSNROutput(output string) (float64, error) {
	if m := xpsnrMinimumRegex.FindStringSubmatch(output); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, nil
		}
	}
	if m := xpsnrLumaRegex.FindStringSubmatch(output); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, nil
		}
	}
	return 0, coreerr.New(coreerr.KindXPSNR, "no XPSNR score found in ffmpeg output")
}
