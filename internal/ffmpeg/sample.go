package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/five82/drapto/internal/coreerr"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename collapses characters that are awkward in scratch
// filenames into underscores.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ExtractSample cuts a short clip from the source starting at startSecs. The
// video stream is copied rather than re-encoded so the clip keeps the source
// timing and color metadata; audio is dropped.
func ExtractSample(
	ctx context.Context,
	inputPath string,
	startSecs float64,
	durationSecs uint32,
	destDir string,
) (string, error) {
	name := fmt.Sprintf("sample_%.1fs_%ds.mkv", startSecs, durationSecs)
	samplePath := filepath.Join(destDir, SanitizeFilename(name))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-y",
		"-ss", fmt.Sprintf("%.3f", startSecs),
		"-i", inputPath,
		"-t", fmt.Sprintf("%d", durationSecs),
		"-map", "0:v:0",
		"-an",
		"-c:v", "copy",
		samplePath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", &coreerr.Error{
			Kind:    coreerr.KindSampleExtraction,
			Message: fmt.Sprintf("failed to extract sample at %.1fs from %s", startSecs, inputPath),
			Stderr:  tailOf(string(out)),
			Err:     err,
		}
	}

	if info, err := os.Stat(samplePath); err != nil || info.Size() == 0 {
		return "", coreerr.Newf(coreerr.KindSampleExtraction,
			"extracted sample is missing or empty: %s", samplePath)
	}

	return samplePath, nil
}

// EncodeSample trial-encodes a clip with the supplied parameters and returns
// the output size in bytes. The encode uses the same encoder, preset, and
// CRF as the main encode but disables audio and progress output.
func EncodeSample(ctx context.Context, params *EncodeParams) (uint64, error) {
	if err := RunEncode(ctx, params, true, 0, nil); err != nil {
		if coreerr.IsCancelled(err) {
			return 0, err
		}
		return 0, coreerr.Wrap(coreerr.KindFilmGrainEncodingFailed,
			fmt.Sprintf("sample encode failed for %s", params.OutputPath), err)
	}

	info, err := os.Stat(params.OutputPath)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.KindFilmGrainEncodingFailed,
			fmt.Sprintf("failed to stat sample output %s", params.OutputPath), err)
	}
	return uint64(info.Size()), nil
}

func tailOf(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "\n")
}
