package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/five82/drapto/internal/coreerr"
)

// Progress is one parsed encoder progress update.
type Progress struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	FPS          float32
	Speed        float32 // realtime factor
	Bitrate      string
	ETA          time.Duration
}

// ProgressCallback receives throttled progress updates during an encode.
type ProgressCallback func(Progress)

// progressMinInterval throttles progress callbacks to at most ~20 per
// second regardless of how fast ffmpeg flushes its progress pipe.
const progressMinInterval = 50 * time.Millisecond

// stderrTailLines bounds the captured stderr kept for error reporting.
const stderrTailLines = 40

// RunEncode executes ffmpeg with the given parameters and streams progress
// to the callback. Cancellation through the context terminates the child and
// surfaces as a cancelled error; no partial success is reported.
func RunEncode(
	ctx context.Context,
	params *EncodeParams,
	isGrainSample bool,
	totalFrames uint64,
	progressCb ProgressCallback,
) error {
	args := buildFFmpegArgs(params, isGrainSample)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return coreerr.Wrap(coreerr.KindEncoderLaunch, "failed to open ffmpeg progress pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return coreerr.Wrap(coreerr.KindEncoderLaunch, "failed to open ffmpeg stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return coreerr.Wrap(coreerr.KindEncoderLaunch, "failed to launch ffmpeg", err)
	}

	// Drain stderr concurrently, keeping only the tail for error reports.
	stderrDone := make(chan []string, 1)
	go func() {
		var tail []string
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			tail = append(tail, scanner.Text())
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
		}
		stderrDone <- tail
	}()

	// Parse the key=value progress stream from stdout. Updates arrive as
	// blocks terminated by a "progress=continue|end" line.
	parser := newProgressParser(totalFrames)
	var lastEmit time.Time
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		snapshot, complete := parser.parseLine(scanner.Text())
		if !complete || progressCb == nil || isGrainSample {
			continue
		}
		now := time.Now()
		if now.Sub(lastEmit) < progressMinInterval && snapshot.Percent < 100 {
			continue
		}
		lastEmit = now
		progressCb(snapshot)
	}

	stderrTail := <-stderrDone
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return coreerr.Wrap(coreerr.KindCancelled, "encoding cancelled", ctx.Err())
	}

	if waitErr != nil {
		tail := strings.Join(stderrTail, "\n")
		if containsNoStreams(stderrTail) {
			return &coreerr.Error{
				Kind:    coreerr.KindNoStreamsFound,
				Message: fmt.Sprintf("ffmpeg found no streams in %s", params.InputPath),
				Stderr:  tail,
				Err:     waitErr,
			}
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &coreerr.Error{
				Kind:    coreerr.KindEncoderExit,
				Message: fmt.Sprintf("ffmpeg exited with %d", exitErr.ExitCode()),
				Stderr:  tail,
				Err:     waitErr,
			}
		}
		return coreerr.Wrap(coreerr.KindEncoderExit, "ffmpeg failed", waitErr)
	}

	return nil
}

func containsNoStreams(stderrTail []string) bool {
	for _, line := range stderrTail {
		if strings.Contains(line, "does not contain any stream") ||
			strings.Contains(line, "Output file is empty") {
			return true
		}
	}
	return false
}

// progressParser accumulates the fields of one progress block.
type progressParser struct {
	totalFrames uint64
	current     Progress
}

func newProgressParser(totalFrames uint64) *progressParser {
	return &progressParser{totalFrames: totalFrames}
}

// parseLine consumes one line of the progress stream. It returns the
// completed snapshot when the block-terminating "progress=" key arrives.
func (p *progressParser) parseLine(line string) (Progress, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if frame, err := strconv.ParseUint(value, 10, 64); err == nil {
			p.current.CurrentFrame = frame
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 32); err == nil {
			p.current.FPS = float32(fps)
		}
	case "bitrate":
		if value != "N/A" {
			p.current.Bitrate = value
		}
	case "speed":
		if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 32); err == nil {
			p.current.Speed = float32(speed)
		}
	case "progress":
		snapshot := p.current
		snapshot.TotalFrames = p.totalFrames
		if p.totalFrames > 0 {
			percent := float64(snapshot.CurrentFrame) / float64(p.totalFrames) * 100
			if percent > 100 {
				percent = 100
			}
			snapshot.Percent = float32(percent)
			if snapshot.FPS > 0 && snapshot.CurrentFrame < p.totalFrames {
				remaining := float64(p.totalFrames-snapshot.CurrentFrame) / float64(snapshot.FPS)
				snapshot.ETA = time.Duration(remaining * float64(time.Second))
			}
		}
		if value == "end" {
			snapshot.Percent = 100
			snapshot.ETA = 0
		}
		return snapshot, true
	}

	return Progress{}, false
}
