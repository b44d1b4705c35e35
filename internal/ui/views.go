package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/drapto/internal/reporter"
	"github.com/five82/drapto/internal/util"
)

// View renders the UI: scrollback of completed stages, then the live
// progress bar while an encode is running, then the batch summary.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(renderHeader(m.hardware, m.batch))

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if m.currentPhase == phaseEncoding {
		b.WriteByte('\n')
		label := "Encoding " + m.current.OutputFile
		if m.fileContext.TotalFiles > 1 {
			label = fmt.Sprintf("Encoding %s (file %d of %d)",
				m.current.OutputFile, m.fileContext.CurrentFile, m.fileContext.TotalFiles)
		}
		b.WriteString(mutedStyle.Render(label))
		b.WriteByte('\n')
		b.WriteString(renderProgressBar(m.progress, m.width))
		b.WriteByte('\n')
	}

	if m.batchDone != nil {
		b.WriteString(renderBatchSummary(*m.batchDone))
	}

	if m.finalLine != "" {
		b.WriteString(m.finalLine)
		b.WriteByte('\n')
	}

	return b.String()
}

func renderHeader(hw reporter.HardwareSummary, batch *reporter.BatchStartInfo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("drapto"))
	if hw.Hostname != "" {
		host := fmt.Sprintf(" on %s (%d cores", hw.Hostname, hw.CoreCount)
		if hw.Decoder != "" {
			host += ", " + hw.Decoder + " decode"
		}
		host += ")"
		b.WriteString(mutedStyle.Render(host))
	}
	b.WriteByte('\n')

	if batch != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Batch: %d files -> %s",
			batch.TotalFiles, batch.OutputDir)))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

func renderInitialization(s reporter.InitializationSummary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("▶ " + s.InputFile))
	b.WriteByte('\n')
	b.WriteString(kv("Resolution", fmt.Sprintf("%s (%s)", s.Resolution, s.Category)))
	b.WriteString(kv("Duration", s.Duration))
	b.WriteString(kv("Dynamic range", s.DynamicRange))
	b.WriteString(kv("Audio", s.AudioDescription))
	return strings.TrimRight(b.String(), "\n")
}

func renderStageProgress(u reporter.StageProgress) string {
	return mutedStyle.Render("  " + u.Message)
}

func renderCrop(s reporter.CropSummary) string {
	switch {
	case s.Disabled:
		return kvLine("Crop", "disabled")
	case s.Required:
		return kvLine("Crop", s.Crop)
	default:
		return kvLine("Crop", "none ("+s.Message+")")
	}
}

func renderConfig(s reporter.EncodingConfigSummary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Encoding configuration"))
	b.WriteByte('\n')
	b.WriteString(kv("Encoder", fmt.Sprintf("%s, preset %s, %s", s.Encoder, s.Preset, s.Quality)))
	b.WriteString(kv("Format", fmt.Sprintf("%s, %s", s.PixelFormat, s.MatrixCoefficients)))
	b.WriteString(kv("Audio", fmt.Sprintf("%s (%s)", s.AudioCodec, s.AudioDescription)))
	if s.DraptoPreset != "" {
		b.WriteString(kv("Preset bundle", s.DraptoPreset))
	}
	for _, setting := range s.PresetSettings {
		b.WriteString(kv(setting[0], setting[1]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderProgressBar draws the steady-tick bar with frame counts, speed, and
// ETA.
func renderProgressBar(p reporter.ProgressSnapshot, width int) string {
	barWidth := width - 10
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 60 {
		barWidth = 60
	}

	filled := int(float64(barWidth) * float64(p.Percent) / 100)
	if filled > barWidth {
		filled = barWidth
	}

	bar := barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	status := fmt.Sprintf(" %5.1f%%", p.Percent)
	detail := ""
	if p.TotalFrames > 0 {
		detail = fmt.Sprintf("  frame %d/%d", p.CurrentFrame, p.TotalFrames)
	}
	if p.FPS > 0 {
		detail += fmt.Sprintf("  %.0f fps", p.FPS)
	}
	if p.Speed > 0 {
		detail += fmt.Sprintf("  %.2fx", p.Speed)
	}
	if p.ETA > 0 {
		detail += "  ETA " + p.ETA.Round(time.Second).String()
	}

	return bar + status + mutedStyle.Render(detail)
}

func renderValidation(s reporter.ValidationSummary) string {
	var b strings.Builder
	if s.Passed {
		b.WriteString(successStyle.Render("✓ Validation passed"))
	} else {
		b.WriteString(errorStyle.Render("✗ Validation failed"))
	}
	b.WriteByte('\n')
	for _, step := range s.Steps {
		mark := successStyle.Render("✓")
		if !step.Passed {
			mark = errorStyle.Render("✗")
		}
		b.WriteString(fmt.Sprintf("  %s %s: %s\n", mark,
			keyStyle.Render(step.Name), step.Details))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOutcome(o reporter.EncodingOutcome) string {
	var b strings.Builder
	b.WriteString(successStyle.Render("✓ Encoded " + o.OutputFile))
	b.WriteByte('\n')
	b.WriteString(kv("Video", o.VideoStream))
	b.WriteString(kv("Audio", o.AudioStream))
	b.WriteString(kv("Size", fmt.Sprintf("%s -> %s (%.1f%% reduction)",
		util.FormatSize(o.OriginalSize),
		util.FormatSize(o.EncodedSize),
		util.CalculateSizeReduction(o.OriginalSize, o.EncodedSize))))
	b.WriteString(kv("Time", fmt.Sprintf("%s (%.2fx realtime)",
		o.TotalTime.Round(time.Second), o.AverageSpeed)))
	return strings.TrimRight(b.String(), "\n")
}

func renderError(e reporter.Error) string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("✗ " + e.Title + ": " + e.Message))
	if e.Context != "" {
		b.WriteByte('\n')
		b.WriteString(mutedStyle.Render("  " + e.Context))
	}
	if e.Suggestion != "" {
		b.WriteByte('\n')
		b.WriteString(mutedStyle.Render("  Suggestion: " + e.Suggestion))
	}
	return b.String()
}

func renderBatchSummary(s reporter.BatchSummary) string {
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(headerStyle.Render("Batch summary"))
	b.WriteByte('\n')
	b.WriteString(kv("Files", fmt.Sprintf("%d/%d encoded", s.SuccessfulCount, s.TotalFiles)))
	b.WriteString(kv("Size", fmt.Sprintf("%s -> %s (%.1f%% reduction)",
		util.FormatSize(s.TotalOriginalSize),
		util.FormatSize(s.TotalEncodedSize),
		util.CalculateSizeReduction(s.TotalOriginalSize, s.TotalEncodedSize))))
	b.WriteString(kv("Time", fmt.Sprintf("%s (%.2fx average)",
		s.TotalDuration.Round(time.Second), s.AverageSpeed)))
	b.WriteString(kv("Validation", fmt.Sprintf("%d passed, %d failed",
		s.ValidationPassedCount, s.ValidationFailedCount)))
	for _, fr := range s.FileResults {
		b.WriteString(kv(fr.Filename, fmt.Sprintf("%.1f%% reduction", fr.Reduction)))
	}
	return b.String()
}

func kv(key, value string) string {
	return fmt.Sprintf("  %s %s\n", keyStyle.Render(key+":"), valueStyle.Render(value))
}

func kvLine(key, value string) string {
	return strings.TrimRight(kv(key, value), "\n")
}
