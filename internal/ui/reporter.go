package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/five82/drapto/internal/reporter"
)

// TerminalReporter bridges pipeline events into the Bubbletea program. The
// pipeline goroutine calls these methods; Program.Send is safe for
// cross-goroutine use and never blocks on rendering.
type TerminalReporter struct {
	p *tea.Program
}

// NewTerminalReporter wraps a running program.
func NewTerminalReporter(p *tea.Program) *TerminalReporter {
	return &TerminalReporter{p: p}
}

// Finish tells the UI the pipeline goroutine is done.
func (t *TerminalReporter) Finish() {
	t.p.Send(AllDoneMsg{})
}

func (t *TerminalReporter) Hardware(s reporter.HardwareSummary) { t.p.Send(HardwareMsg{s}) }

func (t *TerminalReporter) Initialization(s reporter.InitializationSummary) {
	t.p.Send(InitializationMsg{s})
}

func (t *TerminalReporter) StageProgress(u reporter.StageProgress) { t.p.Send(StageProgressMsg{u}) }
func (t *TerminalReporter) CropResult(s reporter.CropSummary)      { t.p.Send(CropMsg{s}) }

func (t *TerminalReporter) EncodingConfig(s reporter.EncodingConfigSummary) {
	t.p.Send(ConfigMsg{s})
}

func (t *TerminalReporter) EncodingStarted(totalFrames uint64) {
	t.p.Send(EncodingStartedMsg{totalFrames})
}

func (t *TerminalReporter) EncodingProgress(p reporter.ProgressSnapshot) {
	t.p.Send(ProgressMsg{p})
}

func (t *TerminalReporter) ValidationComplete(s reporter.ValidationSummary) {
	t.p.Send(ValidationMsg{s})
}

func (t *TerminalReporter) EncodingComplete(o reporter.EncodingOutcome) {
	t.p.Send(EncodingCompleteMsg{o})
}

func (t *TerminalReporter) Warning(message string) { t.p.Send(WarningMsg{message}) }
func (t *TerminalReporter) Error(e reporter.Error) { t.p.Send(ErrorMsg{e}) }

func (t *TerminalReporter) OperationComplete(message string) {
	t.p.Send(OperationCompleteMsg{message})
}

func (t *TerminalReporter) BatchStarted(info reporter.BatchStartInfo) {
	t.p.Send(BatchStartedMsg{info})
}

func (t *TerminalReporter) FileProgress(ctx reporter.FileProgressContext) {
	t.p.Send(FileProgressMsg{ctx})
}

func (t *TerminalReporter) BatchComplete(s reporter.BatchSummary) {
	t.p.Send(BatchCompleteMsg{s})
}
