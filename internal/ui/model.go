// Package ui provides the Bubbletea terminal user interface: a steady-tick
// progress bar during encodes framed by styled status output for the
// analysis stages, validation results, and the batch summary.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/five82/drapto/internal/reporter"
)

// tickInterval drives the steady progress bar refresh.
const tickInterval = 100 * time.Millisecond

// maxLogLines bounds the scrollback kept above the progress area.
const maxLogLines = 200

type tickMsg time.Time

// phase tracks which view the model renders.
type phase int

const (
	phaseIdle phase = iota
	phaseAnalyzing
	phaseEncoding
	phaseDone
)

// Model is the Bubbletea model for the encode UI.
type Model struct {
	// Header
	hardware reporter.HardwareSummary

	// Current file
	current      reporter.InitializationSummary
	currentPhase phase
	fileContext  reporter.FileProgressContext

	// Batch state
	batch     *reporter.BatchStartInfo
	batchDone *reporter.BatchSummary
	finalLine string

	// Encode progress
	progress reporter.ProgressSnapshot

	// Scrollback of completed status lines.
	lines []string

	// Terminal size
	width int

	Done bool
}

// NewModel creates the initial UI model.
func NewModel() Model {
	return Model{width: 100}
}

// Init starts the steady tick.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles pipeline messages and terminal events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Quitting the UI makes main cancel the pipeline and wait
			// for it to stop.
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.Done {
			return m, tea.Quit
		}
		return m, tick()

	case HardwareMsg:
		m.hardware = msg.Summary
		return m, nil

	case BatchStartedMsg:
		info := msg.Info
		m.batch = &info
		return m, nil

	case FileProgressMsg:
		m.fileContext = msg.Context
		return m, nil

	case InitializationMsg:
		m.current = msg.Summary
		m.currentPhase = phaseAnalyzing
		m.appendLine(renderInitialization(msg.Summary))
		return m, nil

	case StageProgressMsg:
		m.appendLine(renderStageProgress(msg.Update))
		return m, nil

	case CropMsg:
		m.appendLine(renderCrop(msg.Summary))
		return m, nil

	case ConfigMsg:
		m.appendLine(renderConfig(msg.Summary))
		return m, nil

	case EncodingStartedMsg:
		m.currentPhase = phaseEncoding
		m.progress = reporter.ProgressSnapshot{TotalFrames: msg.TotalFrames}
		return m, nil

	case ProgressMsg:
		m.progress = msg.Snapshot
		return m, nil

	case ValidationMsg:
		m.appendLine(renderValidation(msg.Summary))
		return m, nil

	case EncodingCompleteMsg:
		m.currentPhase = phaseIdle
		m.appendLine(renderOutcome(msg.Outcome))
		return m, nil

	case WarningMsg:
		m.appendLine(warningStyle.Render("⚠ " + msg.Message))
		return m, nil

	case ErrorMsg:
		m.appendLine(renderError(msg.Err))
		return m, nil

	case OperationCompleteMsg:
		m.finalLine = successStyle.Render("✓ " + msg.Message)
		return m, nil

	case BatchCompleteMsg:
		summary := msg.Summary
		m.batchDone = &summary
		return m, nil

	case AllDoneMsg:
		m.Done = true
		m.currentPhase = phaseDone
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}
