// Command drapto is an adaptive AV1 re-encoding driver. It wraps ffprobe,
// mediainfo, and ffmpeg (SVT-AV1) with a decision layer that picks quality
// targets, detects letterboxing, and selects denoising strength through
// trial encodes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/five82/drapto/internal/cli"
	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/discovery"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/processing"
	"github.com/five82/drapto/internal/reporter"
	"github.com/five82/drapto/internal/ui"
	"github.com/five82/drapto/internal/util"
)

// version is set via ldflags at build time.
var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information"`
	Encode  EncodeCmd  `cmd:"" help:"Encode video files to AV1"`
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	cli.PrintVersion(version)
	return nil
}

// EncodeCmd is the encode subcommand.
type EncodeCmd struct {
	InputPath string `arg:"" name:"input_path" help:"Input video file or directory" type:"path"`
	OutputDir string `arg:"" name:"output_dir" help:"Output directory (or output filename for a single input)" type:"path"`

	LogDir    string `help:"Log directory (defaults to OUTPUT_DIR/logs)" type:"path"`
	NtfyTopic string `help:"ntfy.sh topic for push notifications"`
	Preset    string `help:"Named preset bundle" enum:"grain,clean,quick," default:""`

	QualitySD  *uint8 `help:"CRF for SD content (<1920 width), 0-63"`
	QualityHD  *uint8 `help:"CRF for HD content (>=1920 width), 0-63"`
	QualityUHD *uint8 `help:"CRF for UHD content (>=3840 width), 0-63"`

	Denoise        bool `help:"Run grain analysis to pick a denoise filter" default:"true" negatable:""`
	DisableDenoise bool `help:"Disable grain analysis and denoising"`

	CropMode string `help:"Crop detection mode" enum:"auto,none" default:"auto"`
	KeepTemp bool   `help:"Keep per-input scratch directories"`
	Verbose  bool   `short:"v" help:"Enable verbose logging"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("drapto"),
		kong.Description("Adaptive AV1 video re-encoding"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// Run executes the encode command.
func (e *EncodeCmd) Run() error {
	inputPath, err := filepath.Abs(e.InputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input path does not exist: %s", inputPath)
	}

	outputDir, targetFilename, err := resolveOutputPath(e.OutputDir, inputInfo.IsDir())
	if err != nil {
		return err
	}
	if err := util.EnsureDirectory(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logDir := e.LogDir
	if logDir == "" {
		logDir = filepath.Join(outputDir, "logs")
	}

	runLog, err := logging.Setup(logDir, e.Verbose)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = runLog.Close() }()

	// Discover files to process
	var filesToProcess []string
	if inputInfo.IsDir() {
		filesToProcess, err = discovery.FindVideoFiles(inputPath)
		if err != nil {
			return fmt.Errorf("failed to discover video files: %w", err)
		}
		if len(filesToProcess) == 0 {
			return fmt.Errorf("no video files found in %s", inputPath)
		}
	} else {
		filesToProcess = []string{inputPath}
	}

	cfg, err := e.buildConfig(inputPath, outputDir, logDir)
	if err != nil {
		return err
	}

	runLog.Logger.Info().
		Str("version", version).
		Int("files", len(filesToProcess)).
		Str("output_dir", outputDir).
		Msg("drapto encode starting")

	// Reporter fan-out: terminal UI, structured log file, optional ntfy.
	model := ui.NewModel()
	program := tea.NewProgram(model)
	termRep := ui.NewTerminalReporter(program)

	sinks := []reporter.Reporter{
		termRep,
		reporter.NewLogReporter(runLog.Logger, config.ProgressLogIntervalPercent),
	}
	if cfg.NtfyTopic != "" {
		sinks = append(sinks, reporter.NewNtfyReporter(cfg.NtfyTopic))
	}
	errCounter := &errorCountingReporter{}
	sinks = append(sinks, errCounter)
	rep := reporter.NewComposite(sinks...)

	// Cancellation via SIGINT/SIGTERM.
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	var results []processing.EncodeResult
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		results, _ = processing.ProcessVideos(runCtx, cfg, nil, filesToProcess, targetFilename, rep)
		termRep.Finish()
	}()

	_, uiErr := program.Run()

	// Quitting the UI early cancels the pipeline; wait for it to wind down
	// before reading results.
	cancel()
	<-pipelineDone

	if uiErr != nil {
		return fmt.Errorf("terminal UI error: %w", uiErr)
	}

	// Validation failures exit zero; only a run that encoded nothing while
	// reporting errors is fatal.
	if len(results) == 0 && errCounter.count.Load() > 0 {
		return fmt.Errorf("no files were encoded successfully")
	}

	return nil
}

// buildConfig assembles the pipeline configuration from preset defaults and
// CLI overrides, in that order.
func (e *EncodeCmd) buildConfig(inputPath, outputDir, logDir string) (*config.Config, error) {
	cfg := config.New(inputPath, outputDir, logDir)

	if e.Preset != "" {
		preset, err := config.ParsePreset(e.Preset)
		if err != nil {
			return nil, err
		}
		cfg.ApplyPreset(preset)
	}

	if e.QualitySD != nil {
		cfg.QualitySD = *e.QualitySD
	}
	if e.QualityHD != nil {
		cfg.QualityHD = *e.QualityHD
	}
	if e.QualityUHD != nil {
		cfg.QualityUHD = *e.QualityUHD
	}

	cfg.EnableDenoise = e.Denoise && !e.DisableDenoise
	cfg.CropMode = e.CropMode
	cfg.KeepTemp = e.KeepTemp
	cfg.Verbose = e.Verbose
	cfg.NtfyTopic = e.NtfyTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveOutputPath splits the output argument into a directory and an
// optional target filename. A video extension on the output path of a
// single-file encode names the output file directly.
func resolveOutputPath(outputPath string, isInputDir bool) (outputDir, targetFilename string, err error) {
	outputPath, err = filepath.Abs(outputPath)
	if err != nil {
		return "", "", fmt.Errorf("invalid output path: %w", err)
	}

	if isInputDir {
		return outputPath, "", nil
	}

	if discovery.IsVideoFile(outputPath) {
		return filepath.Dir(outputPath), filepath.Base(outputPath), nil
	}

	return outputPath, "", nil
}

// errorCountingReporter tracks whether any pipeline error was reported, for
// the process exit code.
type errorCountingReporter struct {
	reporter.NullReporter
	count atomic.Int64
}

func (e *errorCountingReporter) Error(reporter.Error) {
	e.count.Add(1)
}
