package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/lepinkainen/flac2opus/audio"
	"github.com/lepinkainen/flac2opus/codec"
	"github.com/lepinkainen/flac2opus/convert"
	"github.com/lepinkainen/flac2opus/types"
	"github.com/lepinkainen/flac2opus/ui"
	"github.com/lepinkainen/flac2opus/utils"
)

// ConvertCmd scans a directory tree for FLAC files and converts them to
// Ogg/Opus in parallel.
type ConvertCmd struct {
	Input             string `arg:"" name:"input" help:"Directory to scan for FLAC files" type:"existingdir"`
	Output            string `arg:"" name:"output" help:"Directory to write Opus files to" type:"path"`
	Bitrate           int    `help:"Target bitrate in bits per second (6000-510000)" default:"128000"`
	Complexity        int    `help:"Encoder complexity (0-10, higher=slower and better)" default:"10"`
	VBR               bool   `name:"vbr" help:"Use variable bitrate" default:"true" negatable:""`
	Workers           int    `help:"Number of parallel workers (0 = auto)" default:"0"`
	PreserveStructure bool   `help:"Mirror input subdirectories in the output directory" default:"true" negatable:""`
	Overwrite         bool   `help:"Replace existing output files instead of skipping them"`
	NoTags            bool   `help:"Do not copy tags and cover art"`
	NoTUI             bool   `name:"no-tui" help:"Print plain progress even on a terminal"`
}

// Options returns the encoder settings selected by the flags
func (cmd *ConvertCmd) Options() audio.EncodeOptions {
	return audio.EncodeOptions{Bitrate: cmd.Bitrate, Complexity: cmd.Complexity, VBR: cmd.VBR}
}

// Settings returns the controller settings selected by the flags
func (cmd *ConvertCmd) Settings(workers int) convert.Settings {
	return convert.Settings{
		InputDir:          cmd.Input,
		OutputDir:         cmd.Output,
		Encode:            cmd.Options(),
		Workers:           workers,
		PreserveStructure: cmd.PreserveStructure,
		Overwrite:         cmd.Overwrite,
	}
}

// workerCount resolves --workers=0 to a default for the input and output
// locations
func (cmd *ConvertCmd) workerCount() int {
	if cmd.Workers > 0 {
		return cmd.Workers
	}
	workers := utils.DefaultWorkers(cmd.Input, cmd.Output)
	if utils.IsNetworkDrive(cmd.Input) || utils.IsNetworkDrive(cmd.Output) {
		fmt.Printf("⚠️  Network drive detected, using %d workers\n", workers)
	}
	return workers
}

func (cmd *ConvertCmd) Run(appCtx *types.AppContext) error {
	if err := cmd.Options().Validate(); err != nil {
		return err
	}

	useTUI := !cmd.NoTUI && isatty.IsTerminal(os.Stdout.Fd())
	logger := appCtx.Log()
	if useTUI && appCtx != nil && appCtx.LogFile == "" {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pipeline := &audio.Pipeline{
		NewEncoder: codec.NewEncoder,
		Vendor:     codec.Vendor(),
		Logger:     logger,
	}
	if !cmd.NoTags {
		pipeline.Tags = audio.FileTags{}
	}

	workers := cmd.workerCount()
	settings := cmd.Settings(workers)

	// The observer runs on the controller goroutine. Once done is closed
	// nobody reads events any more and the rest are dropped.
	events := make(chan convert.Event, 256)
	done := make(chan struct{})
	observer := func(ev convert.Event) {
		select {
		case events <- ev:
		case <-done:
		}
	}

	ctrl := convert.New(pipeline,
		convert.WithSettings(settings),
		convert.WithLogger(logger),
		convert.WithObserver(observer))

	if !useTUI {
		fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("flac2opus %s", appCtx.VersionOrDefault())))
		fmt.Printf("⚙️  Settings: %s, complexity %d, VBR %v, %d workers\n",
			ui.FormatBitrate(cmd.Bitrate), cmd.Complexity, cmd.VBR, workers)
	}

	var (
		message string
		err     error
	)
	if useTUI {
		message, err = cmd.runTUI(ctrl, events, workers, appCtx.VersionOrDefault())
	} else {
		message, err = cmd.runPlain(ctrl, events)
	}

	close(done)
	ctrl.Stop()
	ctrl.Wait(context.Background())
	snap := ctrl.Snapshot()
	ctrl.Close()

	if err != nil {
		return err
	}
	if message != "" {
		fmt.Println(ui.InfoStyle.Render(message))
		if snap.Progress.Total == 0 {
			return nil
		}
	}
	return printSummary(snap)
}

func (cmd *ConvertCmd) runTUI(ctrl *convert.Controller, events <-chan convert.Event, workers int, version string) (string, error) {
	model := ui.NewConvertModel(ctrl, events, cmd.Input, workers, version)
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return "", fmt.Errorf("TUI failed: %w", err)
	}
	m, ok := final.(ui.ConvertModel)
	if !ok {
		return "", nil
	}
	return m.Message(), nil
}

// runPlain drives the controller with progressbar output until the run
// ends. SIGINT and SIGTERM stop the run; pending jobs are left unconverted.
func (cmd *ConvertCmd) runPlain(ctrl *convert.Controller, events <-chan convert.Event) (string, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	interrupted := ctx.Done()
	scanning := true

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("🔍 Scanning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish())

	// Controller calls are made from goroutines: the controller may be
	// blocked handing us an event.
	go ctrl.Scan(cmd.Input)

	for {
		select {
		case <-interrupted:
			interrupted = nil
			bar.Clear()
			if scanning {
				ctrl.StopScan()
				return "Scan cancelled", nil
			}
			fmt.Println(ui.WarnStyle.Render("⏹  Stopping, waiting for running jobs to finish..."))
			go ctrl.Stop()

		case ev := <-events:
			switch ev.Kind {
			case convert.EventFileDiscovered:
				bar.Add(1)

			case convert.EventScanCompleted:
				scanning = false
				bar.Finish()
				if ev.Count == 0 {
					return "No FLAC files found", nil
				}
				fmt.Println(ui.ProcessingStyle.Render(fmt.Sprintf("🎵 Found %d files (%s)", ev.Count, ui.FormatBytes(ev.Bytes))))
				go ctrl.Start()

			case convert.EventScanError:
				bar.Finish()
				return "", fmt.Errorf("scan failed: %s", ev.Message)

			case convert.EventConversionStarted:
				bar = progressbar.NewOptions(ev.Progress.Total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("🎧 Converting"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionClearOnFinish())

			case convert.EventStatusChanged:
				if !ev.Status.Terminal() {
					break
				}
				if ev.Status == convert.StatusFailed {
					bar.Clear()
					fmt.Println(ui.RenderStatus(ev.Status, ev.Message))
				}
				bar.Add(1)

			case convert.EventRunCompleted, convert.EventRunStopped:
				bar.Finish()
				return "", nil

			case convert.EventRunError:
				bar.Finish()
				return "", fmt.Errorf("conversion not started: %s", ev.Message)
			}
		}
	}
}

// printSummary displays final statistics and returns an error when any
// job failed
func printSummary(snap convert.Snapshot) error {
	p := snap.Progress
	fmt.Printf("\n%s\n", ui.HeaderStyle.Render("📊 Conversion Summary"))
	fmt.Printf("   Converted: %d files\n", p.Completed)
	fmt.Printf("   Skipped: %d files\n", p.Skipped)
	fmt.Printf("   Errors: %d files\n", p.Failed)
	if p.Cancelled > 0 || p.Pending > 0 {
		fmt.Printf("   Not converted: %d files\n", p.Cancelled+p.Pending)
	}
	fmt.Printf("   Time: %s\n", ui.FormatDuration(p.Elapsed))

	for _, job := range snap.Jobs {
		if job.Status == convert.StatusFailed {
			fmt.Printf("   %s\n", ui.RenderStatus(job.Status, job.RelPath+": "+job.Error))
		}
	}

	if p.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", p.Failed, p.Total)
	}
	if p.Pending > 0 || p.Cancelled > 0 {
		fmt.Printf("\n%s\n", ui.WarnStyle.Render("⏹  Conversion stopped"))
		return nil
	}
	fmt.Printf("\n%s\n", ui.SuccessStyle.Render("🎉 Conversion complete!"))
	return nil
}
