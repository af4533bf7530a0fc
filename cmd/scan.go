package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/lepinkainen/flac2opus/audio"
	"github.com/lepinkainen/flac2opus/convert"
	"github.com/lepinkainen/flac2opus/ui"
)

// ScanCmd lists the FLAC files a conversion would pick up without
// converting anything
type ScanCmd struct {
	Input             string `arg:"" name:"input" help:"Directory to scan for FLAC files" type:"existingdir"`
	Output            string `help:"Show the output path each file would get under this directory" type:"path"`
	PreserveStructure bool   `help:"Mirror input subdirectories in the output directory" default:"true" negatable:""`
}

func (cmd *ScanCmd) Run() error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("🔍 Scanning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish())

	scanner := audio.NewScanner()
	events, _ := scanner.Start(cmd.Input)

	var result *audio.ScanResult
	for ev := range events {
		switch ev.Kind {
		case audio.ScanDiscovered:
			bar.Add(len(ev.Files))
		case audio.ScanFailed:
			bar.Finish()
			return fmt.Errorf("scan failed: %w", ev.Err)
		case audio.ScanCompleted:
			result = &audio.ScanResult{Root: ev.Root, Files: ev.Files, Bytes: ev.Bytes}
		}
	}
	bar.Finish()
	if result == nil {
		return nil
	}

	if len(result.Files) == 0 {
		fmt.Println(ui.InfoStyle.Render("🎯 No FLAC files found."))
		return nil
	}

	fmt.Println(ui.ProcessingStyle.Render(fmt.Sprintf("📂 %s", result.Root)))
	printScan(result, cmd.Output, cmd.PreserveStructure)
	return nil
}

func printScan(result *audio.ScanResult, output string, preserve bool) {
	for _, f := range result.Files {
		fmt.Printf("🎵 %s %s\n", f.RelPath, ui.MutedStyle.Render(ui.FormatBytes(f.Size)))
		if output != "" {
			fmt.Printf("   → %s\n", convert.OutputPath(output, f.RelPath, preserve))
		}
	}

	fmt.Printf("\n📈 Summary:\n")
	fmt.Printf("   Total files: %d\n", len(result.Files))
	fmt.Printf("   Total size: %s\n", ui.FormatBytes(result.Bytes))
}
