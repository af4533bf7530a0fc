package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/flac2opus/audio"
	"github.com/lepinkainen/flac2opus/codec"
	"github.com/lepinkainen/flac2opus/ogg"
	"github.com/lepinkainen/flac2opus/ui"
)

// VerifyCmd checks that Opus files are well-formed Ogg streams, optionally
// decoding every packet.
type VerifyCmd struct {
	Files   []string `arg:"" name:"files" help:"Opus files or directories to verify" type:"path"`
	Decode  bool     `help:"Decode every audio packet with libopus"`
	Workers int      `help:"Number of parallel workers (0 = one per CPU)" default:"0"`
}

type verifyResult struct {
	Path    string
	Info    *ogg.StreamInfo
	Decoded int
	Err     error
}

// Run verifies every file and reports per-file results in argument order
func (cmd *VerifyCmd) Run() error {
	files, err := expandOpusFiles(cmd.Files)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println(ui.InfoStyle.Render("🎯 No Opus files to verify."))
		return nil
	}

	fmt.Printf("%s\n", ui.InfoStyle.Render(fmt.Sprintf("Verifying %d files...", len(files))))

	workers := cmd.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]verifyResult, len(files))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			results[i] = verifyFile(path, cmd.Decode)
			return nil
		})
	}
	g.Wait()

	var verified, failed int
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ %s: %v", r.Path, r.Err)))
			failed++
			continue
		}
		fmt.Printf("%s %s\n", ui.SuccessStyle.Render(fmt.Sprintf("✅ %s", r.Path)), ui.MutedStyle.Render(describe(r)))
		verified++
	}

	fmt.Printf("\n%s\n", ui.InfoStyle.Render(fmt.Sprintf("✅ Verified: %d, ❌ Failed: %d", verified, failed)))
	if failed > 0 {
		return fmt.Errorf("%d files failed verification", failed)
	}
	return nil
}

func describe(r verifyResult) string {
	s := fmt.Sprintf("(%d ch, %d Hz source, %s, %d packets, %d pages)",
		r.Info.Head.Channels, r.Info.Head.InputSampleRate,
		ui.FormatDuration(r.Info.Duration()), r.Info.AudioPackets, r.Info.Pages)
	if r.Decoded > 0 {
		s += fmt.Sprintf(" decoded %d packets", r.Decoded)
	}
	return s
}

// verifyFile checks the stream structure of path and, with decode set,
// runs every audio packet through libopus
func verifyFile(path string, decode bool) verifyResult {
	res := verifyResult{Path: path}

	var check func([]byte) error
	if decode {
		head, _, err := ogg.ReadTags(path)
		if err != nil {
			res.Err = err
			return res
		}
		dec, err := codec.NewDecoder(int(head.Channels))
		if err != nil {
			res.Err = err
			return res
		}
		check = func(packet []byte) error {
			if _, err := dec.Decode(packet); err != nil {
				return fmt.Errorf("packet %d: %w", res.Decoded, err)
			}
			res.Decoded++
			return nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer f.Close()

	res.Info, res.Err = ogg.Verify(f, check)
	return res
}

// expandOpusFiles replaces directory arguments with the .opus files below
// them
func expandOpusFiles(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !fi.IsDir() {
			out = append(out, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && audio.IsOpusFile(p) {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
		}
	}
	return out, nil
}
