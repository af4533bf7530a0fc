package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/lepinkainen/flac2opus/cmd"
	"github.com/lepinkainen/flac2opus/config"
	"github.com/lepinkainen/flac2opus/types"
)

var Version = "dev"

type CLI struct {
	Config   kong.ConfigFlag  `help:"Load defaults from this YAML file" type:"path"`
	Version  kong.VersionFlag `help:"Show version and exit"`
	LogLevel string           `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFile  string           `help:"Write logs to this file instead of stderr" type:"path"`

	Convert cmd.ConvertCmd `cmd:"" help:"Convert a directory of FLAC files to Opus"`
	Scan    cmd.ScanCmd    `cmd:"" help:"List the FLAC files a conversion would pick up"`
	Verify  cmd.VerifyCmd  `cmd:"" help:"Check Opus files for container errors"`
	Tags    cmd.TagsCmd    `cmd:"" help:"Show or copy tags of FLAC and Opus files"`
}

// newLogger builds the slog logger for the selected level. Logs go to
// fallback unless path is set.
func newLogger(level, path string, fallback io.Writer) (*slog.Logger, func() error, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	w, closer := fallback, func() error { return nil }
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closer, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("flac2opus"),
		kong.Description("Batch convert FLAC files to Ogg/Opus."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
		kong.Configuration(config.Loader, config.Paths...))

	logger, closeLog, err := newLogger(cli.LogLevel, cli.LogFile, os.Stderr)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(&types.AppContext{Version: Version, Logger: logger, LogFile: cli.LogFile})
	closeLog()
	ctx.FatalIfErrorf(err)
}
