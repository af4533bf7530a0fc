package types

import (
	"io"
	"log/slog"
)

// DefaultVersion is the fallback version when AppContext is nil
const DefaultVersion = "dev"

// AppContext holds application-wide context information passed to commands
type AppContext struct {
	Version string
	Logger  *slog.Logger
	// LogFile is set when --log-file was given; the TUI keeps logging
	// there instead of discarding it
	LogFile string
}

// VersionOrDefault returns the version, tolerating a nil context
func (c *AppContext) VersionOrDefault() string {
	if c == nil || c.Version == "" {
		return DefaultVersion
	}
	return c.Version
}

// Log returns the configured logger or one that discards everything
func (c *AppContext) Log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}
