package audio

import (
	"path/filepath"
	"slices"
	"strings"
)

// FlacExtensions lists the file extensions treated as FLAC input
var FlacExtensions = []string{".flac", ".fla"}

// IsFlacFile checks the extension of path case-insensitively
func IsFlacFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(FlacExtensions, ext)
}

// IsOpusFile reports whether path has an .opus extension
func IsOpusFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".opus")
}
