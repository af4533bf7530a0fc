package convert

import (
	"path/filepath"
	"strings"
)

// OutputExt is the extension of converted files
const OutputExt = ".opus"

// OutputPath maps an input file, given relative to the scan root, to its
// output location. With preserve set the relative directories are kept
// under outputRoot; otherwise every file lands directly in outputRoot.
func OutputPath(outputRoot, relPath string, preserve bool) string {
	name := filepath.Base(relPath)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + OutputExt
	if !preserve {
		return filepath.Join(outputRoot, name)
	}
	return filepath.Join(outputRoot, filepath.Dir(relPath), name)
}
