package audio

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure
type Kind int

const (
	KindUnknown Kind = iota
	KindScan
	KindDecode
	KindUnsupportedFormat
	KindEncode
	KindMuxWrite
	KindOutputDirectory
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan error"
	case KindDecode:
		return "decode error"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindEncode:
		return "encode error"
	case KindMuxWrite:
		return "write error"
	case KindOutputDirectory:
		return "output directory error"
	}
	return "error"
}

// ErrOutputExists is returned when the output file is already present and
// overwriting is disabled. Jobs failing with it are reported as skipped.
var ErrOutputExists = errors.New("output file already exists")

// Error carries the failure kind and the file it happened on
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
