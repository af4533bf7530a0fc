// Package ogg implements the subset of the Ogg container needed to write and
// read single-stream Ogg/Opus files
package ogg

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	FlagContinued = 0x01
	FlagBOS       = 0x02
	FlagEOS       = 0x04

	headerSize  = 27
	maxSegments = 255
	// Pages are emitted once the pending body reaches this size
	pageFill = 4096
)

var capturePattern = [4]byte{'O', 'g', 'g', 'S'}

var (
	ErrBadCapture  = errors.New("ogg: missing OggS capture pattern")
	ErrBadVersion  = errors.New("ogg: unsupported stream structure version")
	ErrBadChecksum = errors.New("ogg: page checksum mismatch")
)

// Page is one Ogg page. Segments holds the lacing values; Body is the
// concatenated segment data.
type Page struct {
	Flags    byte
	Granule  int64
	Serial   uint32
	Sequence uint32
	Segments []byte
	Body     []byte
}

func (p *Page) Continued() bool { return p.Flags&FlagContinued != 0 }
func (p *Page) BOS() bool       { return p.Flags&FlagBOS != 0 }
func (p *Page) EOS() bool       { return p.Flags&FlagEOS != 0 }

// EndsPacket reports whether the last packet data on the page is complete
func (p *Page) EndsPacket() bool {
	return len(p.Segments) > 0 && p.Segments[len(p.Segments)-1] < 255
}

// header encodes the page header with its checksum filled in
func (p *Page) header() []byte {
	h := make([]byte, headerSize+len(p.Segments))
	copy(h, capturePattern[:])
	h[4] = 0
	h[5] = p.Flags
	binary.LittleEndian.PutUint64(h[6:], uint64(p.Granule))
	binary.LittleEndian.PutUint32(h[14:], p.Serial)
	binary.LittleEndian.PutUint32(h[18:], p.Sequence)
	h[26] = byte(len(p.Segments))
	copy(h[headerSize:], p.Segments)
	crc := crcUpdate(crcUpdate(0, h), p.Body)
	binary.LittleEndian.PutUint32(h[22:], crc)
	return h
}

// WriteTo writes the page header followed by the body
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.header())
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(p.Body)
	return int64(n + m), err
}

// Bytes returns the encoded page
func (p *Page) Bytes() []byte {
	return append(p.header(), p.Body...)
}
