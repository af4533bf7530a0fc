package ogg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PreSkip is the number of 48 kHz samples a decoder discards at the
	// start of the stream
	PreSkip = 3840
	// GranuleRate is the clock of Opus granule positions
	GranuleRate = 48000

	opusHeadSize = 19
)

var (
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")

	ErrNotOpus = errors.New("ogg: not an Opus stream")
)

// OpusHead is the identification header of an Ogg/Opus stream
type OpusHead struct {
	Version         uint8
	Channels        uint8
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8
}

// NewOpusHead returns a family-0 header for a mono or stereo stream
func NewOpusHead(channels, inputRate int) OpusHead {
	return OpusHead{
		Version:         1,
		Channels:        uint8(channels),
		PreSkip:         PreSkip,
		InputSampleRate: uint32(inputRate),
	}
}

func (h OpusHead) Marshal() []byte {
	b := make([]byte, opusHeadSize)
	copy(b, opusHeadMagic)
	b[8] = h.Version
	b[9] = h.Channels
	binary.LittleEndian.PutUint16(b[10:], h.PreSkip)
	binary.LittleEndian.PutUint32(b[12:], h.InputSampleRate)
	binary.LittleEndian.PutUint16(b[16:], uint16(h.OutputGain))
	b[18] = h.MappingFamily
	return b
}

func ParseOpusHead(p []byte) (OpusHead, error) {
	if len(p) < opusHeadSize || !bytes.Equal(p[:8], opusHeadMagic) {
		return OpusHead{}, ErrNotOpus
	}
	h := OpusHead{
		Version:         p[8],
		Channels:        p[9],
		PreSkip:         binary.LittleEndian.Uint16(p[10:]),
		InputSampleRate: binary.LittleEndian.Uint32(p[12:]),
		OutputGain:      int16(binary.LittleEndian.Uint16(p[16:])),
		MappingFamily:   p[18],
	}
	if h.Version>>4 != 0 {
		return h, fmt.Errorf("%w: version %d", ErrNotOpus, h.Version)
	}
	if h.Channels == 0 {
		return h, fmt.Errorf("%w: zero channels", ErrNotOpus)
	}
	return h, nil
}

// OpusTags is the comment header: a vendor string and KEY=value entries
type OpusTags struct {
	Vendor   string
	Comments []string
}

func (t OpusTags) Marshal() []byte {
	size := 8 + 4 + len(t.Vendor) + 4
	for _, c := range t.Comments {
		size += 4 + len(c)
	}
	b := make([]byte, 0, size)
	b = append(b, opusTagsMagic...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Vendor)))
	b = append(b, t.Vendor...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Comments)))
	for _, c := range t.Comments {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(c)))
		b = append(b, c...)
	}
	return b
}

func ParseOpusTags(p []byte) (OpusTags, error) {
	if len(p) < 16 || !bytes.Equal(p[:8], opusTagsMagic) {
		return OpusTags{}, ErrNotOpus
	}
	p = p[8:]
	next := func() (string, error) {
		if len(p) < 4 {
			return "", fmt.Errorf("%w: truncated comment header", ErrNotOpus)
		}
		n := binary.LittleEndian.Uint32(p)
		p = p[4:]
		if uint64(n) > uint64(len(p)) {
			return "", fmt.Errorf("%w: comment length %d exceeds packet", ErrNotOpus, n)
		}
		s := string(p[:n])
		p = p[n:]
		return s, nil
	}
	var t OpusTags
	var err error
	if t.Vendor, err = next(); err != nil {
		return t, err
	}
	if len(p) < 4 {
		return t, fmt.Errorf("%w: missing comment count", ErrNotOpus)
	}
	count := binary.LittleEndian.Uint32(p)
	p = p[4:]
	for i := uint32(0); i < count; i++ {
		c, err := next()
		if err != nil {
			return t, err
		}
		t.Comments = append(t.Comments, c)
	}
	return t, nil
}
