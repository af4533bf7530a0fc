package ogg

import (
	"errors"
	"io"
)

// ErrStreamEnded is returned when a packet is submitted after the
// end-of-stream page was written
var ErrStreamEnded = errors.New("ogg: stream already ended")

type lacing struct {
	value   byte
	end     bool
	granule int64
	eos     bool
}

// Stream packs packets of one logical bitstream into pages and writes each
// completed page to w
type Stream struct {
	w        io.Writer
	serial   uint32
	sequence uint32
	packetNo int64

	lacing []lacing
	body   []byte

	started   bool
	continued bool
	ended     bool
	granule   int64
}

func NewStream(w io.Writer, serial uint32) *Stream {
	return &Stream{w: w, serial: serial}
}

func (s *Stream) Serial() uint32 { return s.serial }

// PacketNo is the number that the next submitted packet will receive
func (s *Stream) PacketNo() int64 { return s.packetNo }

// PageSequence is the sequence number of the next page to be written
func (s *Stream) PageSequence() uint32 { return s.sequence }

// Ended reports whether the end-of-stream page has been written
func (s *Stream) Ended() bool { return s.ended }

// WritePacket queues p with the given granule position. Full pages are
// written immediately; a packet marked eos is flushed together with
// everything still pending and closes the stream.
func (s *Stream) WritePacket(p []byte, granule int64, eos bool) error {
	if s.ended {
		return ErrStreamEnded
	}
	for n := len(p); n >= 255; n -= 255 {
		s.lacing = append(s.lacing, lacing{value: 255})
	}
	s.lacing = append(s.lacing, lacing{
		value:   byte(len(p) % 255),
		end:     true,
		granule: granule,
		eos:     eos,
	})
	s.body = append(s.body, p...)
	s.packetNo++
	s.granule = granule
	if eos {
		return s.pageOut(true)
	}
	return s.pageOut(false)
}

// Flush writes every pending lacing value, so the next packet starts on a
// fresh page
func (s *Stream) Flush() error {
	return s.pageOut(true)
}

// End terminates the stream. If no packet carried the end-of-stream mark,
// pending data is flushed and an empty page with the EOS flag follows.
func (s *Stream) End() error {
	if s.ended {
		return nil
	}
	if err := s.Flush(); err != nil {
		return err
	}
	granule := s.granule
	if !s.started {
		granule = 0
	}
	return s.emit(nil, nil, granule, true)
}

func (s *Stream) pageOut(force bool) error {
	for len(s.lacing) > 0 {
		n, size := 0, 0
		for n < len(s.lacing) && n < maxSegments && size < pageFill {
			size += int(s.lacing[n].value)
			n++
		}
		if !force && n < maxSegments && size < pageFill {
			return nil
		}

		granule, eos := int64(-1), false
		segments := make([]byte, n)
		for i, l := range s.lacing[:n] {
			segments[i] = l.value
			if l.end {
				granule = l.granule
			}
			eos = eos || l.eos
		}
		continues := !s.lacing[n-1].end
		if err := s.emit(segments, s.body[:size], granule, eos); err != nil {
			return err
		}
		s.continued = continues
		s.lacing = s.lacing[n:]
		s.body = s.body[size:]
	}
	return nil
}

func (s *Stream) emit(segments, body []byte, granule int64, eos bool) error {
	var flags byte
	if s.continued {
		flags |= FlagContinued
	}
	if !s.started {
		flags |= FlagBOS
		s.started = true
	}
	if eos {
		flags |= FlagEOS
		s.ended = true
	}
	page := &Page{
		Flags:    flags,
		Granule:  granule,
		Serial:   s.serial,
		Sequence: s.sequence,
		Segments: segments,
		Body:     body,
	}
	s.sequence++
	_, err := page.WriteTo(s.w)
	return err
}
