package ogg

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrMuxerClosed = errors.New("ogg: muxer closed")
	ErrBadState    = errors.New("ogg: operation out of order")
)

// MuxState tracks how far an OpusMuxer has progressed
type MuxState int

const (
	StateInit MuxState = iota
	StateHeaderWritten
	StateCommentWritten
	StateStreaming
	StateClosed
)

func (s MuxState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHeaderWritten:
		return "header-written"
	case StateCommentWritten:
		return "comment-written"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("MuxState(%d)", int(s))
}

// OpusMuxer writes an Ogg/Opus file: the identification header page, the
// comment header pages, then audio packets. The most recent audio packet is
// held back until the next one arrives or Close is called, so the final
// packet can carry the end-of-stream mark.
type OpusMuxer struct {
	out    io.WriteCloser
	stream *Stream
	head   OpusHead
	state  MuxState

	granule     int64
	held        []byte
	heldSamples int
	audio       int
}

func NewOpusMuxer(out io.WriteCloser, serial uint32, head OpusHead) *OpusMuxer {
	return &OpusMuxer{
		out:    out,
		stream: NewStream(out, serial),
		head:   head,
	}
}

func (m *OpusMuxer) State() MuxState { return m.state }

// Granule is the granule position of the last audio packet handed to the
// page writer
func (m *OpusMuxer) Granule() int64 { return m.granule }

// AudioPackets is the number of audio packets accepted so far
func (m *OpusMuxer) AudioPackets() int { return m.audio }

func (m *OpusMuxer) expect(want ...MuxState) error {
	if m.state == StateClosed {
		return ErrMuxerClosed
	}
	for _, s := range want {
		if m.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: muxer is %s", ErrBadState, m.state)
}

// WriteHeader writes OpusHead alone on the first page
func (m *OpusMuxer) WriteHeader() error {
	if err := m.expect(StateInit); err != nil {
		return err
	}
	if err := m.stream.WritePacket(m.head.Marshal(), 0, false); err != nil {
		return err
	}
	if err := m.stream.Flush(); err != nil {
		return err
	}
	m.state = StateHeaderWritten
	return nil
}

// WriteComments writes the OpusTags packet, starting and ending on its own
// page boundary
func (m *OpusMuxer) WriteComments(vendor string, comments []string) error {
	if err := m.expect(StateHeaderWritten); err != nil {
		return err
	}
	tags := OpusTags{Vendor: vendor, Comments: comments}
	if err := m.stream.WritePacket(tags.Marshal(), 0, false); err != nil {
		return err
	}
	if err := m.stream.Flush(); err != nil {
		return err
	}
	m.state = StateCommentWritten
	return nil
}

// WriteAudio submits one encoded packet covering samples 48 kHz samples
func (m *OpusMuxer) WriteAudio(packet []byte, samples int) error {
	if err := m.expect(StateCommentWritten, StateStreaming); err != nil {
		return err
	}
	m.state = StateStreaming
	if m.held != nil {
		if err := m.release(false); err != nil {
			return err
		}
	}
	m.held = append(m.held[:0:0], packet...)
	m.heldSamples = samples
	m.audio++
	return nil
}

func (m *OpusMuxer) release(eos bool) error {
	m.granule += int64(m.heldSamples)
	err := m.stream.WritePacket(m.held, m.granule, eos)
	m.held = nil
	return err
}

// Close marks the last packet end-of-stream, flushes every page and closes
// the underlying writer. A stream without audio ends with an empty EOS
// page.
func (m *OpusMuxer) Close() error {
	if err := m.expect(StateCommentWritten, StateStreaming); err != nil {
		return err
	}
	m.state = StateClosed
	var err error
	if m.held != nil {
		err = m.release(true)
	} else {
		err = m.stream.End()
	}
	if cerr := m.out.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort closes the underlying writer without finishing the stream. Removing
// the partial file is left to the caller.
func (m *OpusMuxer) Abort() error {
	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed
	m.held = nil
	return m.out.Close()
}
