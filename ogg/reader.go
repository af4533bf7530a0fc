package ogg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrLostContinuation means a page did not continue a packet that the
// previous page left open, or continued one that was never started
var ErrLostContinuation = errors.New("ogg: packet continuation mismatch")

// Reader reads pages sequentially and verifies each checksum
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// NextPage returns the next page, io.EOF at a clean end of input, or
// io.ErrUnexpectedEOF when the input stops mid-page
func (r *Reader) NextPage() (*Page, error) {
	h := make([]byte, headerSize)
	if _, err := io.ReadFull(r.r, h); err != nil {
		return nil, err
	}
	if [4]byte(h[:4]) != capturePattern {
		return nil, ErrBadCapture
	}
	if h[4] != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, h[4])
	}
	p := &Page{
		Flags:    h[5],
		Granule:  int64(binary.LittleEndian.Uint64(h[6:])),
		Serial:   binary.LittleEndian.Uint32(h[14:]),
		Sequence: binary.LittleEndian.Uint32(h[18:]),
		Segments: make([]byte, h[26]),
	}
	want := binary.LittleEndian.Uint32(h[22:])
	if _, err := io.ReadFull(r.r, p.Segments); err != nil {
		return nil, unexpected(err)
	}
	size := 0
	for _, v := range p.Segments {
		size += int(v)
	}
	p.Body = make([]byte, size)
	if _, err := io.ReadFull(r.r, p.Body); err != nil {
		return nil, unexpected(err)
	}
	if got := binary.LittleEndian.Uint32(p.header()[22:]); got != want {
		return nil, fmt.Errorf("%w: page %d", ErrBadChecksum, p.Sequence)
	}
	return p, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Packet is one reassembled packet. Granule is the page granule for the
// last packet completed on a page and -1 otherwise.
type Packet struct {
	Data     []byte
	Granule  int64
	Serial   uint32
	Page     uint32
	BOS, EOS bool
}

// PacketReader reassembles packets from a page stream
type PacketReader struct {
	// OnPage, when set, sees every page before its packets are queued
	OnPage func(*Page) error

	pages   *Reader
	queue   []*Packet
	partial []byte
	open    bool
	last    *Page
}

func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{pages: NewReader(r)}
}

// LastPage returns the most recently read page
func (pr *PacketReader) LastPage() *Page { return pr.last }

// PageDone reports whether the packet most recently returned was the last
// data on its page
func (pr *PacketReader) PageDone() bool { return len(pr.queue) == 0 && !pr.open }

// NextPacket returns the next complete packet or io.EOF. A packet left
// unfinished at the end of input yields io.ErrUnexpectedEOF.
func (pr *PacketReader) NextPacket() (*Packet, error) {
	for len(pr.queue) == 0 {
		page, err := pr.pages.NextPage()
		if errors.Is(err, io.EOF) && pr.open {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if err := pr.consume(page); err != nil {
			return nil, err
		}
	}
	p := pr.queue[0]
	pr.queue = pr.queue[1:]
	return p, nil
}

func (pr *PacketReader) consume(page *Page) error {
	pr.last = page
	if pr.OnPage != nil {
		if err := pr.OnPage(page); err != nil {
			return err
		}
	}
	if page.Continued() != pr.open {
		return fmt.Errorf("%w: page %d", ErrLostContinuation, page.Sequence)
	}
	first, offset := len(pr.queue), 0
	for _, v := range page.Segments {
		pr.partial = append(pr.partial, page.Body[offset:offset+int(v)]...)
		offset += int(v)
		pr.open = true
		if v < 255 {
			pr.queue = append(pr.queue, &Packet{
				Data:    pr.partial,
				Granule: -1,
				Serial:  page.Serial,
				Page:    page.Sequence,
			})
			pr.partial = nil
			pr.open = false
		}
	}
	if done := pr.queue[first:]; len(done) > 0 {
		done[len(done)-1].Granule = page.Granule
		done[0].BOS = page.BOS()
		done[len(done)-1].EOS = page.EOS()
	}
	return nil
}
