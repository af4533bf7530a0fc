package ogg

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// StreamInfo summarizes a verified Ogg/Opus stream
type StreamInfo struct {
	Serial       uint32
	Head         OpusHead
	Tags         OpusTags
	Pages        int
	AudioPackets int
	Granule      int64
}

// Duration is the playback length: the final granule minus pre-skip
func (i *StreamInfo) Duration() time.Duration {
	samples := i.Granule - int64(i.Head.PreSkip)
	if samples < 0 {
		samples = 0
	}
	return time.Duration(samples) * time.Second / GranuleRate
}

// Verify reads a complete Ogg/Opus stream and checks its page structure:
// checksums, a single serial number, consecutive page sequence numbers,
// header packets on their own pages, non-decreasing granule positions and a
// final end-of-stream page. Each audio packet is passed to fn when fn is
// not nil.
func Verify(r io.Reader, fn func(packet []byte) error) (*StreamInfo, error) {
	pr := NewPacketReader(r)
	info := &StreamInfo{}
	var (
		last  *Page
		ended bool
	)
	pr.OnPage = func(page *Page) error {
		if ended {
			return fmt.Errorf("page %d follows the end-of-stream page", page.Sequence)
		}
		if last == nil {
			if !page.BOS() {
				return errors.New("first page is not marked beginning-of-stream")
			}
			info.Serial = page.Serial
		} else {
			if page.BOS() {
				return fmt.Errorf("page %d is marked beginning-of-stream", page.Sequence)
			}
			if page.Serial != info.Serial {
				return fmt.Errorf("page %d has serial %08x, want %08x", page.Sequence, page.Serial, info.Serial)
			}
			if page.Sequence != last.Sequence+1 {
				return fmt.Errorf("page sequence jumps from %d to %d", last.Sequence, page.Sequence)
			}
			if page.Granule != -1 && page.Granule < info.Granule {
				return fmt.Errorf("granule position decreases on page %d", page.Sequence)
			}
		}
		if page.Granule != -1 {
			info.Granule = page.Granule
		}
		last = page
		ended = page.EOS()
		info.Pages++
		return nil
	}

	for count := 0; ; count++ {
		p, err := pr.NextPacket()
		if errors.Is(err, io.EOF) {
			if count < 2 {
				return info, fmt.Errorf("%w: missing header packets", ErrNotOpus)
			}
			break
		}
		if err != nil {
			return info, err
		}
		switch count {
		case 0:
			if info.Head, err = ParseOpusHead(p.Data); err != nil {
				return info, err
			}
			if !p.BOS || !pr.PageDone() {
				return info, errors.New("identification header is not alone on the first page")
			}
		case 1:
			if info.Tags, err = ParseOpusTags(p.Data); err != nil {
				return info, err
			}
			if !pr.PageDone() {
				return info, errors.New("comment header does not end its page")
			}
		default:
			info.AudioPackets++
			if fn != nil {
				if err := fn(p.Data); err != nil {
					return info, fmt.Errorf("audio packet %d: %w", info.AudioPackets, err)
				}
			}
		}
	}
	if !ended {
		return info, errors.New("stream has no end-of-stream page")
	}
	return info, nil
}
