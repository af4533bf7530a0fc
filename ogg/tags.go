package ogg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadTags returns the identification and comment headers of an Ogg/Opus
// file
func ReadTags(path string) (OpusHead, OpusTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return OpusHead{}, OpusTags{}, err
	}
	defer f.Close()

	pr := NewPacketReader(f)
	p, err := pr.NextPacket()
	if err != nil {
		return OpusHead{}, OpusTags{}, err
	}
	head, err := ParseOpusHead(p.Data)
	if err != nil {
		return head, OpusTags{}, err
	}
	if p, err = pr.NextPacket(); err != nil {
		return head, OpusTags{}, err
	}
	tags, err := ParseOpusTags(p.Data)
	return head, tags, err
}

// ReplaceComments rewrites the comment header of the Ogg/Opus file at path,
// keeping its vendor string. Pages after the comment header are copied with
// renumbered sequence numbers and fresh checksums. The file is replaced
// atomically.
func ReplaceComments(path string, comments []string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	r := NewReader(in)
	first, err := r.NextPage()
	if err != nil {
		return fmt.Errorf("read header page: %w", err)
	}
	if !first.BOS() || !first.EndsPacket() || len(first.Segments) == 0 {
		return fmt.Errorf("%w: identification header does not fill its own page", ErrNotOpus)
	}
	if _, err := ParseOpusHead(first.Body); err != nil {
		return err
	}

	var old []byte
	oldPages := 0
	for {
		page, err := r.NextPage()
		if err != nil {
			return fmt.Errorf("read comment header: %w", unexpected(err))
		}
		if page.Serial != first.Serial {
			return fmt.Errorf("%w: multiplexed streams are not supported", ErrNotOpus)
		}
		for i, v := range page.Segments {
			if v < 255 && i != len(page.Segments)-1 {
				return fmt.Errorf("%w: comment header shares a page with audio", ErrNotOpus)
			}
		}
		old = append(old, page.Body...)
		oldPages++
		if page.EndsPacket() {
			break
		}
	}
	tags, err := ParseOpusTags(old)
	if err != nil {
		return err
	}
	tags.Comments = comments

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tags-*.opus")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := first.WriteTo(tmp); err != nil {
		return cleanup(err)
	}
	s := &Stream{w: tmp, serial: first.Serial, sequence: first.Sequence + 1, packetNo: 1, started: true}
	if err := s.WritePacket(tags.Marshal(), 0, false); err != nil {
		return cleanup(err)
	}
	if err := s.Flush(); err != nil {
		return cleanup(err)
	}
	delta := int64(s.sequence) - int64(first.Sequence+1) - int64(oldPages)
	for {
		page, err := r.NextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cleanup(err)
		}
		page.Sequence = uint32(int64(page.Sequence) + delta)
		if _, err := page.WriteTo(tmp); err != nil {
			return cleanup(err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if info, err := in.Stat(); err == nil {
		os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
