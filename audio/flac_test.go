package audio

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"os"
	"testing"

	"github.com/go-flac/flacvorbis"
)

// flacFixture describes a small FLAC file built from 16-bit samples using
// verbatim subframes only
type flacFixture struct {
	rate      int
	channels  int
	samples   [][]int16 // per channel
	blockSize int
	comments  []string
	picture   *Picture
}

var flacRateCodes = map[int]byte{
	8000: 0x4, 16000: 0x5, 22050: 0x6, 24000: 0x7,
	32000: 0x8, 44100: 0x9, 48000: 0xa, 96000: 0xb,
}

func crc8(p []byte) byte {
	var crc byte
	for _, b := range p {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func crc16(p []byte) uint16 {
	var crc uint16
	for _, b := range p {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func metadataBlock(typ byte, last bool, body []byte) []byte {
	if last {
		typ |= 0x80
	}
	n := len(body)
	return append([]byte{typ, byte(n >> 16), byte(n >> 8), byte(n)}, body...)
}

func (f flacFixture) bytes(t *testing.T) []byte {
	t.Helper()
	rateCode, ok := flacRateCodes[f.rate]
	if !ok {
		t.Fatalf("no FLAC rate code for %d", f.rate)
	}
	block := f.blockSize
	if block == 0 {
		block = 4096
	}
	total := 0
	if f.channels > 0 {
		total = len(f.samples[0])
	}

	sum := md5.New()
	for i := 0; i < total; i++ {
		for c := 0; c < f.channels; c++ {
			binary.Write(sum, binary.LittleEndian, f.samples[c][i])
		}
	}

	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:], uint16(block))
	binary.BigEndian.PutUint16(info[2:], uint16(block))
	packed := uint64(f.rate)<<44 | uint64(f.channels-1)<<41 | uint64(15)<<36 | uint64(total)
	binary.BigEndian.PutUint64(info[10:], packed)
	copy(info[18:], sum.Sum(nil))

	var out bytes.Buffer
	out.WriteString("fLaC")
	extra := 0
	if f.comments != nil {
		extra++
	}
	if f.picture != nil {
		extra++
	}
	out.Write(metadataBlock(0, extra == 0, info))
	if f.comments != nil {
		vc := flacvorbis.MetaDataBlockVorbisComment{Vendor: "fixture", Comments: f.comments}
		extra--
		out.Write(metadataBlock(4, extra == 0, vc.Marshal().Data))
	}
	if f.picture != nil {
		out.Write(metadataBlock(6, true, f.picture.Marshal()))
	}

	for frame, start := 0, 0; start < total; frame, start = frame+1, start+block {
		n := min(block, total-start)
		h := []byte{
			0xff, 0xf8,
			0x70 | rateCode,
			byte(f.channels-1)<<4 | 0x4<<1,
			byte(frame),
			byte((n - 1) >> 8), byte(n - 1),
		}
		h = append(h, crc8(h))
		for c := 0; c < f.channels; c++ {
			h = append(h, 0x02)
			for _, s := range f.samples[c][start : start+n] {
				h = binary.BigEndian.AppendUint16(h, uint16(s))
			}
		}
		h = binary.BigEndian.AppendUint16(h, crc16(h))
		out.Write(h)
	}
	return out.Bytes()
}

func (f flacFixture) write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, f.bytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
}

// tone returns channels of n samples where channel c holds a ramp scaled by
// c+1
func tone(channels, n int) [][]int16 {
	out := make([][]int16, channels)
	for c := range out {
		out[c] = make([]int16, n)
		for i := range out[c] {
			out[c][i] = int16((i%200 - 100) * 100 * (c + 1))
		}
	}
	return out
}
