package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"

	"github.com/lepinkainen/flac2opus/ogg"
)

// PictureFrontCover is the picture type for front cover art
const PictureFrontCover = 3

// Picture is an embedded cover image in FLAC PICTURE block layout
type Picture struct {
	Type        uint32
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	Depth       uint32
	Colors      uint32
	Data        []byte
}

// Marshal encodes the picture as a FLAC PICTURE block body
func (p *Picture) Marshal() []byte {
	block := &flacpicture.MetadataBlockPicture{
		PictureType:       flacpicture.PictureType(p.Type),
		MIME:              p.MIME,
		Description:       p.Description,
		Width:             p.Width,
		Height:            p.Height,
		ColorDepth:        p.Depth,
		IndexedColorCount: p.Colors,
		ImageData:         p.Data,
	}
	return block.Marshal().Data
}

// ParsePicture decodes a FLAC PICTURE block body
func ParsePicture(data []byte) (*Picture, error) {
	if err := checkPictureLengths(data); err != nil {
		return nil, err
	}
	block, err := flacpicture.ParseFromMetaDataBlock(goflac.MetaDataBlock{Type: goflac.Picture, Data: data})
	if err != nil {
		return nil, err
	}
	return &Picture{
		Type:        uint32(block.PictureType),
		MIME:        block.MIME,
		Description: block.Description,
		Width:       block.Width,
		Height:      block.Height,
		Depth:       block.ColorDepth,
		Colors:      block.IndexedColorCount,
		Data:        block.ImageData,
	}, nil
}

// checkPictureLengths rejects PICTURE bodies whose length fields point past
// the end of data, before the parser allocates for them
func checkPictureLengths(data []byte) error {
	off := 4 // picture type
	// MIME, then description followed by 16 bytes of dimensions
	for _, skip := range []int{0, 16} {
		if len(data) < off+4 {
			return io.ErrUnexpectedEOF
		}
		n := int64(binary.BigEndian.Uint32(data[off:]))
		if n > int64(len(data)-off-4) {
			return io.ErrUnexpectedEOF
		}
		off += 4 + int(n) + skip
	}
	if len(data) < off+4 || int64(binary.BigEndian.Uint32(data[off:])) > int64(len(data)-off-4) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// Field is a tag the Tags struct has no dedicated member for
type Field struct {
	Key   string
	Value string
}

// Tags is the metadata copied from a FLAC file to its Opus output
type Tags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Date        string
	Comment     string
	Track       int
	TrackTotal  int
	Disc        int
	DiscTotal   int
	Extra       []Field
	Cover       *Picture
}

// IsEmpty reports whether there is nothing to write
func (t *Tags) IsEmpty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == "" && t.AlbumArtist == "" &&
		t.Genre == "" && t.Date == "" && t.Comment == "" && t.Track == 0 && t.Disc == 0 &&
		len(t.Extra) == 0 && t.Cover == nil
}

// pictureKey carries cover art inside Vorbis comments
const pictureKey = "METADATA_BLOCK_PICTURE"

// Comments renders the tags as KEY=value Vorbis comments
func (t *Tags) Comments() []string {
	var out []string
	add := func(key, value string) {
		if value != "" {
			out = append(out, key+"="+value)
		}
	}
	add("TITLE", t.Title)
	add("ARTIST", t.Artist)
	add("ALBUM", t.Album)
	add("ALBUMARTIST", t.AlbumArtist)
	add("GENRE", t.Genre)
	add("DATE", t.Date)
	add("COMMENT", t.Comment)
	if t.Track > 0 {
		add("TRACKNUMBER", strconv.Itoa(t.Track))
	}
	if t.TrackTotal > 0 {
		add("TRACKTOTAL", strconv.Itoa(t.TrackTotal))
	}
	if t.Disc > 0 {
		add("DISCNUMBER", strconv.Itoa(t.Disc))
	}
	if t.DiscTotal > 0 {
		add("DISCTOTAL", strconv.Itoa(t.DiscTotal))
	}
	for _, f := range t.Extra {
		add(f.Key, f.Value)
	}
	if t.Cover != nil {
		add(pictureKey, base64.StdEncoding.EncodeToString(t.Cover.Marshal()))
	}
	return out
}

// ParseComments builds Tags from KEY=value Vorbis comments. Keys are
// matched case-insensitively. The first value of a known text key fills its
// field and later values are kept in Extra.
func ParseComments(comments []string) *Tags {
	t := &Tags{}
	var key string
	setString := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
			return
		}
		t.Extra = append(t.Extra, Field{Key: key, Value: v})
	}
	setNumber := func(num, total *int, v string) {
		// "3/12" carries both number and total
		n, rest, found := strings.Cut(v, "/")
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && *num == 0 {
			*num = i
		}
		if found {
			if i, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && *total == 0 {
				*total = i
			}
		}
	}
	for _, c := range comments {
		k, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(k)
		switch key {
		case "TITLE":
			setString(&t.Title, value)
		case "ARTIST":
			setString(&t.Artist, value)
		case "ALBUM":
			setString(&t.Album, value)
		case "ALBUMARTIST", "ALBUM ARTIST":
			setString(&t.AlbumArtist, value)
		case "GENRE":
			setString(&t.Genre, value)
		case "DATE", "YEAR":
			setString(&t.Date, value)
		case "COMMENT", "DESCRIPTION":
			setString(&t.Comment, value)
		case "TRACKNUMBER":
			setNumber(&t.Track, &t.TrackTotal, value)
		case "TRACKTOTAL", "TOTALTRACKS":
			setNumber(&t.TrackTotal, new(int), value)
		case "DISCNUMBER":
			setNumber(&t.Disc, &t.DiscTotal, value)
		case "DISCTOTAL", "TOTALDISCS":
			setNumber(&t.DiscTotal, new(int), value)
		case pictureKey:
			if t.Cover != nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				continue
			}
			if p, err := ParsePicture(raw); err == nil {
				t.Cover = p
			}
		default:
			t.Extra = append(t.Extra, Field{Key: key, Value: value})
		}
	}
	return t
}

// parseVorbisComment decodes a FLAC VORBIS_COMMENT block
func parseVorbisComment(block goflac.MetaDataBlock) ([]string, error) {
	if err := checkVorbisLengths(block.Data); err != nil {
		return nil, err
	}
	vc, err := flacvorbis.ParseFromMetaDataBlock(block)
	if err != nil {
		return nil, err
	}
	return vc.Comments, nil
}

// checkVorbisLengths walks the vendor string, the comment count and every
// comment length of a VORBIS_COMMENT body and rejects any that overruns it
func checkVorbisLengths(data []byte) error {
	off := 0
	field := func() (int64, bool) {
		if len(data)-off < 4 {
			return 0, false
		}
		n := int64(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		return n, true
	}
	skip := func(n int64) bool {
		if n > int64(len(data)-off) {
			return false
		}
		off += int(n)
		return true
	}

	vendor, ok := field()
	if !ok || !skip(vendor) {
		return flacvorbis.ErrorUnexpEof
	}
	count, ok := field()
	// each comment takes at least its 4 byte length
	if !ok || count*4 > int64(len(data)-off) {
		return flacvorbis.ErrorUnexpEof
	}
	for i := int64(0); i < count; i++ {
		n, ok := field()
		if !ok || !skip(n) {
			return flacvorbis.ErrorUnexpEof
		}
	}
	return nil
}

// TagCopier reads tags from a source file and writes them to a converted one
type TagCopier interface {
	ReadTags(path string) (*Tags, error)
	WriteTags(path string, tags *Tags) error
}

// FileTags reads tags from FLAC and Opus files and writes them to Opus
// files
type FileTags struct{}

// ReadTags dispatches on the file extension
func (FileTags) ReadTags(path string) (*Tags, error) {
	switch {
	case IsFlacFile(path):
		return ReadFlacTags(path)
	case IsOpusFile(path):
		_, tags, err := ogg.ReadTags(path)
		if err != nil {
			return nil, err
		}
		return ParseComments(tags.Comments), nil
	}
	return nil, fmt.Errorf("%s: unsupported file type", path)
}

// WriteTags replaces the comment header of the Opus file at path
func (FileTags) WriteTags(path string, tags *Tags) error {
	return ogg.ReplaceComments(path, tags.Comments())
}

// ReadFlacTags collects Vorbis comments and the front cover (or the first
// picture if there is no front cover) from a FLAC file
func ReadFlacTags(path string) (*Tags, error) {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return nil, err
	}

	var comments []string
	var pictures []*Picture
	for _, block := range f.Meta {
		switch block.Type {
		case goflac.VorbisComment:
			c, err := parseVorbisComment(*block)
			if err != nil {
				return nil, fmt.Errorf("vorbis comment: %w", err)
			}
			comments = append(comments, c...)
		case goflac.Picture:
			p, err := ParsePicture(block.Data)
			if err != nil {
				return nil, fmt.Errorf("picture: %w", err)
			}
			pictures = append(pictures, p)
		}
	}

	tags := ParseComments(comments)
	if tags.Cover == nil && len(pictures) > 0 {
		tags.Cover = pictures[0]
		for _, p := range pictures {
			if p.Type == PictureFrontCover {
				tags.Cover = p
				break
			}
		}
	}
	return tags, nil
}

// errNoTags is returned by copyTags when the source has nothing to copy
var errNoTags = errors.New("no tags")

func copyTags(c TagCopier, src, dst string) error {
	tags, err := c.ReadTags(src)
	if err != nil {
		return fmt.Errorf("read tags: %w", err)
	}
	if tags.IsEmpty() {
		return errNoTags
	}
	if err := c.WriteTags(dst, tags); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return nil
}
