package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/lepinkainen/flac2opus/audio"
	"github.com/lepinkainen/flac2opus/ogg"
	"github.com/lepinkainen/flac2opus/ui"
)

// TagsCmd prints the tags of FLAC and Opus files, or copies them from one
// file to an Opus file
type TagsCmd struct {
	Files  []string `arg:"" name:"files" help:"FLAC or Opus files to read" type:"existingfile"`
	CopyTo string   `help:"Copy the tags of the input file into this Opus file" type:"existingfile"`
}

func (cmd *TagsCmd) Run() error {
	var copier audio.FileTags

	if cmd.CopyTo != "" {
		if len(cmd.Files) != 1 {
			return errors.New("--copy-to takes exactly one source file")
		}
		if !audio.IsOpusFile(cmd.CopyTo) {
			return fmt.Errorf("%s is not an Opus file", cmd.CopyTo)
		}
		tags, err := copier.ReadTags(cmd.Files[0])
		if err != nil {
			return fmt.Errorf("read tags: %w", err)
		}
		if err := copier.WriteTags(cmd.CopyTo, tags); err != nil {
			return fmt.Errorf("write tags: %w", err)
		}
		fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✅ Copied tags to %s", cmd.CopyTo)))
		return nil
	}

	for _, path := range cmd.Files {
		tags, err := copier.ReadTags(path)
		if err != nil {
			fmt.Printf("%s\n", ui.ErrorStyle.Render(fmt.Sprintf("❌ %s: %v", path, err)))
			continue
		}
		fmt.Println(ui.ProcessingStyle.Render(path))
		if audio.IsOpusFile(path) {
			if _, head, err := ogg.ReadTags(path); err == nil {
				printField("Vendor", head.Vendor)
			}
		}
		printTags(tags)
		fmt.Println()
	}
	return nil
}

func printField(name, value string) {
	if value != "" {
		fmt.Printf("   %-12s %s\n", name+":", value)
	}
}

func printTags(t *audio.Tags) {
	if t.IsEmpty() {
		fmt.Println(ui.MutedStyle.Render("   (no tags)"))
		return
	}
	number := func(n, total int) string {
		switch {
		case n == 0:
			return ""
		case total > 0:
			return fmt.Sprintf("%d/%d", n, total)
		}
		return strconv.Itoa(n)
	}
	printField("Title", t.Title)
	printField("Artist", t.Artist)
	printField("Album", t.Album)
	printField("Album artist", t.AlbumArtist)
	printField("Genre", t.Genre)
	printField("Date", t.Date)
	printField("Track", number(t.Track, t.TrackTotal))
	printField("Disc", number(t.Disc, t.DiscTotal))
	printField("Comment", t.Comment)
	for _, f := range t.Extra {
		printField(f.Key, f.Value)
	}
	if t.Cover != nil {
		printField("Cover", fmt.Sprintf("%s, %dx%d, %s", t.Cover.MIME, t.Cover.Width, t.Cover.Height, ui.FormatBytes(int64(len(t.Cover.Data)))))
	}
}
