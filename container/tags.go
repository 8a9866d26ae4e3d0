package container

import (
	"io"

	"github.com/bogem/id3v2"
	"github.com/pkg/errors"
)

// Tags is the text metadata of a file.
type Tags struct {
	// "ID3v2" or "ID3v1"
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Year   string `json:"year,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// ReadTags returns the text of the ID3v2 tag described by b, falling back
// to its ID3v1 tag. It returns nil when the file has neither.
func ReadTags(r io.ReaderAt, b *Bounds) (*Tags, error) {
	if b.ID3v2 != nil {
		tag, err := id3v2.ParseReader(io.NewSectionReader(r, 0, b.ID3v2.Size), id3v2.Options{Parse: true})
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse ID3v2 tag")
		}
		t := &Tags{
			Source: "ID3v2",
			Title:  tag.Title(),
			Artist: tag.Artist(),
			Album:  tag.Album(),
			Year:   tag.Year(),
			Genre:  tag.Genre(),
		}
		if *t != (Tags{Source: "ID3v2"}) || b.ID3v1 == nil {
			return t, nil
		}
	}
	if v1 := b.ID3v1; v1 != nil {
		return &Tags{
			Source: "ID3v1",
			Title:  v1.Title,
			Artist: v1.Artist,
			Album:  v1.Album,
			Year:   v1.Year,
		}, nil
	}
	return nil, nil
}
