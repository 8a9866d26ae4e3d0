// Package container finds the MPEG audio data inside a file by skipping the
// tag blocks around it.
package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const (
	// FormatMP3 is a bare MPEG audio stream, possibly wrapped in tags.
	FormatMP3 = "mp3"
	// FormatRIFF is MPEG audio in the data chunk of a RIFF/WAVE file.
	FormatRIFF = "riff"

	id3v2HeaderSize = 10
	id3v1Size       = 128
	apeFooterSize   = 32
	lyrics3v1Max    = 5100
	// WAVE_FORMAT_MPEGLAYER3
	wavFormatMP3 = 0x55
)

var (
	// ErrNoAudio is returned when the tags leave no room for audio data.
	ErrNoAudio = errors.New("no audio data between tags")
	// ErrNotMPEG is returned for RIFF files that do not carry MPEG audio.
	ErrNotMPEG = errors.New("RIFF file does not contain MPEG audio")
)

// ID3v2Header is the header of a leading ID3v2 tag.
type ID3v2Header struct {
	Version [2]byte `json:"version"`
	Flags   byte    `json:"flags"`
	// size of the tag including its header and footer
	Size   int64 `json:"size"`
	Footer bool  `json:"footer"`
}

// ID3v1Tag is the 128-byte tag at the end of a file.
type ID3v1Tag struct {
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
	Year    string `json:"year"`
	Comment string `json:"comment"`
	Track   int    `json:"track,omitempty"`
	Genre   byte   `json:"genre"`
}

// Bounds is where the audio data of a file lies.
type Bounds struct {
	Format       string       `json:"format"`
	Size         int64        `json:"size"`
	AVDataOffset int64        `json:"avdataoffset"`
	AVDataEnd    int64        `json:"avdataend"`
	ID3v2        *ID3v2Header `json:"id3v2,omitempty"`
	ID3v1        *ID3v1Tag    `json:"id3v1,omitempty"`
	APEv2Size    int64        `json:"apev2_size,omitempty"`
	Lyrics3Size  int64        `json:"lyrics3_size,omitempty"`
}

// ID3v2Length returns the end offset of the leading ID3v2 tag, 0 if none.
func (b *Bounds) ID3v2Length() int64 {
	if b.ID3v2 == nil {
		return 0
	}
	return b.ID3v2.Size
}

// Locate returns the bounds of the audio data in the size bytes of r.
func Locate(r io.ReaderAt, size int64) (*Bounds, error) {
	b := &Bounds{Format: FormatMP3, Size: size, AVDataEnd: size}

	magic := make([]byte, 12)
	if n, _ := r.ReadAt(magic, 0); n == len(magic) && string(magic[:4]) == "RIFF" && string(magic[8:]) == "WAVE" {
		return locateRIFF(r, size)
	}

	h, err := readID3v2Header(r, 0)
	if err != nil {
		return nil, err
	}
	if h != nil {
		b.ID3v2 = h
		b.AVDataOffset = h.Size
	}

	if err := b.stripTrailingTags(r); err != nil {
		return nil, err
	}
	if b.AVDataEnd <= b.AVDataOffset {
		return nil, errors.Wrapf(ErrNoAudio, "tags end at %d, trailing tags start at %d", b.AVDataOffset, b.AVDataEnd)
	}
	return b, nil
}

func syncSafeToInt(b []byte) int64 {
	return int64(b[0]&0x7F)<<21 |
		int64(b[1]&0x7F)<<14 |
		int64(b[2]&0x7F)<<7 |
		int64(b[3]&0x7F)
}

func readID3v2Header(r io.ReaderAt, off int64) (*ID3v2Header, error) {
	buf := make([]byte, id3v2HeaderSize)
	n, err := r.ReadAt(buf, off)
	if n < id3v2HeaderSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to read ID3v2 header")
		}
		return nil, nil
	}
	if string(buf[:3]) != "ID3" {
		return nil, nil
	}
	h := &ID3v2Header{
		Version: [2]byte{buf[3], buf[4]},
		Flags:   buf[5],
		Size:    id3v2HeaderSize + syncSafeToInt(buf[6:10]),
	}
	if h.Version[0] >= 4 && h.Flags&0x10 != 0 {
		h.Footer = true
		h.Size += id3v2HeaderSize
	}
	return h, nil
}

// stripTrailingTags moves AVDataEnd in front of ID3v1, Lyrics3 and APEv2
// tags. They may appear in any order, so it repeats until nothing changes.
func (b *Bounds) stripTrailingTags(r io.ReaderAt) error {
	for {
		before := b.AVDataEnd
		if b.ID3v1 == nil {
			tag, err := readID3v1(r, b.AVDataEnd)
			if err != nil {
				return err
			}
			if tag != nil {
				b.ID3v1 = tag
				b.AVDataEnd -= id3v1Size
			}
		}
		if n := lyrics3Size(r, b.AVDataEnd, b.AVDataOffset); n > 0 && b.Lyrics3Size == 0 {
			b.Lyrics3Size = n
			b.AVDataEnd -= n
		}
		if n := apev2Size(r, b.AVDataEnd, b.AVDataOffset); n > 0 && b.APEv2Size == 0 {
			b.APEv2Size = n
			b.AVDataEnd -= n
		}
		if b.AVDataEnd == before {
			return nil
		}
	}
}

func readID3v1(r io.ReaderAt, end int64) (*ID3v1Tag, error) {
	if end < id3v1Size {
		return nil, nil
	}
	buf := make([]byte, id3v1Size)
	if _, err := r.ReadAt(buf, end-id3v1Size); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to read ID3v1 tag")
	}
	if string(buf[:3]) != "TAG" {
		return nil, nil
	}
	tag := &ID3v1Tag{
		Title:   trimField(buf[3:33]),
		Artist:  trimField(buf[33:63]),
		Album:   trimField(buf[63:93]),
		Year:    trimField(buf[93:97]),
		Comment: trimField(buf[97:127]),
		Genre:   buf[127],
	}
	// ID3v1.1 keeps the track number in the last byte of the comment
	if buf[125] == 0 && buf[126] != 0 {
		tag.Comment = trimField(buf[97:125])
		tag.Track = int(buf[126])
	}
	return tag, nil
}

func trimField(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

// lyrics3Size returns the size of a Lyrics3 block ending at end, 0 if none.
func lyrics3Size(r io.ReaderAt, end, start int64) int64 {
	if end-start < 15 {
		return 0
	}
	tail := make([]byte, 15)
	if _, err := r.ReadAt(tail, end-15); err != nil {
		return 0
	}
	switch string(tail[6:]) {
	case "LYRICS200":
		// six decimal digits give the size without themselves and the end marker
		n, err := strconv.ParseInt(string(tail[:6]), 10, 64)
		if err != nil || n+15 > end-start {
			return 0
		}
		return n + 15
	case "LYRICSEND":
		search := int64(lyrics3v1Max)
		if search > end-start {
			search = end - start
		}
		buf := make([]byte, search)
		if _, err := r.ReadAt(buf, end-search); err != nil {
			return 0
		}
		i := bytes.LastIndex(buf, []byte("LYRICSBEGIN"))
		if i < 0 {
			return 0
		}
		return search - int64(i)
	}
	return 0
}

// apev2Size returns the size of an APEv2 tag whose footer ends at end,
// header included, 0 if none.
func apev2Size(r io.ReaderAt, end, start int64) int64 {
	if end-start < apeFooterSize {
		return 0
	}
	footer := make([]byte, apeFooterSize)
	if _, err := r.ReadAt(footer, end-apeFooterSize); err != nil {
		return 0
	}
	if string(footer[:8]) != "APETAGEX" {
		return 0
	}
	// size counts the items and the footer
	n := int64(binary.LittleEndian.Uint32(footer[12:]))
	if flags := binary.LittleEndian.Uint32(footer[20:]); flags&(1<<31) != 0 {
		n += apeFooterSize
	}
	if n < apeFooterSize || n > end-start {
		return 0
	}
	return n
}

func locateRIFF(r io.ReaderAt, size int64) (*Bounds, error) {
	sr := io.NewSectionReader(r, 0, size)
	d := wav.NewDecoder(sr)
	if err := d.FwdToPCM(); err != nil {
		return nil, errors.Wrap(err, "failed to find RIFF data chunk")
	}
	if d.WavAudioFormat != wavFormatMP3 {
		return nil, errors.Wrapf(ErrNotMPEG, "format tag 0x%04X", d.WavAudioFormat)
	}
	start, err := sr.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "failed to locate RIFF data chunk")
	}
	end := start + int64(d.PCMSize)
	if end > size {
		end = size
	}
	if end <= start {
		return nil, errors.Wrapf(ErrNoAudio, "empty data chunk at %d", start)
	}
	return &Bounds{Format: FormatRIFF, Size: size, AVDataOffset: start, AVDataEnd: end}, nil
}
