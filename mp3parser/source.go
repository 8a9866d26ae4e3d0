package mp3parser

import (
	"io"

	"github.com/pkg/errors"
)

// Source is a bounded view of the audio data in a larger byte source.
// Reads never return bytes at or past End.
type Source struct {
	r     io.ReaderAt
	start int64
	end   int64
}

// NewSource bounds r to [start, end).
func NewSource(r io.ReaderAt, start, end int64) *Source {
	return &Source{r: r, start: start, end: end}
}

// Start returns the first byte offset of the audio data.
func (s *Source) Start() int64 { return s.start }

// End returns the offset one past the last byte of audio data.
func (s *Source) End() int64 { return s.end }

// Len returns the size of the audio data.
func (s *Source) Len() int64 {
	if s.end < s.start {
		return 0
	}
	return s.end - s.start
}

// ReadAt returns up to n bytes at off, fewer when the data ends first.
func (s *Source) ReadAt(off int64, n int) ([]byte, error) {
	if off < 0 || off >= s.end {
		return nil, errors.Wrapf(ErrOutOfBounds, "offset %d, end %d", off, s.end)
	}
	if rem := s.end - off; int64(n) > rem {
		n = int(rem)
	}
	buf := make([]byte, n)
	read, err := s.r.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "failed to read %d bytes at %d", n, off)
	}
	return buf[:read], nil
}

const (
	windowChunk = 8 << 10
)

// window buffers the bytes after base, growing geometrically up to limit.
type window struct {
	src   *Source
	base  int64
	buf   []byte
	limit int
	eof   bool
}

func newWindow(src *Source, base int64, limit int) *window {
	return &window{src: src, base: base, limit: limit}
}

// at returns the byte i positions after base, loading more data as needed.
func (w *window) at(i int) (byte, bool) {
	for i >= len(w.buf) {
		if !w.grow() {
			return 0, false
		}
	}
	return w.buf[i], true
}

func (w *window) grow() bool {
	if w.eof || len(w.buf) >= w.limit {
		return false
	}
	want := len(w.buf) * 2
	if want < windowChunk {
		want = windowChunk
	}
	if want > w.limit {
		want = w.limit
	}
	more, err := w.src.ReadAt(w.base+int64(len(w.buf)), want-len(w.buf))
	if err != nil || len(more) == 0 {
		w.eof = true
		return false
	}
	if len(more) < want-len(w.buf) {
		w.eof = true
	}
	w.buf = append(w.buf, more...)
	return true
}
