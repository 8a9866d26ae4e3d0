package mp3parser

import (
	"io"

	"github.com/pkg/errors"
)

// BitReader reads big-endian bit fields from a byte slice.
type BitReader struct {
	data []byte
	pos  int // bit position
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (br *BitReader) ReadBits(n int) (uint32, error) {
	if n <= 0 || n > 32 {
		return 0, errors.Errorf("invalid bit count %d", n)
	}
	var val uint32
	for i := 0; i < n; i++ {
		bytePos := br.pos / 8
		if bytePos >= len(br.data) {
			return 0, io.ErrUnexpectedEOF
		}
		bitPos := 7 - (br.pos % 8)
		bit := (br.data[bytePos] >> bitPos) & 1
		val = (val << 1) | uint32(bit)
		br.pos++
	}
	return val, nil
}

// fields reads consecutive bit fields of the given widths.
func (br *BitReader) fields(widths ...int) ([]uint32, error) {
	out := make([]uint32, len(widths))
	for i, w := range widths {
		v, err := br.ReadBits(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
