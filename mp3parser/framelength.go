package mp3parser

import (
	"bytes"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// FrameLength returns the size in bytes of a frame, or 0 when it cannot be
// computed from the header alone (free format or unknown sample rate).
func FrameLength(bitrate int, v Version, l Layer, padding bool, sampleRate int) int {
	if bitrate <= 0 || sampleRate <= 0 {
		return 0
	}
	coef, slot := frameCoefficient(v, l)
	if coef == 0 {
		return 0
	}
	n := coef * bitrate / (sampleRate * slot) * slot
	if padding {
		n += slot
	}
	return n
}

// freeFormatBitrate inverts FrameLength for a measured free-format frame.
func freeFormatBitrate(frameLength int, h Header) float64 {
	coef, slot := frameCoefficient(h.Version, h.Layer)
	if coef == 0 || h.SampleRate == 0 {
		return 0
	}
	pad := 0
	if h.Padding {
		pad = slot
	}
	return float64(frameLength-pad) * float64(h.SampleRate) / float64(coef)
}

const freeFormatSearch = 32768

// freeFormat is the outcome of measuring a free-format frame length.
type freeFormat struct {
	frameLength int
	// set when only the first three header bytes repeat
	modeExtensionVaries bool
}

// FreeFormatFrameLength measures the length of the free-format frame at
// offset by finding where the next frame header starts. With deep set the
// measurement is repeated over the whole stream and averaged.
func FreeFormatFrameLength(src *Source, offset int64, deep bool) (int, error) {
	ff, err := measureFreeFormat(src, offset, deep)
	if err != nil {
		return 0, err
	}
	return ff.frameLength, nil
}

func measureFreeFormat(src *Source, offset int64, deep bool) (freeFormat, error) {
	var ff freeFormat
	buf, err := src.ReadAt(offset, freeFormatSearch)
	if err != nil {
		return ff, err
	}
	if len(buf) < HeaderSize {
		return ff, errors.Wrapf(ErrFreeFormat, "at offset %d", offset)
	}

	pattern1 := append([]byte(nil), buf[:4]...)
	pattern2 := append([]byte(nil), buf[:4]...)
	pattern2[2] ^= 0x02 // padding bit
	ff.frameLength = nextPattern(buf, pattern1[:4], pattern2[:4])
	if ff.frameLength <= 4 {
		ff.frameLength = nextPattern(buf, pattern1[:3], pattern2[:3])
		if ff.frameLength <= 4 {
			return ff, errors.Wrapf(ErrFreeFormat, "after offset %d", offset)
		}
		ff.modeExtensionVaries = true
		pattern1 = pattern1[:3]
		pattern2 = pattern2[:3]
	}
	if !deep {
		return ff, nil
	}

	var observed []float64
	next := offset + int64(ff.frameLength)
	for next < src.End()-6 {
		probe, err := src.ReadAt(next-1, 6)
		if err != nil || len(probe) < 6 {
			break
		}
		// expected position first, then one byte early, then one byte late
		matched := false
		for _, delta := range []int{1, 0, 2} {
			if bytes.HasPrefix(probe[delta:], pattern1) || bytes.HasPrefix(probe[delta:], pattern2) {
				observed = append(observed, float64(ff.frameLength+delta-1))
				next += int64(delta - 1)
				matched = true
				break
			}
		}
		if !matched {
			return ff, errors.Wrapf(ErrFreeFormat, "did not find expected free-format sync pattern at offset %d", next)
		}
		next += int64(ff.frameLength)
	}
	if len(observed) == 0 {
		return ff, nil
	}
	mean, err := stats.Mean(observed)
	if err != nil {
		return ff, errors.Wrap(err, "failed to average free-format frame lengths")
	}
	rounded, err := stats.Round(mean, 0)
	if err != nil {
		return ff, errors.Wrap(err, "failed to round free-format frame length")
	}
	ff.frameLength = int(rounded)
	return ff, nil
}

// nextPattern returns the position of the earliest match of either pattern
// past the first header, or -1.
func nextPattern(buf []byte, pattern1, pattern2 []byte) int {
	if len(buf) <= 4 {
		return -1
	}
	best := -1
	for _, p := range [][]byte{pattern1, pattern2} {
		if i := bytes.Index(buf[4:], p); i >= 0 {
			if pos := i + 4; best < 0 || pos < best {
				best = pos
			}
		}
	}
	return best
}
