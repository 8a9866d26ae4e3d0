package mp3parser

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// frame is a decoded frame together with what its tags say about the stream.
type frame struct {
	offset      int64
	raw         RawHeader
	header      Header
	crc         *uint16
	frameLength int
	bitrate     float64
	mode        BitrateMode
	vbr         *VBRInfo
	vbrKbps     float64
	codec       string
	encoder     string
	avDataEnd   int64
	diags       diagnostics
}

// analysis is the state of one Analyze call.
type analysis struct {
	src    *Source
	opts   Options
	logger *zap.Logger
	diags  diagnostics
}

// inspect decodes the frame at off. With lookAhead set the frames that
// follow must decode too; forceCBR additionally requires them to share the
// bitrate of this one. The frame is returned even when rejected so its
// diagnostics can be reported.
func (a *analysis) inspect(off int64, lookAhead, forceCBR bool) (*frame, bool) {
	f := &frame{offset: off, avDataEnd: a.src.End()}
	if off >= a.src.End() {
		f.diags.fail(CodeSyncNotFound, off, "end of file encounter looking for MPEG synch")
		return f, false
	}
	buf, err := a.src.ReadAt(off, vbrProbeSize)
	if err != nil {
		f.diags.failErr(CodeInvalidHeader, off, err)
		return f, false
	}
	raw, h, v, err := ParseHeader(buf)
	if err != nil {
		f.diags.fail(CodeInvalidHeader, off, "Invalid MPEG audio header at offset %d", off)
		return f, false
	}
	f.raw, f.header = raw, h
	if h.Protected && len(buf) >= HeaderSize+2 {
		crc := binary.BigEndian.Uint16(buf[HeaderSize:])
		f.crc = &crc
	}
	if v.Bitrate15 {
		f.diags.warn(CodeBitrate15, off, "Invalid bitrate index (15), this is a known bug in free-format MP3s encoded by LAME v3.90 - 3.93.1")
	}
	// a free-format frame anywhere but the start is more likely corrupt data
	if h.IsFree() && off == a.src.Start() {
		lookAhead = false
	}
	if err := h.CheckLayerII(); err != nil {
		f.diags.failErr(CodeInvalidHeader, off, err)
		return f, false
	}

	f.frameLength = h.FrameLength
	f.bitrate = float64(h.Bitrate)
	next := off + 1
	if !h.IsFree() {
		if f.frameLength <= 0 {
			f.diags.failErr(CodeInvalidHeader, off, errors.Wrapf(ErrBadFrameLength, "frame at offset %d", off))
			return f, false
		}
		next = off + int64(f.frameLength)
	}

	var vd diagnostics
	f.vbr, vd = ExtractVBR(a.src, off, buf, h)
	f.diags.merge(vd)
	var expectedBytes int64
	switch {
	case f.vbr == nil:
		f.mode = BitrateModeCBR
		if lookAhead {
			f.mode = BitrateModeVBR
			if err := a.lookAhead(f, next, true); err == nil {
				lookAhead = false
				f.mode = BitrateModeCBR
			} else {
				f.diags.warn(CodeNoVBRHeader, off, "VBR file with no VBR header. Bitrate values calculated from actual frame bitrates.")
			}
		}
	case f.vbr.VBRI != nil:
		f.mode = BitrateModeVBR
		f.codec = "Fraunhofer"
		expectedBytes = int64(f.vbr.VBRI.Bytes)
	default:
		x := f.vbr.Xing
		f.mode = BitrateModeVBR
		if x.Flags.Frames && x.Flags.Bytes && x.Frames > 0 && x.Bytes > 0 {
			f.frameLength = int(x.Bytes / x.Frames)
		}
		if l := x.LAME; l.Full() {
			f.mode = l.Mode()
			expectedBytes = int64(l.AudioBytes)
			if expectedBytes == 0 {
				expectedBytes = int64(x.Bytes)
			}
			if l.VBRMethodRaw == 1 {
				f.mode = BitrateModeCBR
				f.bitrate = float64(ClosestStandardBitrate(float64(h.Bitrate)))
			}
		}
	}

	if expectedBytes > 0 {
		a.checkAudioBytes(f, expectedBytes)
	}

	if h.IsFree() && f.bitrate == 0 && off == a.src.Start() && f.vbr.Frames() == 0 {
		ff, err := measureFreeFormat(a.src, off, true)
		if err != nil {
			f.diags.failErr(CodeFreeFormat, off, err)
			f.diags.fail(CodeFreeFormat, off, "Error calculating frame length of free-format MP3 without Xing/LAME header")
		} else {
			if ff.modeExtensionVaries {
				f.diags.warn(CodeModeExtension, off, "ModeExtension varies between first frame and other frames (known free-format issue in LAME 3.88)")
				f.codec = "LAME"
				f.encoder = "LAME3.88"
			}
			f.frameLength = ff.frameLength
			f.bitrate = freeFormatBitrate(ff.frameLength, h)
		}
	}

	if frames := f.vbr.Frames(); frames > 1 && (f.mode == BitrateModeVBR || f.mode == BitrateModeABR) {
		// the tag frame itself carries no audio
		perFrame := float64(f.vbr.Bytes()) / float64(frames-1)
		f.vbrKbps = perFrame * 8 * float64(h.SampleRate) / float64(h.SamplesPerFrame()) / 1000
		if f.vbrKbps > 0 {
			f.bitrate = f.vbrKbps * 1000
		}
	}

	if lookAhead {
		if err := a.lookAhead(f, next, forceCBR); err != nil {
			f.diags.failErr(CodeLookAhead, off, err)
			return f, false
		}
	}
	return f, true
}

// lookAhead checks that ValidCheckFrames frames starting at next decode.
// Reaching the end of the data counts as success.
func (a *analysis) lookAhead(f *frame, next int64, forceCBR bool) error {
	for i := 0; i < a.opts.ValidCheckFrames; i++ {
		if next+HeaderSize >= a.src.End() {
			return nil
		}
		b, err := a.src.ReadAt(next, HeaderSize)
		if err != nil {
			return errors.Wrapf(err, "frame at offset %d", f.offset)
		}
		_, h, _, err := ParseHeader(b)
		if err == nil {
			err = h.CheckLayerII()
		}
		if err != nil {
			return errors.Errorf("Frame at offset (%d) is valid, but the next one at (%d) is not.", f.offset, next)
		}
		if forceCBR && h.Bitrate != f.header.Bitrate {
			return errors.Errorf("frame at offset (%d) is %d bps, not %d bps", next, h.Bitrate, f.header.Bitrate)
		}
		if h.FrameLength <= 0 {
			return errors.Wrapf(ErrBadFrameLength, "Frame at offset (%d) has an invalid frame length", next)
		}
		next += int64(h.FrameLength)
	}
	return nil
}

// checkAudioBytes compares the audio size declared by a VBR tag with the
// data actually present after the frame.
func (a *analysis) checkAudioBytes(f *frame, expected int64) {
	actual := f.avDataEnd - f.offset
	switch {
	case expected > actual:
		short := expected - actual
		switch {
		case a.opts.FileFormat == "riff":
			// audio in RIFF is split into chunks, so data always looks missing
		case short == 1:
			f.diags.warn(CodeLastByteTruncated, f.offset, "Last byte of data truncated (this is a known bug in Meracl ID3 Tag Writer before v1.3.5)")
		default:
			f.diags.warn(CodeTruncated, f.offset, "Probable truncated file: expecting %d bytes of audio data, only found %d (short by %d bytes)", expected, actual, short)
		}
	case actual-expected == 1:
		f.avDataEnd--
	case actual > expected:
		f.diags.warn(CodeTooMuchData, f.offset, "Too much data in file: expecting %d bytes of audio data, found %d (%d bytes too many)", expected, actual, actual-expected)
	}
}
