package mp3parser

import (
	"math"

	"go.uber.org/zap"
)

// bitrateTolerance is how far, in bps, the bitrate of the stream may be from
// the bitrate a VBR tag promises before the tag frame is treated as detached
// from the stream that follows it.
const bitrateTolerance = 1

// isSyncCandidate reports whether b0 b1 can start a frame header.
func isSyncCandidate(b0, b1 byte) bool {
	return b0 == 0xFF && b1 > 0xE0
}

// findSync returns the first frame of a valid frame sequence at or after
// the start of the data.
func (a *analysis) findSync() (*frame, bool) {
	start := a.src.Start()
	size := a.src.End() - start
	if limit := int64(a.opts.SyncWindow); size > limit {
		size = limit
	}
	if size <= 0 || start < 0 {
		a.diags.fail(CodeSyncNotFound, start, "Invalid sync seek buffer size at offset %d", start)
		return nil, false
	}
	if a.src.Len() <= HeaderSize {
		a.diags.fail(CodeSyncNotFound, start, "could not find valid MPEG synch before end of file")
		return nil, false
	}

	w := newWindow(a.src, start, int(size))
	var first *frame
	for i := 0; ; i++ {
		b0, ok0 := w.at(i)
		b1, ok1 := w.at(i + 1)
		if !ok0 || !ok1 {
			if start+int64(i)+1 >= a.src.End() {
				a.diags.fail(CodeSyncNotFound, start, "could not find valid MPEG synch before end of file")
			} else {
				a.diags.fail(CodeSyncNotFound, start, "Could not find valid MPEG audio synch within the first %dkB", int(math.Round(float64(size)/1024)))
			}
			return nil, false
		}
		if !isSyncCandidate(b0, b1) {
			continue
		}

		off := start + int64(i)
		if first == nil {
			// kept in case it is a VBR tag frame followed by garbage
			if f, ok := a.inspect(off, false, false); ok {
				first = f
			}
		}
		f, ok := a.inspect(off, true, false)
		if !ok {
			a.logger.Debug("rejected sync candidate", zap.Int64("offset", off), zap.Any("errors", f.diags.errors))
			continue
		}
		if first != nil && first.mode == BitrateModeVBR && math.Abs(f.bitrate-first.bitrate) > bitrateTolerance {
			f = a.reconcileFirstFrame(first, f)
		}
		a.logger.Debug("found sync", zap.Int64("offset", f.offset), zap.String("mode", string(f.mode)))
		return f, true
	}
}

// reconcileFirstFrame handles a VBR tag frame followed by garbage before the
// stream at found. A constant bitrate stream at found wins; otherwise the
// tag frame is used as is.
func (a *analysis) reconcileFirstFrame(first, found *frame) *frame {
	// the tag frame length is bytes/frames when the tag declares both
	garbageStart := first.offset + int64(first.frameLength)
	if first.frameLength <= 0 {
		garbageStart = first.offset + int64(first.header.FrameLength)
	}
	garbageEnd := found.offset
	garbage := garbageEnd - garbageStart

	if cbr, ok := a.inspect(garbageEnd, true, true); ok {
		cbr.diags.warn(CodeVBRHeaderGarbage, garbageEnd,
			"apparently-valid VBR header not used because could not find %d consecutive MPEG-audio frames immediately after VBR header (garbage data for %d bytes between %d and %d), but did find valid CBR stream starting at %d",
			a.opts.ValidCheckFrames, garbage, garbageStart, garbageEnd, garbageEnd)
		return cbr
	}
	first.diags.warn(CodeVBRHeaderGarbage, first.offset,
		"using data from VBR header even though could not find %d consecutive MPEG-audio frames immediately after VBR header (garbage data for %d bytes between %d and %d)",
		a.opts.ValidCheckFrames, garbage, garbageStart, garbageEnd)
	return first
}
