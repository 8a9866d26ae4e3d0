package mp3parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Analyzer analyzes MPEG audio streams. It holds no per-stream state and may
// be shared between goroutines.
type Analyzer struct {
	logger *zap.Logger
	opts   Options
}

// NewAnalyzer returns an Analyzer. A nil logger discards log output.
func NewAnalyzer(logger *zap.Logger, opts Options) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger, opts: opts.withDefaults()}
}

// Analyze analyzes the MPEG audio stored in [avDataOffset, avDataEnd) of src
// with the default options.
func Analyze(src io.ReaderAt, avDataOffset, avDataEnd int64) *Result {
	return NewAnalyzer(nil, Options{}).Analyze(src, avDataOffset, avDataEnd)
}

// Analyze finds the first frame of the audio in [avDataOffset, avDataEnd) of
// src and describes the stream. Problems are reported in the Warnings and
// Errors of the result; Audio and MPEG are nil when no stream was found.
func (a *Analyzer) Analyze(src io.ReaderAt, avDataOffset, avDataEnd int64) *Result {
	st := &analysis{
		src:    NewSource(src, avDataOffset, avDataEnd),
		opts:   a.opts,
		logger: a.logger,
	}
	res := &Result{AVDataOffset: avDataOffset, AVDataEnd: avDataEnd}
	defer func() {
		res.Warnings = append([]Diagnostic{}, st.diags.warnings...)
		res.Errors = append([]Diagnostic{}, st.diags.errors...)
	}()

	f, ok := st.findSync()
	if !ok {
		a.logger.Debug("no MPEG audio stream",
			zap.Error(errors.Wrapf(ErrSyncNotFound, "in [%d, %d)", avDataOffset, avDataEnd)))
		return res
	}
	st.diags.merge(f.diags)

	mpeg := &MPEGInfo{
		Raw:            f.raw,
		Header:         f.header,
		CRC:            f.crc,
		FrameLength:    f.frameLength,
		Bitrate:        f.bitrate,
		BitrateMode:    f.mode,
		VBRMethod:      f.vbr.Method(),
		VBR:            f.vbr,
		VBRBitrateKbps: f.vbrKbps,
	}
	audio := &AudioInfo{
		DataFormat:    fmt.Sprintf("mp%d", f.header.Layer.Number()),
		Channels:      f.header.Channels(),
		ChannelMode:   f.header.ChannelMode,
		SampleRate:    f.header.SampleRate,
		BitsPerSample: 16,
		Bitrate:       f.bitrate,
		BitrateMode:   f.mode,
		Codec:         f.codec,
		Encoder:       f.encoder,
	}
	res.AVDataOffset = f.offset
	res.AVDataEnd = f.avDataEnd

	if st.wantHistogram(f) {
		hist, diags, err := st.histogram(f)
		st.diags.merge(diags)
		if err != nil {
			a.logger.Debug("histogram failed", zap.Error(err))
			return res
		}
		mpeg.Histogram = hist
		mpeg.Bitrate = hist.Bitrate()
		mpeg.BitrateMode = hist.Mode()
		audio.Bitrate = mpeg.Bitrate
		audio.BitrateMode = mpeg.BitrateMode
	}

	lameVersion := st.checkLeadingGarbage(f, audio, mpeg)
	if f.vbr != nil && f.vbr.Xing != nil && f.vbr.Xing.LAME != nil {
		l := f.vbr.Xing.LAME
		audio.Codec = "LAME"
		if v := trimVersion(l.LongVersion); v != "" {
			audio.Encoder = v
		} else if v := trimVersion(l.ShortVersion); v != "" {
			audio.Encoder = v
		}
		res.ReplayGain = replayGain(l)
	}
	if lameVersion == "" {
		lameVersion = audio.Encoder
	}
	if longer := st.longerLAMEVersion(lameVersion, res.AVDataEnd); len(longer) > len(audio.Encoder) {
		audio.Encoder = longer
	}
	audio.Encoder = strings.TrimRight(audio.Encoder, "\x00 ")

	res.FileFormat = audio.DataFormat
	if a.opts.FileFormat != "" && a.opts.FileFormat != "mp3" {
		res.FileFormat = a.opts.FileFormat
	}
	res.MIMEType = "audio/mpeg"
	res.Audio = audio
	res.MPEG = mpeg
	if audio.Bitrate > 0 {
		res.PlaytimeSeconds = float64(res.AVDataEnd-res.AVDataOffset) * 8 / audio.Bitrate
	}
	audio.EncoderOptions = GuessEncoderOptions(res)
	return res
}

func (a *analysis) wantHistogram(f *frame) bool {
	switch a.opts.Histogram {
	case HistogramAlways:
		return true
	case HistogramNever:
		return false
	}
	// free-format frames carry no length the scan could step by
	return f.vbr == nil && !f.header.IsFree()
}

// checkLeadingGarbage warns about data between the start of the audio data
// (or the end of the ID3v2 tag, when that is later) and the first frame.
// Some LAME DLLs write one stray frame there in CBR mode; for those
// "LAME3." is returned as the version to look for.
func (a *analysis) checkLeadingGarbage(f *frame, audio *AudioInfo, mpeg *MPEGInfo) string {
	base := max(a.src.Start(), a.opts.ID3v2Length)
	if a.opts.FileFormat == "riff" || f.offset <= base {
		return ""
	}
	garbage := f.offset - base
	var msg string
	switch {
	case a.opts.ID3v2Length > 0:
		msg = fmt.Sprintf("Unknown data before synch (ID3v2 header ends at %d, then %d bytes garbage, synch detected at %d)",
			a.opts.ID3v2Length, garbage, f.offset)
	case base > 0:
		msg = fmt.Sprintf("Unknown data before synch (audio data starts at %d, then %d bytes garbage, synch detected at %d)",
			base, garbage, f.offset)
	default:
		msg = fmt.Sprintf("Unknown data before synch (should be at beginning of file, synch detected at %d)", f.offset)
	}
	version := ""
	if audio.BitrateMode == BitrateModeCBR && garbage == int64(mpeg.FrameLength) {
		if a.opts.ID3v2Length > 0 {
			msg += ". This is a known problem with some versions of LAME (3.90-3.92) DLL in CBR mode."
		} else {
			msg += ". This is a known problem with some versions of LAME (3.90 - 3.92) DLL in CBR mode."
		}
		audio.Codec = "LAME"
		version = "LAME3."
	}
	a.diags.warn(CodeUnknownData, f.offset, "%s", msg)
	return version
}

// the last frame of a stream is at most this long
const lastFrameMax = 1441

const lameVersionChars = "LAME0123456789., (abcdefghijklmnopqrstuvwxyzJFSOND)"

// longerLAMEVersion looks in the padding of the last frame for the full
// form of a LAME version string such as "LAME3.88 (beta)". It returns ""
// when the version is already complete or nothing is found.
func (a *analysis) longerLAMEVersion(version string, end int64) string {
	if !strings.HasPrefix(version, "LAME3.") {
		return ""
	}
	switch last := version[len(version)-1]; {
	case last >= '0' && last <= '9', last == ')':
		return ""
	case last == 'a', last == 'b':
		// "LAME3.94a" is written out as "LAME3.94 (alpha)"
		version = version[:len(version)-1]
	}

	off := end - lastFrameMax
	if off < a.src.Start() {
		off = a.src.Start()
	}
	data, err := a.src.ReadAt(off, int(end-off))
	if err != nil {
		return ""
	}
	i := bytes.Index(data, []byte(version))
	if i < 0 {
		return ""
	}
	tail := data[i:]
	n := 0
	for n < len(tail) && strings.IndexByte(lameVersionChars, tail[n]) >= 0 {
		n++
	}
	return string(tail[:n])
}

func replayGain(l *LAMEInfo) *ReplayGain {
	if l.TrackGain == nil && l.AlbumGain == nil {
		return nil
	}
	rg := &ReplayGain{}
	if g := l.TrackGain; g != nil {
		rg.Track = &GainRecord{Peak: l.PeakAmplitude, Originator: g.Originator, Adjustment: g.GainDB}
	}
	if g := l.AlbumGain; g != nil {
		rg.Album = &GainRecord{Originator: g.Originator, Adjustment: g.GainDB}
	}
	return rg
}
