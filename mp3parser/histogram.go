package mp3parser

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const resyncSearch = 4096

// histogram walks the frames after f and tallies their bitrates, channel
// modes and versions. Long streams are sampled in segments and the counts
// extrapolated.
func (a *analysis) histogram(f *frame) (*Histogram, diagnostics, error) {
	var diags diagnostics
	hist := &Histogram{
		BitrateDistribution: map[int]int{},
		StereoDistribution: map[string]int{
			ChannelStereo.String(): 0, ChannelJointStereo.String(): 0,
			ChannelDualChannel.String(): 0, ChannelMono.String(): 0,
		},
		VersionDistribution: map[string]int{
			Version1.String(): 0, Version2.String(): 0, Version25.String(): 0,
		},
	}
	for _, br := range Bitrates(f.header.Version, f.header.Layer) {
		hist.BitrateDistribution[br] = 0
	}

	start, end := f.offset, f.avDataEnd
	span := float64(end - start)
	segments := a.opts.HistogramSegments
	perSegment := int(math.Ceil(float64(a.opts.MaxHistogramFrames) / float64(segments)))
	scanned := 0
	pos := start
	for seg := 0; seg < segments; seg++ {
		if pos >= end {
			break
		}
		segStart := start + int64(math.Round(float64(seg)*span/float64(segments)))
		if pos > segStart {
			segStart = pos
		}
		if seg > 0 {
			segStart = a.resync(segStart)
		}
		pos = segStart
		inSegment := 0
		for {
			h, ok := a.headerAt(pos)
			if !ok {
				break
			}
			if h.FrameLength <= 0 {
				hist.SyncErrors++
				pos++
			} else {
				hist.BitrateDistribution[h.Bitrate]++
				hist.StereoDistribution[h.ChannelMode.String()]++
				hist.VersionDistribution[h.Version.String()]++
				pos += int64(h.FrameLength)
			}
			scanned++
			inSegment++
			if inSegment < perSegment {
				continue
			}
			segPct := float64(pos-segStart) / span
			if seg == 0 && segPct*float64(segments) >= 1 {
				// few enough frames to count them all in one pass
				segments = 1
				perSegment = a.opts.MaxHistogramFrames
				continue
			}
			hist.PctScanned += segPct
			break
		}
	}

	if hist.PctScanned > 0 {
		diags.warn(CodeHistogramPartial, start,
			"too many MPEG audio frames to scan, only scanned %d frames in %d segments (%.1f%% of file) and extrapolated distribution, playtime and bitrate may be incorrect.",
			scanned, segments, hist.PctScanned*100)
		hist.BitrateDistribution = extrapolate(hist.BitrateDistribution, hist.PctScanned)
		hist.StereoDistribution = extrapolate(hist.StereoDistribution, hist.PctScanned)
		hist.VersionDistribution = extrapolate(hist.VersionDistribution, hist.PctScanned)
	}
	if hist.SyncErrors > 0 {
		diags.warn(CodeSyncErrors, start, "Found %d synch errors in histogram analysis", hist.SyncErrors)
	}

	hist.FrameCount = lo.Sum(lo.Values(hist.BitrateDistribution))
	if hist.FrameCount == 0 {
		diags.fail(CodeCorruptStream, start, "Corrupt MP3 file: framecounter == zero")
		return nil, diags, errors.Wrapf(ErrCorruptStream, "no frames counted after offset %d", start)
	}
	return hist, diags, nil
}

// Bitrate returns the average bitrate of the counted frames in bps.
// Free-format frames are tallied as sync errors and never counted.
func (h *Histogram) Bitrate() float64 {
	if h.FrameCount == 0 {
		return 0
	}
	total := 0
	for br, n := range h.BitrateDistribution {
		total += br * n
	}
	return float64(total) / float64(h.FrameCount)
}

// Mode returns vbr when more than one bitrate was seen and cbr otherwise.
func (h *Histogram) Mode() BitrateMode {
	distinct := lo.CountBy(lo.Values(h.BitrateDistribution), func(n int) bool { return n > 0 })
	if distinct > 1 {
		return BitrateModeVBR
	}
	return BitrateModeCBR
}

func extrapolate[K comparable](m map[K]int, pct float64) map[K]int {
	return lo.MapValues(m, func(n int, _ K) int {
		return int(math.Round(float64(n) / pct))
	})
}

// headerAt decodes the header at off without looking at the frame body.
func (a *analysis) headerAt(off int64) (Header, bool) {
	b, err := a.src.ReadAt(off, HeaderSize)
	if err != nil {
		return Header{}, false
	}
	_, h, _, err := ParseHeader(b)
	if err != nil || h.CheckLayerII() != nil {
		return Header{}, false
	}
	return h, true
}

// resync finds the first frame within resyncSearch bytes of off whose
// successor also decodes. off is returned unchanged when there is none.
func (a *analysis) resync(off int64) int64 {
	buf, err := a.src.ReadAt(off, resyncSearch)
	if err != nil {
		return off
	}
	for j := 0; j < len(buf)-HeaderSize; j++ {
		if !isSyncCandidate(buf[j], buf[j+1]) {
			continue
		}
		h, ok := a.headerAt(off + int64(j))
		if !ok || h.FrameLength <= 0 {
			continue
		}
		if _, ok := a.headerAt(off + int64(j) + int64(h.FrameLength)); ok {
			return off + int64(j)
		}
	}
	return off
}
