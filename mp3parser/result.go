package mp3parser

import (
	"go.uber.org/multierr"
)

// BitrateMode is how the bitrate of a stream varies.
type BitrateMode string

const (
	BitrateModeCBR     BitrateMode = "cbr"
	BitrateModeVBR     BitrateMode = "vbr"
	BitrateModeABR     BitrateMode = "abr"
	BitrateModeUnknown BitrateMode = "unknown"
)

// Result is the outcome of analyzing one MPEG audio stream. Audio and MPEG
// are nil when analysis failed before a frame was accepted.
type Result struct {
	FileFormat      string       `json:"fileformat,omitempty"`
	MIMEType        string       `json:"mime_type,omitempty"`
	AVDataOffset    int64        `json:"avdataoffset"`
	AVDataEnd       int64        `json:"avdataend"`
	Audio           *AudioInfo   `json:"audio,omitempty"`
	MPEG            *MPEGInfo    `json:"mpeg,omitempty"`
	ReplayGain      *ReplayGain  `json:"replay_gain,omitempty"`
	PlaytimeSeconds float64      `json:"playtime_seconds,omitempty"`
	Warnings        []Diagnostic `json:"warnings"`
	Errors          []Diagnostic `json:"errors"`
}

// OK reports whether the analysis produced no errors.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Err combines the errors of the analysis into one error, nil when there are none.
func (r *Result) Err() error {
	var err error
	for _, d := range r.Errors {
		err = multierr.Append(err, d)
	}
	return err
}

// AudioInfo is the format independent summary of the stream.
type AudioInfo struct {
	DataFormat     string      `json:"dataformat"`
	Channels       int         `json:"channels"`
	ChannelMode    ChannelMode `json:"channelmode"`
	SampleRate     int         `json:"sample_rate"`
	BitsPerSample  int         `json:"bits_per_sample"`
	Bitrate        float64     `json:"bitrate"`
	BitrateMode    BitrateMode `json:"bitrate_mode"`
	Codec          string      `json:"codec,omitempty"`
	Encoder        string      `json:"encoder,omitempty"`
	EncoderOptions string      `json:"encoder_options,omitempty"`
	Lossless       bool        `json:"lossless"`
}

// MPEGInfo holds the MPEG specific details of the first accepted frame.
type MPEGInfo struct {
	Raw            RawHeader   `json:"raw"`
	Header         Header      `json:"header"`
	CRC            *uint16     `json:"crc,omitempty"`
	FrameLength    int         `json:"framelength"`
	Bitrate        float64     `json:"bitrate"`
	BitrateMode    BitrateMode `json:"bitrate_mode"`
	VBRMethod      string      `json:"VBR_method,omitempty"`
	VBR            *VBRInfo    `json:"vbr,omitempty"`
	VBRBitrateKbps float64     `json:"VBR_bitrate,omitempty"`
	Histogram      *Histogram  `json:"histogram,omitempty"`
}

// ReplayGain is the replay gain found in a LAME tag.
type ReplayGain struct {
	Track *GainRecord `json:"track,omitempty"`
	Album *GainRecord `json:"album,omitempty"`
}

// GainRecord is one replay gain value.
type GainRecord struct {
	Peak       float64 `json:"peak,omitempty"`
	Originator string  `json:"originator"`
	Adjustment float64 `json:"adjustment"`
}

// Histogram is the per-frame tally of a histogram scan.
type Histogram struct {
	FrameCount          int            `json:"frame_count"`
	BitrateDistribution map[int]int    `json:"bitrate_distribution"`
	StereoDistribution  map[string]int `json:"stereo_distribution"`
	VersionDistribution map[string]int `json:"version_distribution"`
	SyncErrors          int            `json:"sync_errors"`
	// fraction of the stream scanned, 0 when every frame was counted
	PctScanned float64 `json:"pct_data_scanned,omitempty"`
}

// HistogramPolicy says when the analyzer walks every frame.
type HistogramPolicy string

const (
	// HistogramAuto scans when the first frame carries no usable VBR tag.
	HistogramAuto   HistogramPolicy = "auto"
	HistogramAlways HistogramPolicy = "always"
	HistogramNever  HistogramPolicy = "never"
)

// ParseHistogramPolicy maps a flag value to a policy; "" is HistogramAuto.
func ParseHistogramPolicy(s string) (HistogramPolicy, bool) {
	switch HistogramPolicy(s) {
	case "", HistogramAuto:
		return HistogramAuto, true
	case HistogramAlways:
		return HistogramAlways, true
	case HistogramNever:
		return HistogramNever, true
	}
	return "", false
}

// Options tunes an Analyzer. Zero fields take their defaults.
type Options struct {
	// consecutive frames that must follow a candidate sync
	ValidCheckFrames int
	// bytes searched for the first sync
	SyncWindow         int
	Histogram          HistogramPolicy
	MaxHistogramFrames int
	HistogramSegments  int
	// container the audio came from; "riff" silences truncation warnings
	FileFormat string
	// end of a leading ID3v2 tag, 0 when there is none
	ID3v2Length int64
}

// DefaultOptions returns the options Analyze uses.
func DefaultOptions() Options {
	return Options{
		ValidCheckFrames:   35,
		SyncWindow:         128 << 10,
		Histogram:          HistogramAuto,
		MaxHistogramFrames: 50000,
		HistogramSegments:  10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ValidCheckFrames <= 0 {
		o.ValidCheckFrames = d.ValidCheckFrames
	}
	if o.SyncWindow <= 0 {
		o.SyncWindow = d.SyncWindow
	}
	if o.Histogram == "" {
		o.Histogram = d.Histogram
	}
	if o.MaxHistogramFrames <= 0 {
		o.MaxHistogramFrames = d.MaxHistogramFrames
	}
	if o.HistogramSegments <= 0 {
		o.HistogramSegments = d.HistogramSegments
	}
	return o
}
