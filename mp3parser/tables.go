package mp3parser

import "github.com/pkg/errors"

// Version is the MPEG audio version of a frame.
type Version uint8

const (
	VersionReserved Version = iota
	Version1
	Version2
	Version25
)

func (v Version) String() string {
	switch v {
	case Version1:
		return "1"
	case Version2:
		return "2"
	case Version25:
		return "2.5"
	default:
		return "reserved"
	}
}

// MarshalText encodes the version as "1", "2" or "2.5".
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	for _, c := range []Version{Version1, Version2, Version25, VersionReserved} {
		if c.String() == string(text) {
			*v = c
			return nil
		}
	}
	return errors.Errorf("unknown MPEG version %q", text)
}

// Layer is the MPEG audio layer of a frame.
type Layer uint8

const (
	LayerReserved Layer = iota
	LayerI
	LayerII
	LayerIII
)

func (l Layer) String() string {
	switch l {
	case LayerI:
		return "I"
	case LayerII:
		return "II"
	case LayerIII:
		return "III"
	default:
		return "reserved"
	}
}

// MarshalText encodes the layer as a roman numeral.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Layer) UnmarshalText(text []byte) error {
	for _, c := range []Layer{LayerI, LayerII, LayerIII, LayerReserved} {
		if c.String() == string(text) {
			*l = c
			return nil
		}
	}
	return errors.Errorf("unknown MPEG layer %q", text)
}

// Number returns 1, 2 or 3.
func (l Layer) Number() int {
	return int(l)
}

// ChannelMode is the channel mode of a frame.
type ChannelMode uint8

const (
	ChannelStereo ChannelMode = iota
	ChannelJointStereo
	ChannelDualChannel
	ChannelMono
)

var channelModeNames = [4]string{"stereo", "joint stereo", "dual channel", "mono"}

func (c ChannelMode) String() string {
	return channelModeNames[c&3]
}

// MarshalText encodes the channel mode by name.
func (c ChannelMode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ChannelMode) UnmarshalText(text []byte) error {
	for i, name := range channelModeNames {
		if name == string(text) {
			*c = ChannelMode(i)
			return nil
		}
	}
	return errors.Errorf("unknown channel mode %q", text)
}

// FreeBitrate is the bitrate of a free-format frame.
const FreeBitrate = 0

// raw version id -> version
var versionTable = [4]Version{Version25, VersionReserved, Version2, Version1}

// raw layer id -> layer
var layerTable = [4]Layer{LayerReserved, LayerIII, LayerII, LayerI}

// bitrates in bits per second, indexed by [version][layer][bitrate index].
// Index 0 is free format, index 15 is not part of any table.
var bitrateTable = [4][4][15]int{
	Version1: {
		LayerI:   {0, 32000, 64000, 96000, 128000, 160000, 192000, 224000, 256000, 288000, 320000, 352000, 384000, 416000, 448000},
		LayerII:  {0, 32000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 160000, 192000, 224000, 256000, 320000, 384000},
		LayerIII: {0, 32000, 40000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 160000, 192000, 224000, 256000, 320000},
	},
	Version2: {
		LayerI:   {0, 32000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000, 176000, 192000, 224000, 256000},
		LayerII:  {0, 8000, 16000, 24000, 32000, 40000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000},
		LayerIII: {0, 8000, 16000, 24000, 32000, 40000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000},
	},
	Version25: {
		LayerI:   {0, 32000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000, 176000, 192000, 224000, 256000},
		LayerII:  {0, 8000, 16000, 24000, 32000, 40000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000},
		LayerIII: {0, 8000, 16000, 24000, 32000, 40000, 48000, 56000, 64000, 80000, 96000, 112000, 128000, 144000, 160000},
	},
}

// sample rates in Hz, indexed by [version][sample rate index]; index 3 is reserved.
var sampleRateTable = [4][3]int{
	Version1:  {44100, 48000, 32000},
	Version2:  {22050, 24000, 16000},
	Version25: {11025, 12000, 8000},
}

var modeExtensionTable = [4][4]string{
	LayerI:   {"4-31", "8-31", "12-31", "16-31"},
	LayerII:  {"4-31", "8-31", "12-31", "16-31"},
	LayerIII: {"", "IS", "MS", "IS+MS"},
}

// emphasis names; index 2 is reserved.
var emphasisTable = [4]string{"none", "50/15ms", "", "CCIT J.17"}

// Bitrates returns the bitrate table for a version and layer, free format first.
func Bitrates(v Version, l Layer) []int {
	if v == VersionReserved || l == LayerReserved {
		return nil
	}
	t := bitrateTable[v][l]
	return t[:]
}

// frame length coefficient and slot size for a version and layer.
func frameCoefficient(v Version, l Layer) (coef, slot int) {
	switch l {
	case LayerI:
		if v == Version1 {
			return 48, 4
		}
		return 24, 4
	case LayerII:
		return 144, 1
	case LayerIII:
		if v == Version1 {
			return 144, 1
		}
		return 72, 1
	}
	return 0, 0
}

// standardBitrates is the list ClosestStandardBitrate picks from, highest first.
var standardBitrates = []int{
	320000, 256000, 224000, 192000, 160000, 128000, 112000, 96000,
	80000, 64000, 56000, 48000, 40000, 32000, 24000, 16000, 8000,
}
