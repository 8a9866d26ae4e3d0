package mp3parser

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// HeaderSize is the size of an MPEG audio frame header.
const HeaderSize = 4

const syncPattern = 0x7FF

// RawHeader holds the bit fields of a 4-byte frame header, undecoded.
type RawHeader struct {
	Sync          uint16 `json:"synch"`
	Version       uint8  `json:"version"`
	Layer         uint8  `json:"layer"`
	Protection    uint8  `json:"protection"`
	Bitrate       uint8  `json:"bitrate"`
	SampleRate    uint8  `json:"sample_rate"`
	Padding       uint8  `json:"padding"`
	Private       uint8  `json:"private"`
	ChannelMode   uint8  `json:"channelmode"`
	ModeExtension uint8  `json:"modeextension"`
	Copyright     uint8  `json:"copyright"`
	Original      uint8  `json:"original"`
	Emphasis      uint8  `json:"emphasis"`
}

// DecodeRawHeader splits a frame header into its fields. It never fails.
func DecodeRawHeader(b [4]byte) RawHeader {
	header := binary.BigEndian.Uint32(b[:])
	return RawHeader{
		Sync:          uint16(header >> 21),
		Version:       uint8((header >> 19) & 0x3),
		Layer:         uint8((header >> 17) & 0x3),
		Protection:    uint8((header >> 16) & 0x1),
		Bitrate:       uint8((header >> 12) & 0xF),
		SampleRate:    uint8((header >> 10) & 0x3),
		Padding:       uint8((header >> 9) & 0x1),
		Private:       uint8((header >> 8) & 0x1),
		ChannelMode:   uint8((header >> 6) & 0x3),
		ModeExtension: uint8((header >> 4) & 0x3),
		Copyright:     uint8((header >> 3) & 0x1),
		Original:      uint8((header >> 2) & 0x1),
		Emphasis:      uint8(header & 0x3),
	}
}

// Bytes packs the fields back into header bytes.
func (r RawHeader) Bytes() [4]byte {
	header := uint32(r.Sync&0x7FF)<<21 |
		uint32(r.Version&0x3)<<19 |
		uint32(r.Layer&0x3)<<17 |
		uint32(r.Protection&0x1)<<16 |
		uint32(r.Bitrate&0xF)<<12 |
		uint32(r.SampleRate&0x3)<<10 |
		uint32(r.Padding&0x1)<<9 |
		uint32(r.Private&0x1)<<8 |
		uint32(r.ChannelMode&0x3)<<6 |
		uint32(r.ModeExtension&0x3)<<4 |
		uint32(r.Copyright&0x1)<<3 |
		uint32(r.Original&0x1)<<2 |
		uint32(r.Emphasis&0x3)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], header)
	return b
}

// Validation carries the tolerated oddities of a valid header.
type Validation struct {
	// Bitrate15 is set when the bitrate index is 15, which some LAME
	// versions write for free-format streams.
	Bitrate15 bool
}

// HeaderError lists every field of a header that failed validation.
type HeaderError struct {
	Fields []string
}

func (e *HeaderError) Error() string {
	return "invalid MPEG audio header: " + strings.Join(e.Fields, ", ")
}

// Validate checks every field against the lookup tables.
func (r RawHeader) Validate() (Validation, error) {
	var v Validation
	var bad []string

	if r.Sync&syncPattern != syncPattern {
		bad = append(bad, "synch")
	}
	if r.Version > 3 || versionTable[r.Version] == VersionReserved {
		bad = append(bad, "version")
	}
	if r.Layer > 3 || layerTable[r.Layer] == LayerReserved {
		bad = append(bad, "layer")
	}
	switch {
	case r.Bitrate == 15:
		v.Bitrate15 = true
	case r.Bitrate > 15:
		bad = append(bad, "bitrate")
	}
	if r.SampleRate >= 3 {
		bad = append(bad, "sample_rate")
	}
	if r.ChannelMode > 3 {
		bad = append(bad, "channelmode")
	}
	if r.ModeExtension > 3 {
		bad = append(bad, "modeextension")
	}
	if r.Emphasis > 3 || emphasisTable[r.Emphasis] == "" {
		bad = append(bad, "emphasis")
	}

	if len(bad) > 0 {
		return v, &HeaderError{Fields: bad}
	}
	return v, nil
}

// Header is a decoded and validated frame header.
type Header struct {
	Version       Version     `json:"version"`
	Layer         Layer       `json:"layer"`
	Protected     bool        `json:"protection"`
	Bitrate       int         `json:"bitrate"`
	SampleRate    int         `json:"sample_rate"`
	Padding       bool        `json:"padding"`
	Private       bool        `json:"private"`
	ChannelMode   ChannelMode `json:"channelmode"`
	ModeExtension string      `json:"modeextension"`
	Copyright     bool        `json:"copyright"`
	Original      bool        `json:"original"`
	Emphasis      string      `json:"emphasis"`
	FrameLength   int         `json:"framelength"`
}

// NewHeader validates a raw header and maps it through the lookup tables.
// A bitrate index of 15 decodes as free format.
func NewHeader(r RawHeader) (Header, Validation, error) {
	v, err := r.Validate()
	if err != nil {
		return Header{}, v, err
	}
	h := Header{
		Version:       versionTable[r.Version],
		Layer:         layerTable[r.Layer],
		Protected:     r.Protection == 0,
		Padding:       r.Padding == 1,
		Private:       r.Private == 1,
		ChannelMode:   ChannelMode(r.ChannelMode),
		ModeExtension: modeExtensionTable[layerTable[r.Layer]][r.ModeExtension],
		Copyright:     r.Copyright == 1,
		Original:      r.Original == 1,
		Emphasis:      emphasisTable[r.Emphasis],
	}
	h.SampleRate = sampleRateTable[h.Version][r.SampleRate]
	if !v.Bitrate15 {
		h.Bitrate = bitrateTable[h.Version][h.Layer][r.Bitrate]
	}
	h.FrameLength = FrameLength(h.Bitrate, h.Version, h.Layer, h.Padding, h.SampleRate)
	return h, v, nil
}

// ParseHeader decodes and validates the first four bytes of b.
func ParseHeader(b []byte) (RawHeader, Header, Validation, error) {
	if len(b) < HeaderSize {
		return RawHeader{}, Header{}, Validation{}, errors.Wrapf(ErrShortHeader, "have %d bytes", len(b))
	}
	raw := DecodeRawHeader([4]byte{b[0], b[1], b[2], b[3]})
	h, v, err := NewHeader(raw)
	return raw, h, v, err
}

// IsFree reports whether the frame is free format.
func (h Header) IsFree() bool {
	return h.Bitrate == FreeBitrate
}

// Channels returns 1 for mono and 2 otherwise.
func (h Header) Channels() int {
	if h.ChannelMode == ChannelMono {
		return 1
	}
	return 2
}

// SamplesPerFrame returns the number of PCM samples per channel in one frame.
func (h Header) SamplesPerFrame() int {
	switch h.Layer {
	case LayerI:
		return 384
	case LayerIII:
		if h.Version != Version1 {
			return 576
		}
	}
	return 1152
}

// SideInfoSize returns the size of the Layer III side information.
func (h Header) SideInfoSize() int {
	if h.Version == Version1 {
		if h.ChannelMode == ChannelMono {
			return 17
		}
		return 32
	}
	if h.ChannelMode == ChannelMono {
		return 9
	}
	return 17
}

// CheckLayerII rejects the bitrate and channel mode pairs MPEG-1 Layer II
// does not allow.
func (h Header) CheckLayerII() error {
	if h.Layer != LayerII || h.Version != Version1 || h.IsFree() {
		return nil
	}
	if h.ChannelMode == ChannelMono {
		if h.Bitrate > 192000 {
			return errors.Wrapf(ErrLayerIIMode, "%d kbps, %s", h.Bitrate/1000, h.ChannelMode)
		}
		return nil
	}
	if h.Bitrate != 64000 && h.Bitrate < 96000 {
		return errors.Wrapf(ErrLayerIIMode, "%d kbps, %s", h.Bitrate/1000, h.ChannelMode)
	}
	return nil
}
