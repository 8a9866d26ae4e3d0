package mp3parser

import (
	"bytes"
	"encoding/binary"
)

// VBRKind names the vendor tag found in the first frame.
type VBRKind string

const (
	VBRKindNone VBRKind = ""
	VBRKindXing VBRKind = "Xing"
	VBRKindInfo VBRKind = "Info"
	VBRKindVBRI VBRKind = "VBRI"
)

// VBRInfo is the vendor tag found in the first frame. Exactly one of Xing
// and VBRI is set unless Kind is VBRKindNone.
type VBRInfo struct {
	Kind VBRKind   `json:"kind"`
	Xing *XingInfo `json:"xing,omitempty"`
	VBRI *VBRIInfo `json:"vbri,omitempty"`
}

// Method returns the name used for the VBR method of a stream.
func (v *VBRInfo) Method() string {
	switch {
	case v == nil:
		return ""
	case v.VBRI != nil:
		return "Fraunhofer"
	case v.Xing != nil:
		return "Xing"
	}
	return ""
}

// Frames returns the frame count of the tag, 0 when absent.
func (v *VBRInfo) Frames() uint32 {
	switch {
	case v == nil:
		return 0
	case v.VBRI != nil:
		return v.VBRI.Frames
	case v.Xing != nil && v.Xing.Flags.Frames:
		return v.Xing.Frames
	}
	return 0
}

// Bytes returns the byte count of the tag, 0 when absent.
func (v *VBRInfo) Bytes() uint32 {
	switch {
	case v == nil:
		return 0
	case v.VBRI != nil:
		return v.VBRI.Bytes
	case v.Xing != nil && v.Xing.Flags.Bytes:
		return v.Xing.Bytes
	}
	return 0
}

// XingFlags says which optional Xing fields are present.
type XingFlags struct {
	Frames   bool `json:"frames"`
	Bytes    bool `json:"bytes"`
	TOC      bool `json:"toc"`
	VBRScale bool `json:"vbr_scale"`
}

// XingInfo is a Xing or Info tag. LAME is set when a LAME extension follows.
type XingInfo struct {
	Offset       int       `json:"offset"`
	FlagsRaw     uint32    `json:"flags_raw"`
	Flags        XingFlags `json:"flags"`
	Frames       uint32    `json:"frames,omitempty"`
	Bytes        uint32    `json:"bytes,omitempty"`
	TOC          []byte    `json:"toc,omitempty"`
	QualityScale uint32    `json:"vbr_scale,omitempty"`
	LAME         *LAMEInfo `json:"lame,omitempty"`
}

// VBRIInfo is a Fraunhofer VBRI tag.
type VBRIInfo struct {
	Version      uint16  `json:"encoder_version"`
	Delay        uint16  `json:"encoder_delay"`
	Quality      uint16  `json:"quality"`
	Bytes        uint32  `json:"bytes"`
	Frames       uint32  `json:"frames"`
	SeekEntries  uint16  `json:"seek_offsets"`
	SeekScale    uint16  `json:"seek_scale"`
	EntryBytes   uint16  `json:"entry_bytes"`
	EntryFrames  uint16  `json:"entry_frames"`
	SeekRelative []int64 `json:"offsets_relative,omitempty"`
	SeekAbsolute []int64 `json:"offsets_absolute,omitempty"`
}

const (
	vbriOffset     = 36
	vbriHeaderSize = 26
	xingTOCSize    = 100
	lameTagOffset  = 120
	// bytes of the first frame needed to see every fixed-size tag
	vbrProbeSize = 226
)

// ExtractVBR looks for a VBRI, Xing or Info tag in the first frame. frame
// holds the bytes read at offset; src is consulted only when a VBRI seek
// table runs past them. A tag that does not fit in the data is ignored.
func ExtractVBR(src *Source, offset int64, frame []byte, h Header) (*VBRInfo, diagnostics) {
	var diags diagnostics
	if vbri := parseVBRI(src, offset, frame); vbri != nil {
		return &VBRInfo{Kind: VBRKindVBRI, VBRI: vbri}, diags
	}
	xingOffset := xingTagOffset(h)
	xing, kind := parseXing(frame, xingOffset)
	if xing == nil {
		return nil, diags
	}
	if lame, ok := parseLAME(frame, xingOffset); ok {
		xing.LAME = lame
		if lame.Full() {
			xing.QualityScale = 0
			if lame.PresetID != 0 && lame.Preset == "" {
				diags.warn(CodeUnknownPreset, offset, "Unknown LAME preset used (%d)", lame.PresetID)
			}
		}
	}
	return &VBRInfo{Kind: kind, Xing: xing}, diags
}

func parseVBRI(src *Source, offset int64, frame []byte) *VBRIInfo {
	if len(frame) < vbriOffset+vbriHeaderSize || !bytes.Equal(frame[vbriOffset:vbriOffset+4], []byte("VBRI")) {
		return nil
	}
	b := frame[vbriOffset:]
	v := &VBRIInfo{
		Version:     binary.BigEndian.Uint16(b[4:]),
		Delay:       binary.BigEndian.Uint16(b[6:]),
		Quality:     binary.BigEndian.Uint16(b[8:]),
		Bytes:       binary.BigEndian.Uint32(b[10:]),
		Frames:      binary.BigEndian.Uint32(b[14:]),
		SeekEntries: binary.BigEndian.Uint16(b[18:]),
		SeekScale:   binary.BigEndian.Uint16(b[20:]),
		EntryBytes:  binary.BigEndian.Uint16(b[22:]),
		EntryFrames: binary.BigEndian.Uint16(b[24:]),
	}
	if v.SeekEntries == 0 || v.EntryBytes == 0 || v.EntryBytes > 4 {
		return v
	}

	tableSize := int(v.SeekEntries) * int(v.EntryBytes)
	table := b[vbriHeaderSize:]
	if len(table) < tableSize && src != nil {
		if more, err := src.ReadAt(offset+vbriOffset+vbriHeaderSize, tableSize); err == nil {
			table = more
		}
	}
	entries := len(table) / int(v.EntryBytes)
	if entries > int(v.SeekEntries) {
		entries = int(v.SeekEntries)
	}
	v.SeekRelative = make([]int64, entries)
	v.SeekAbsolute = make([]int64, entries)
	abs := offset
	for i := 0; i < entries; i++ {
		var n int64
		for _, c := range table[i*int(v.EntryBytes) : (i+1)*int(v.EntryBytes)] {
			n = n<<8 | int64(c)
		}
		rel := n * int64(v.SeekScale)
		abs += rel
		v.SeekRelative[i] = rel
		v.SeekAbsolute[i] = abs
	}
	return v
}

func parseXing(frame []byte, off int) (*XingInfo, VBRKind) {
	if len(frame) < off+8 {
		return nil, VBRKindNone
	}
	var kind VBRKind
	switch string(frame[off : off+4]) {
	case "Xing":
		kind = VBRKindXing
	case "Info":
		kind = VBRKindInfo
	default:
		return nil, VBRKindNone
	}

	x := &XingInfo{Offset: off, FlagsRaw: binary.BigEndian.Uint32(frame[off+4:])}
	x.Flags = XingFlags{
		Frames:   x.FlagsRaw&0x1 != 0,
		Bytes:    x.FlagsRaw&0x2 != 0,
		TOC:      x.FlagsRaw&0x4 != 0,
		VBRScale: x.FlagsRaw&0x8 != 0,
	}
	// fields sit at fixed offsets whether or not earlier ones are present
	if x.Flags.Frames {
		if len(frame) < off+12 {
			return nil, VBRKindNone
		}
		x.Frames = binary.BigEndian.Uint32(frame[off+8:])
	}
	if x.Flags.Bytes {
		if len(frame) < off+16 {
			return nil, VBRKindNone
		}
		x.Bytes = binary.BigEndian.Uint32(frame[off+12:])
	}
	if x.Flags.TOC && len(frame) >= off+16+xingTOCSize {
		x.TOC = append([]byte(nil), frame[off+16:off+16+xingTOCSize]...)
	}
	if x.Flags.VBRScale && len(frame) >= off+120 {
		x.QualityScale = binary.BigEndian.Uint32(frame[off+116:])
	}
	return x, kind
}

// xingTagOffset is where a Xing or Info tag starts in the first frame: just
// past the Layer III side information, except that MPEG-2.5 encoders put it
// at 21 for every channel mode.
func xingTagOffset(h Header) int {
	if h.Version == Version25 {
		return 21
	}
	return HeaderSize + h.SideInfoSize()
}
