// Package testutils builds synthetic MPEG audio data for tests.
package testutils

import (
	"encoding/binary"
)

// Raw version ids.
const (
	Version25 = 0
	Version2  = 2
	Version1  = 3
)

// Raw layer ids.
const (
	Layer3 = 1
	Layer2 = 2
	Layer1 = 3
)

// Raw channel mode ids.
const (
	Stereo      = 0
	JointStereo = 1
	DualChannel = 2
	Mono        = 3
)

// Header holds raw MPEG audio header fields.
type Header struct {
	Version       byte
	Layer         byte
	Protection    byte
	Bitrate       byte
	SampleRate    byte
	Padding       byte
	Private       byte
	ChannelMode   byte
	ModeExtension byte
	Copyright     byte
	Original      byte
	Emphasis      byte
}

// Bytes packs the header with the sync pattern in front.
func (h Header) Bytes() []byte {
	return []byte{
		0xFF,
		0xE0 | h.Version<<3 | h.Layer<<1 | h.Protection,
		h.Bitrate<<4 | h.SampleRate<<2 | h.Padding<<1 | h.Private,
		h.ChannelMode<<6 | h.ModeExtension<<4 | h.Copyright<<3 | h.Original<<2 | h.Emphasis,
	}
}

// MPEG1Layer3 returns an unprotected MPEG-1 Layer III header at 44.1 kHz.
// Bitrate index 9 is 128 kbps.
func MPEG1Layer3(bitrateIndex, channelMode byte) Header {
	return Header{
		Version:     Version1,
		Layer:       Layer3,
		Protection:  1,
		Bitrate:     bitrateIndex,
		ChannelMode: channelMode,
	}
}

// Frame returns a frame of n bytes that starts with h. The body is zero.
func Frame(h Header, n int) []byte {
	f := make([]byte, n)
	copy(f, h.Bytes())
	return f
}

// Frames returns count copies of a frame.
func Frames(h Header, n, count int) []byte {
	out := make([]byte, 0, n*count)
	for i := 0; i < count; i++ {
		out = append(out, Frame(h, n)...)
	}
	return out
}

// Garbage returns n bytes that never contain a sync candidate.
func Garbage(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x20 + i%0x50)
	}
	return out
}

// Xing flag bits.
const (
	XingFrames   = 0x1
	XingBytes    = 0x2
	XingTOC      = 0x4
	XingVBRScale = 0x8
)

// Xing describes a Xing or Info tag.
type Xing struct {
	ID       string // "Xing" or "Info", "Xing" when empty
	Flags    uint32
	Frames   uint32
	Bytes    uint32
	Quality  uint32
	LAME     *LAME
	TOCValue byte
}

// XingFrame returns a frame of n bytes carrying x at offset tagOffset.
// tagOffset is 36 for MPEG-1 stereo, 21 for MPEG-1 mono, 21 for MPEG-2
// stereo and 13 for MPEG-2 mono.
func XingFrame(h Header, n, tagOffset int, x Xing) []byte {
	f := Frame(h, n)
	id := x.ID
	if id == "" {
		id = "Xing"
	}
	t := f[tagOffset:]
	copy(t, id)
	binary.BigEndian.PutUint32(t[4:], x.Flags)
	binary.BigEndian.PutUint32(t[8:], x.Frames)
	binary.BigEndian.PutUint32(t[12:], x.Bytes)
	if x.Flags&XingTOC != 0 {
		for i := 0; i < 100; i++ {
			t[16+i] = x.TOCValue + byte(i)
		}
	}
	binary.BigEndian.PutUint32(t[116:], x.Quality)
	if x.LAME != nil {
		x.LAME.put(t[120:])
	}
	return f
}

// LAME describes the extended LAME tag that follows a Xing tag.
type LAME struct {
	Version        string // 9 bytes, e.g. "LAME3.97 "
	Revision       byte
	VBRMethod      byte
	Lowpass        byte // Hz / 100
	Peak           uint32
	TrackGain      uint16
	AlbumGain      uint16
	Flags          byte // nogap/ns flags in the high nibble, ATH type in the low nibble
	ABRBitrate     byte
	EncoderDelay   uint16
	EndPadding     uint16
	Misc           byte
	MP3Gain        int8
	PresetSurround uint16
	AudioBytes     uint32
	MusicCRC       uint16
	TagCRC         uint16
}

func (l *LAME) put(t []byte) {
	copy(t, padVersion(l.Version))
	t[9] = l.Revision<<4 | l.VBRMethod&0x0F
	t[10] = l.Lowpass
	binary.BigEndian.PutUint32(t[11:], l.Peak)
	binary.BigEndian.PutUint16(t[15:], l.TrackGain)
	binary.BigEndian.PutUint16(t[17:], l.AlbumGain)
	t[19] = l.Flags
	t[20] = l.ABRBitrate
	t[21] = byte(l.EncoderDelay >> 4)
	t[22] = byte(l.EncoderDelay<<4) | byte(l.EndPadding>>8&0x0F)
	t[23] = byte(l.EndPadding)
	t[24] = l.Misc
	t[25] = byte(l.MP3Gain)
	binary.BigEndian.PutUint16(t[26:], l.PresetSurround)
	binary.BigEndian.PutUint32(t[28:], l.AudioBytes)
	binary.BigEndian.PutUint16(t[32:], l.MusicCRC)
	binary.BigEndian.PutUint16(t[34:], l.TagCRC)
}

func padVersion(v string) []byte {
	b := []byte(v)
	for len(b) < 9 {
		b = append(b, ' ')
	}
	return b[:9]
}

// VBRI describes a Fraunhofer VBRI tag.
type VBRI struct {
	Version     uint16
	Delay       uint16
	Quality     uint16
	Bytes       uint32
	Frames      uint32
	Scale       uint16
	EntryBytes  uint16
	EntryFrames uint16
	Entries     []uint32
}

// VBRIFrame returns a frame of n bytes carrying v at offset 36.
func VBRIFrame(h Header, n int, v VBRI) []byte {
	f := Frame(h, n)
	t := f[36:]
	copy(t, "VBRI")
	binary.BigEndian.PutUint16(t[4:], v.Version)
	binary.BigEndian.PutUint16(t[6:], v.Delay)
	binary.BigEndian.PutUint16(t[8:], v.Quality)
	binary.BigEndian.PutUint32(t[10:], v.Bytes)
	binary.BigEndian.PutUint32(t[14:], v.Frames)
	binary.BigEndian.PutUint16(t[18:], uint16(len(v.Entries)))
	binary.BigEndian.PutUint16(t[20:], v.Scale)
	binary.BigEndian.PutUint16(t[22:], v.EntryBytes)
	binary.BigEndian.PutUint16(t[24:], v.EntryFrames)
	pos := 26
	for _, e := range v.Entries {
		for i := int(v.EntryBytes) - 1; i >= 0; i-- {
			t[pos] = byte(e >> (8 * i))
			pos++
		}
	}
	return f
}

// ID3v2 returns a minimal ID3v2.3 tag with total size n, header included.
func ID3v2(n int) []byte {
	size := n - 10
	tag := make([]byte, n)
	copy(tag, "ID3")
	tag[3] = 3
	tag[6] = byte(size >> 21 & 0x7F)
	tag[7] = byte(size >> 14 & 0x7F)
	tag[8] = byte(size >> 7 & 0x7F)
	tag[9] = byte(size & 0x7F)
	return tag
}

// ID3v1 returns a 128-byte ID3v1 tag.
func ID3v1(title, artist string) []byte {
	tag := make([]byte, 128)
	copy(tag, "TAG")
	copy(tag[3:33], title)
	copy(tag[33:63], artist)
	tag[127] = 255
	return tag
}
