package mp3parser

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// LAMEInfo is the LAME extension of a Xing or Info tag.
//
// Tags written before LAME 3.90 only carry a version string; Extended is
// false for them and only LongVersion and ShortVersion are set.
type LAMEInfo struct {
	LongVersion  string `json:"long_version,omitempty"`
	ShortVersion string `json:"short_version"`
	Extended     bool   `json:"extended"`

	VBRQuality       uint8  `json:"vbr_quality"`
	TagRevision      uint8  `json:"tag_revision"`
	VBRMethodRaw     uint8  `json:"vbr_method_raw"`
	VBRMethod        string `json:"vbr_method"`
	LowpassFrequency int    `json:"lowpass_frequency"`

	PeakAmplitude float64         `json:"peak_amplitude,omitempty"`
	PeakDB        float64         `json:"peak_db,omitempty"`
	TrackGain     *GainAdjustment `json:"track_gain,omitempty"`
	AlbumGain     *GainAdjustment `json:"album_gain,omitempty"`

	EncodingFlags LAMEEncodingFlags `json:"encoding_flags"`
	ATHType       uint8             `json:"ath_type"`

	ABRMinBitrateRaw uint8 `json:"abrbitrate_minbitrate"`
	BitrateABR       int   `json:"bitrate_abr,omitempty"`
	BitrateMin       int   `json:"bitrate_min,omitempty"`

	EncoderDelay int `json:"encoder_delay"`
	EndPadding   int `json:"end_padding"`

	NoiseShaping        uint8  `json:"noise_shaping"`
	StereoModeRaw       uint8  `json:"stereo_mode_raw"`
	StereoMode          string `json:"stereo_mode"`
	NotOptimalQuality   bool   `json:"not_optimal_quality"`
	SourceSampleFreqRaw uint8  `json:"source_sample_freq_raw"`
	SourceSampleFreq    string `json:"source_sample_freq"`

	MP3GainRaw    int8    `json:"mp3_gain_raw"`
	MP3GainDB     float64 `json:"mp3_gain_db"`
	MP3GainFactor float64 `json:"mp3_gain_factor"`

	SurroundInfoRaw uint8  `json:"surround_info_raw"`
	SurroundInfo    string `json:"surround_info"`
	PresetID        uint16 `json:"preset_used_id"`
	Preset          string `json:"preset_used,omitempty"`

	AudioBytes uint32 `json:"audio_bytes"`
	MusicCRC   uint16 `json:"music_crc"`
	TagCRC     uint16 `json:"lame_tag_crc"`
}

// LAMEEncodingFlags are the encoder switches recorded in the tag.
type LAMEEncodingFlags struct {
	NSPsyTune   bool `json:"nspsytune"`
	NSSafeJoint bool `json:"nssafejoint"`
	NoGapNext   bool `json:"nogap_next"`
	NoGapPrev   bool `json:"nogap_prev"`
}

// GainAdjustment is one replay gain record of a LAME tag.
type GainAdjustment struct {
	NameRaw       uint8   `json:"name_raw"`
	OriginatorRaw uint8   `json:"originator_raw"`
	Negative      bool    `json:"sign_bit"`
	GainRaw       uint16  `json:"gain_adjust_raw"`
	Name          string  `json:"name"`
	Originator    string  `json:"originator"`
	GainDB        float64 `json:"gain_db"`
}

// Full reports whether the extended tag was parsed.
func (l *LAMEInfo) Full() bool {
	return l != nil && l.Extended
}

// Mode returns the bitrate mode implied by the VBR method.
func (l *LAMEInfo) Mode() BitrateMode {
	switch l.VBRMethodRaw {
	case 1, 8:
		return BitrateModeCBR
	case 2, 9:
		return BitrateModeABR
	case 3, 4, 5, 6:
		return BitrateModeVBR
	}
	return BitrateModeUnknown
}

var lameVBRMethods = map[uint8]string{
	0x00: "unknown",
	0x01: "cbr",
	0x02: "abr",
	0x03: "vbr-old / vbr-rh",
	0x04: "vbr-new / vbr-mtrh",
	0x05: "vbr-mt",
	0x06: "vbr (full vbr method 4)",
	0x08: "cbr (constant bitrate 2 pass)",
	0x09: "abr (2 pass)",
	0x0F: "reserved",
}

var lameStereoModes = [8]string{
	"mono", "stereo", "dual mono", "joint stereo",
	"forced stereo", "auto", "intensity stereo", "other",
}

var lameSourceSampleFreqs = [4]string{"<= 32 kHz", "44.1 kHz", "48 kHz", "> 48kHz"}

var lameSurroundInfo = [4]string{"no surround info", "DPL encoding", "DPL2 encoding", "Ambisonic encoding"}

var gainNames = [3]string{"not set", "Track Gain Adjustment", "Album Gain Adjustment"}

var gainOriginators = [4]string{
	"unspecified",
	"pre-set by artist/producer/mastering engineer",
	"set by user",
	"determined automatically",
}

// LAME tag field offsets, counted from the byte before "LAME"
const (
	lameVBRQuality   = 0x00
	lameShortVersion = 0x01
	lameRevision     = 0x0A
	lameLowpass      = 0x0B
	lamePeak         = 0x0C
	lameTrackGain    = 0x10
	lameAlbumGain    = 0x12
	lameFlags        = 0x14
	lameABRBitrate   = 0x15
	lameDelays       = 0x16
	lameMisc         = 0x19
	lameMP3Gain      = 0x1A
	lamePreset       = 0x1B
	lameAudioBytes   = 0x1D
	lameMusicCRC     = 0x21
	lameTagCRC       = 0x23
	lameTagEnd       = 0x25
)

func parseLAME(frame []byte, xingOffset int) (*LAMEInfo, bool) {
	start := xingOffset + lameTagOffset
	if len(frame) < start+9 || string(frame[start:start+4]) != "LAME" {
		return nil, false
	}
	end := start + 20
	if end > len(frame) {
		end = len(frame)
	}
	l := &LAMEInfo{LongVersion: string(frame[start:end])}
	l.ShortVersion = l.LongVersion[:9]

	if l.ShortVersion < "LAME3.90." || len(frame) < start-1+lameTagEnd {
		return l, true
	}
	// the extra characters belong to the tag, not the version
	l.LongVersion = ""
	l.Extended = true
	b := frame[start-1:]

	l.VBRQuality = b[lameVBRQuality]
	l.ShortVersion = string(b[lameShortVersion : lameShortVersion+9])

	br := NewBitReader(b[lameRevision : lameRevision+1])
	f, _ := br.fields(4, 4)
	l.TagRevision, l.VBRMethodRaw = uint8(f[0]), uint8(f[1])
	l.VBRMethod = lameVBRMethods[l.VBRMethodRaw]

	l.LowpassFrequency = int(b[lameLowpass]) * 100

	if l.ShortVersion >= "LAME3.94b" {
		// 9.23 fixed point from 3.94a16 on
		l.PeakAmplitude = float64(binary.BigEndian.Uint32(b[lamePeak:])) / 8388608
	} else {
		l.PeakAmplitude = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[lamePeak:])))
	}
	if l.PeakAmplitude != 0 {
		l.PeakDB = amplitudeToDB(l.PeakAmplitude)
	}
	l.TrackGain = parseGainAdjustment(b[lameTrackGain : lameTrackGain+2])
	l.AlbumGain = parseGainAdjustment(b[lameAlbumGain : lameAlbumGain+2])

	br = NewBitReader(b[lameFlags : lameFlags+1])
	f, _ = br.fields(1, 1, 1, 1, 4)
	l.EncodingFlags = LAMEEncodingFlags{
		NoGapPrev:   f[0] == 1,
		NoGapNext:   f[1] == 1,
		NSSafeJoint: f[2] == 1,
		NSPsyTune:   f[3] == 1,
	}
	l.ATHType = uint8(f[4])

	l.ABRMinBitrateRaw = b[lameABRBitrate]
	switch {
	case l.VBRMethodRaw == 2:
		l.BitrateABR = int(l.ABRMinBitrateRaw)
	case l.VBRMethodRaw == 1:
	case l.ABRMinBitrateRaw > 0:
		l.BitrateMin = int(l.ABRMinBitrateRaw)
	}

	br = NewBitReader(b[lameDelays : lameDelays+3])
	f, _ = br.fields(12, 12)
	l.EncoderDelay, l.EndPadding = int(f[0]), int(f[1])

	br = NewBitReader(b[lameMisc : lameMisc+1])
	f, _ = br.fields(2, 1, 3, 2)
	l.SourceSampleFreqRaw = uint8(f[0])
	l.NotOptimalQuality = f[1] == 1
	l.StereoModeRaw = uint8(f[2])
	l.NoiseShaping = uint8(f[3])
	l.StereoMode = lameStereoModes[l.StereoModeRaw]
	l.SourceSampleFreq = lameSourceSampleFreqs[l.SourceSampleFreqRaw]

	l.MP3GainRaw = int8(b[lameMP3Gain])
	l.MP3GainDB = amplitudeToDB(2) / 4 * float64(l.MP3GainRaw)
	l.MP3GainFactor = math.Pow(2, l.MP3GainDB/6)

	br = NewBitReader(b[lamePreset : lamePreset+2])
	f, _ = br.fields(2, 3, 11)
	l.SurroundInfoRaw = uint8(f[1])
	l.SurroundInfo = "reserved"
	if int(l.SurroundInfoRaw) < len(lameSurroundInfo) {
		l.SurroundInfo = lameSurroundInfo[l.SurroundInfoRaw]
	}
	l.PresetID = uint16(f[2])
	l.Preset = lamePresetName(l.PresetID, l.VBRMethod, l.VBRMethodRaw)
	if l.ShortVersion == "LAME3.90." && l.PresetID != 0 {
		l.ShortVersion = "LAME3.90.3"
	}

	l.AudioBytes = binary.BigEndian.Uint32(b[lameAudioBytes:])
	l.MusicCRC = binary.BigEndian.Uint16(b[lameMusicCRC:])
	l.TagCRC = binary.BigEndian.Uint16(b[lameTagCRC:])
	return l, true
}

func parseGainAdjustment(b []byte) *GainAdjustment {
	if binary.BigEndian.Uint16(b) == 0 {
		return nil
	}
	f, err := NewBitReader(b).fields(3, 3, 1, 9)
	if err != nil {
		return nil
	}
	g := &GainAdjustment{
		NameRaw:       uint8(f[0]),
		OriginatorRaw: uint8(f[1]),
		Negative:      f[2] == 1,
		GainRaw:       uint16(f[3]),
	}
	if int(g.NameRaw) < len(gainNames) {
		g.Name = gainNames[g.NameRaw]
	}
	if int(g.OriginatorRaw) < len(gainOriginators) {
		g.Originator = gainOriginators[g.OriginatorRaw]
	}
	g.GainDB = float64(g.GainRaw) / 10
	if g.Negative {
		g.GainDB = -g.GainDB
	}
	return g
}

func amplitudeToDB(amplitude float64) float64 {
	return 20 * math.Log10(amplitude)
}

// lamePresetName names the preset id of a LAME tag; "" when unknown or unset.
func lamePresetName(id uint16, method string, rawMethod uint8) string {
	fast := ""
	if rawMethod == 4 {
		fast = "fast "
	}
	switch id {
	case 0:
		return ""
	case 1000, 470:
		return "--r3mix"
	case 1001:
		return "--alt-preset standard"
	case 1002:
		return "--alt-preset extreme"
	case 1003:
		return "--alt-preset insane"
	case 1004:
		return "--alt-preset fast standard"
	case 1005:
		return "--alt-preset fast extreme"
	case 1006:
		return "--alt-preset medium"
	case 1007:
		return "--alt-preset fast medium"
	case 1010:
		return "--preset portable"
	case 1015, 430:
		return "--preset radio"
	case 320:
		return "--preset insane"
	case 410:
		return "-V9"
	case 420:
		return "-V8"
	case 440:
		return "-V6"
	case 490:
		return "-V1"
	case 450:
		return "--preset " + fast + "portable"
	case 460:
		return "--preset " + fast + "medium"
	case 480:
		return "--preset " + fast + "standard"
	case 500:
		return "--preset " + fast + "extreme"
	}
	if id >= 8 && id <= 320 {
		if method == "cbr" {
			return fmt.Sprintf("--alt-preset cbr %d", id)
		}
		return fmt.Sprintf("--alt-preset %d", id)
	}
	return ""
}

// ClosestStandardBitrate snaps a bitrate in bps to the nearest standard
// MP3 bitrate. Bitrates above 320 kbps are rounded to 10 kbps.
func ClosestStandardBitrate(bitrate float64) int {
	rounded := int(math.Round(bitrate/1000) * 1000)
	if rounded <= 0 {
		return 0
	}
	if rounded > 320000 {
		return int(math.Round(bitrate/10000) * 10000)
	}
	for i, std := range standardBitrates {
		lower := 0
		if i+1 < len(standardBitrates) {
			lower = standardBitrates[i+1]
		}
		if rounded >= (std+lower)/2 {
			return std
		}
	}
	return standardBitrates[len(standardBitrates)-1]
}

// trimVersion strips the NUL padding of a version string.
func trimVersion(s string) string {
	return strings.TrimRight(s, "\x00 ")
}
