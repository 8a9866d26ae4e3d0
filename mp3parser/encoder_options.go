package mp3parser

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// presets that only name a bitrate; the settings table says more about them
var namedPresetBitrates = []uint16{16, 24, 40, 56, 112, 128, 160, 192, 256}

// anyMinBitrate matches any ABR/minimum bitrate byte in knownEncoderValues.
const anyMinBitrate = -1

// encoderSettings is the set of LAME tag values that identifies a preset.
type encoderSettings struct {
	minBitrate   int
	vbrQuality   uint8
	vbrMethod    uint8
	noiseShaping uint8
	stereoMode   uint8
	athType      uint8
	lowpass      int
}

// LAME tag values written by the presets of LAME 3.90 to 3.95
var knownEncoderValues = map[encoderSettings]string{
	{0xFF, 58, 1, 1, 3, 2, 20500}: "--alt-preset insane",
	{0xFF, 58, 1, 1, 3, 2, 20600}: "--alt-preset insane",
	{0xFF, 57, 1, 1, 3, 4, 20500}: "--alt-preset insane",

	{anyMinBitrate, 78, 3, 2, 3, 2, 19500}: "--alt-preset extreme",
	{anyMinBitrate, 78, 3, 2, 3, 2, 19600}: "--alt-preset extreme",
	{anyMinBitrate, 78, 3, 1, 3, 2, 19600}: "--alt-preset extreme",
	{anyMinBitrate, 78, 4, 2, 3, 2, 19500}: "--alt-preset fast extreme",
	{anyMinBitrate, 78, 4, 2, 3, 2, 19600}: "--alt-preset fast extreme",
	{anyMinBitrate, 78, 3, 2, 3, 4, 19000}: "--alt-preset standard",
	{anyMinBitrate, 78, 3, 1, 3, 4, 19000}: "--alt-preset standard",
	{anyMinBitrate, 78, 4, 2, 3, 4, 19000}: "--alt-preset fast standard",
	{anyMinBitrate, 78, 4, 1, 3, 4, 19000}: "--alt-preset fast standard",
	{anyMinBitrate, 88, 4, 1, 3, 3, 19500}: "--r3mix",
	{anyMinBitrate, 88, 4, 1, 3, 3, 19600}: "--r3mix",
	{anyMinBitrate, 67, 4, 1, 3, 4, 18000}: "--r3mix",
	{anyMinBitrate, 68, 3, 2, 3, 4, 18000}: "--alt-preset medium",
	{anyMinBitrate, 68, 4, 2, 3, 4, 18000}: "--alt-preset fast medium",

	{0xFF, 99, 1, 1, 1, 2, 0}:     "--preset studio",
	{0xFF, 58, 2, 1, 3, 2, 20600}: "--preset studio",
	{0xFF, 58, 2, 1, 3, 2, 20500}: "--preset studio",
	{0xFF, 57, 2, 1, 3, 4, 20500}: "--preset studio",
	{0xC0, 88, 1, 1, 1, 2, 0}:     "--preset cd",
	{0xC0, 58, 2, 2, 3, 2, 19600}: "--preset cd",
	{0xC0, 58, 2, 2, 3, 2, 19500}: "--preset cd",
	{0xC0, 57, 2, 1, 3, 4, 19500}: "--preset cd",
	{0xA0, 78, 1, 1, 3, 2, 18000}: "--preset hifi",
	{0xA0, 58, 2, 2, 3, 2, 18000}: "--preset hifi",
	{0xA0, 57, 2, 1, 3, 4, 18000}: "--preset hifi",
	{0x80, 67, 1, 1, 3, 2, 18000}: "--preset tape",
	{0x80, 67, 1, 1, 3, 2, 15000}: "--preset radio",
	{0x70, 67, 1, 1, 3, 2, 15000}: "--preset fm",
	{0x70, 58, 2, 2, 3, 2, 16000}: "--preset tape/radio/fm",
	{0x70, 57, 2, 1, 3, 4, 16000}: "--preset tape/radio/fm",
	{0x38, 58, 2, 2, 0, 2, 10000}: "--preset voice",
	{0x38, 57, 2, 1, 0, 4, 15000}: "--preset voice",
	{0x38, 57, 2, 1, 0, 4, 16000}: "--preset voice",
	{0x28, 65, 1, 1, 0, 2, 7500}:  "--preset mw-us",
	{0x28, 65, 1, 1, 0, 2, 7600}:  "--preset mw-us",
	{0x28, 58, 2, 2, 0, 2, 7000}:  "--preset mw-us",
	{0x28, 57, 2, 1, 0, 4, 10500}: "--preset mw-us",
	{0x28, 57, 2, 1, 0, 4, 11200}: "--preset mw-us",
	{0x28, 57, 2, 1, 0, 4, 8800}:  "--preset mw-us",
	{0x18, 58, 2, 2, 0, 2, 4000}:  "--preset phon+/lw/mw-eu/sw",
	{0x18, 58, 2, 2, 0, 2, 3900}:  "--preset phon+/lw/mw-eu/sw",
	{0x18, 57, 2, 1, 0, 4, 5900}:  "--preset phon+/lw/mw-eu/sw",
	{0x18, 57, 2, 1, 0, 4, 6200}:  "--preset phon+/lw/mw-eu/sw",
	{0x18, 57, 2, 1, 0, 4, 3200}:  "--preset phon+/lw/mw-eu/sw",
	{0x10, 58, 2, 2, 0, 2, 3800}:  "--preset phone",
	{0x10, 58, 2, 2, 0, 2, 3700}:  "--preset phone",
	{0x10, 57, 2, 1, 0, 4, 5600}:  "--preset phone",
}

// lowpass frequencies a preset sets on its own, keyed by "preset|Hz"
var expectedLowpass = map[string]bool{
	"insane|20500":        true,
	"insane|20600":        true,
	"medium|18000":        true,
	"fast medium|18000":   true,
	"extreme|19500":       true,
	"extreme|19600":       true,
	"fast extreme|19500":  true,
	"fast extreme|19600":  true,
	"standard|19000":      true,
	"fast standard|19000": true,
	"r3mix|19500":         true,
	"r3mix|19600":         true,
	"r3mix|18000":         true,
}

// output sample rates a preset picks on its own, keyed by "preset|Hz"
var expectedResampledRate = map[string]bool{
	"phon+/lw/mw-eu/sw|16000": true,
	"mw-us|24000":             true,
	"mw-us|32000":             true,
	"mw-us|16000":             true,
	"phone|16000":             true,
	"phone|11025":             true,
	"radio|32000":             true,
	"fm/radio|32000":          true,
	"fm|32000":                true,
	"voice|32000":             true,
}

// GuessEncoderOptions reconstructs the encoder command line options from
// the tags of an analyzed stream. It returns "" when nothing is known.
func GuessEncoderOptions(res *Result) string {
	if res == nil || res.Audio == nil || res.MPEG == nil {
		return ""
	}
	audio, mpeg := res.Audio, res.MPEG
	var lame *LAMEInfo
	if mpeg.VBR != nil && mpeg.VBR.Xing != nil && mpeg.VBR.Xing.LAME.Full() {
		lame = mpeg.VBR.Xing.LAME
	}
	mode := strings.ToUpper(string(audio.BitrateMode))
	withBitrate := func() string {
		if audio.BitrateMode == BitrateModeCBR {
			return fmt.Sprintf("%s%d", mode, int(math.Ceil(audio.Bitrate/1000)))
		}
		return mode
	}

	var opts string
	switch {
	case mpeg.VBRMethod == "Fraunhofer" && mpeg.VBR.VBRI.Quality != 0:
		opts = fmt.Sprintf("VBR q%d", mpeg.VBR.VBRI.Quality)
	case lame != nil && lame.Preset != "" && !slices.Contains(namedPresetBitrates, lame.PresetID):
		opts = lame.Preset
	case lame != nil && lame.VBRQuality != 0:
		opts = guessFromSettings(lame, audio.BitrateMode, withBitrate)
	case lame != nil && lame.BitrateABR != 0:
		opts = fmt.Sprintf("ABR%d", lame.BitrateABR)
	case audio.Bitrate != 0:
		opts = withBitrate()
	}

	if lame != nil {
		if lame.BitrateMin != 0 {
			opts += fmt.Sprintf(" -b%d", lame.BitrateMin)
		}
		if lame.EncodingFlags.NoGapPrev || lame.EncodingFlags.NoGapNext {
			opts += " --nogap"
		}
		if lame.LowpassFrequency != 0 && lowpassOverridden(opts, lame.LowpassFrequency, mpeg.Header.SampleRate) {
			opts += fmt.Sprintf(" --lowpass %d", lame.LowpassFrequency)
		}
		if resampled(opts, lame.SourceSampleFreqRaw, mpeg.Header.SampleRate) {
			opts += fmt.Sprintf(" --resample %d", mpeg.Header.SampleRate)
		}
	}

	if opts == "" && audio.Bitrate != 0 && audio.BitrateMode != "" {
		opts = mode
	}
	return opts
}

func guessFromSettings(lame *LAMEInfo, mode BitrateMode, withBitrate func() string) string {
	key := encoderSettings{
		minBitrate:   int(lame.ABRMinBitrateRaw),
		vbrQuality:   lame.VBRQuality,
		vbrMethod:    lame.VBRMethodRaw,
		noiseShaping: lame.NoiseShaping,
		stereoMode:   lame.StereoModeRaw,
		athType:      lame.ATHType,
		lowpass:      lame.LowpassFrequency,
	}
	if name, ok := knownEncoderValues[key]; ok {
		return name
	}
	key.minBitrate = anyMinBitrate
	if name, ok := knownEncoderValues[key]; ok {
		return name
	}
	if mode == BitrateModeVBR {
		v := 10 - int(math.Ceil(float64(lame.VBRQuality)/10))
		q := 100 - int(lame.VBRQuality) - v*10
		return fmt.Sprintf("-V%d -q%d", v, q)
	}
	return withBitrate()
}

// presetName returns the preset named by options such as
// "--alt-preset fast standard" as "fast standard".
func presetName(opts string) (flag, name string) {
	words := strings.SplitN(opts, " ", 4)
	flag = words[0]
	if flag == "--r3mix" {
		return flag, "r3mix"
	}
	if len(words) > 1 {
		name = words[1]
	}
	if name == "fast" && len(words) > 2 {
		name += " " + words[2]
	}
	return flag, name
}

// lowpassOverridden reports whether the tag lowpass differs from what the
// preset in opts would have used.
func lowpassOverridden(opts string, lowpass, sampleRate int) bool {
	flag, name := presetName(opts)
	switch flag {
	case "--preset", "--alt-preset", "--r3mix":
	default:
		return false
	}
	switch name {
	case "portable", "medium", "standard", "extreme", "insane",
		"fast portable", "fast medium", "fast standard", "fast extreme", "fast insane", "r3mix":
	default:
		return false
	}
	if expectedLowpass[fmt.Sprintf("%s|%d", name, lowpass)] {
		return false
	}
	return lowpass < 22050 && math.Round(float64(lowpass)/1000) < math.Round(float64(sampleRate)/2000)
}

// resampled reports whether the output sample rate differs from the source
// rate recorded in the tag in a way the preset in opts does not explain.
func resampled(opts string, sourceFreq uint8, sampleRate int) bool {
	switch {
	case sampleRate == 44100:
		return sourceFreq != 1
	case sampleRate == 48000:
		return sourceFreq != 2
	case sampleRate > 44100 || sourceFreq == 0:
		return false
	}
	words := strings.SplitN(opts, " ", 4)
	if words[0] != "--preset" && words[0] != "--alt-preset" {
		return true
	}
	name := ""
	if len(words) > 1 {
		name = words[1]
	}
	switch name {
	case "fast", "portable", "medium", "standard", "extreme", "insane":
		return true
	}
	return !expectedResampledRate[fmt.Sprintf("%s|%d", name, sampleRate)]
}
