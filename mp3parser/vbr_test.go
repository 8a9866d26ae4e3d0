package mp3parser

import (
	"bytes"
	"testing"

	"go.viam.com/test"

	"mpegaudio-backend/testutils"
)

func stereoHeader(t *testing.T) (testutils.Header, Header) {
	t.Helper()
	raw := testutils.MPEG1Layer3(9, testutils.Stereo)
	_, h, _, err := ParseHeader(raw.Bytes())
	test.That(t, err, test.ShouldBeNil)
	return raw, h
}

func probe(frame []byte) []byte {
	if len(frame) > vbrProbeSize {
		return frame[:vbrProbeSize]
	}
	return frame
}

func TestExtractXing(t *testing.T) {
	raw, h := stereoHeader(t)
	frame := testutils.XingFrame(raw, 417, 36, testutils.Xing{
		Flags:   testutils.XingFrames | testutils.XingBytes | testutils.XingTOC | testutils.XingVBRScale,
		Frames:  100,
		Bytes:   1000000,
		Quality: 50,
	})

	vbr, diags := ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, diags.warnings, test.ShouldBeEmpty)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Kind, test.ShouldEqual, VBRKindXing)
	test.That(t, vbr.Method(), test.ShouldEqual, "Xing")
	test.That(t, vbr.Frames(), test.ShouldEqual, 100)
	test.That(t, vbr.Bytes(), test.ShouldEqual, 1000000)

	x := vbr.Xing
	test.That(t, x.Offset, test.ShouldEqual, 36)
	test.That(t, x.Flags, test.ShouldResemble, XingFlags{Frames: true, Bytes: true, TOC: true, VBRScale: true})
	test.That(t, x.TOC, test.ShouldHaveLength, 100)
	test.That(t, x.TOC[99], test.ShouldEqual, 99)
	test.That(t, x.QualityScale, test.ShouldEqual, 50)
	test.That(t, x.LAME, test.ShouldBeNil)
}

func TestExtractInfoWithoutOptionalFields(t *testing.T) {
	raw := testutils.MPEG1Layer3(9, testutils.Mono)
	_, h, _, err := ParseHeader(raw.Bytes())
	test.That(t, err, test.ShouldBeNil)
	frame := testutils.XingFrame(raw, 417, 21, testutils.Xing{ID: "Info", Flags: testutils.XingFrames, Frames: 40})

	vbr, _ := ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Kind, test.ShouldEqual, VBRKindInfo)
	test.That(t, vbr.Xing.Offset, test.ShouldEqual, 21)
	test.That(t, vbr.Frames(), test.ShouldEqual, 40)
	test.That(t, vbr.Bytes(), test.ShouldEqual, 0)
	test.That(t, vbr.Xing.TOC, test.ShouldBeNil)
}

func TestExtractXingMPEG25Mono(t *testing.T) {
	raw := testutils.Header{
		Version:     testutils.Version25,
		Layer:       testutils.Layer3,
		Protection:  1,
		Bitrate:     8,
		ChannelMode: testutils.Mono,
	}
	_, h, _, err := ParseHeader(raw.Bytes())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.SideInfoSize(), test.ShouldEqual, 9)

	frame := testutils.XingFrame(raw, 417, 21, testutils.Xing{Flags: testutils.XingFrames, Frames: 12})
	vbr, _ := ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Xing.Offset, test.ShouldEqual, 21)
	test.That(t, vbr.Frames(), test.ShouldEqual, 12)

	frame = testutils.XingFrame(raw, 417, 13, testutils.Xing{Flags: testutils.XingFrames, Frames: 12})
	vbr, _ = ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, vbr, test.ShouldBeNil)
}

func TestExtractNoTag(t *testing.T) {
	raw, h := stereoHeader(t)
	vbr, diags := ExtractVBR(nil, 0, probe(testutils.Frame(raw, 417)), h)
	test.That(t, vbr, test.ShouldBeNil)
	test.That(t, diags.warnings, test.ShouldBeEmpty)

	var none *VBRInfo
	test.That(t, none.Method(), test.ShouldEqual, "")
	test.That(t, none.Frames(), test.ShouldEqual, 0)
	test.That(t, none.Bytes(), test.ShouldEqual, 0)
}

func TestExtractTruncatedXing(t *testing.T) {
	raw, h := stereoHeader(t)
	frame := testutils.XingFrame(raw, 417, 36, testutils.Xing{
		Flags:  testutils.XingFrames | testutils.XingBytes,
		Frames: 100,
		Bytes:  1000000,
	})
	for _, n := range []int{40, 44, 47, 51} {
		vbr, _ := ExtractVBR(nil, 0, frame[:n], h)
		test.That(t, vbr, test.ShouldBeNil)
	}
	vbr, _ := ExtractVBR(nil, 0, frame[:52], h)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Bytes(), test.ShouldEqual, 1000000)
}

func fullLAME() *testutils.LAME {
	return &testutils.LAME{
		Version:        "LAME3.97 ",
		VBRMethod:      4,
		Lowpass:        190,
		Peak:           0x00800000,
		TrackGain:      0x2E41, // track, automatic, -6.5 dB
		Flags:          0x15,
		ABRBitrate:     32,
		EncoderDelay:   576,
		EndPadding:     1260,
		Misc:           0x4D,
		MP3Gain:        -2,
		PresetSurround: 0x0800 | 480,
		AudioBytes:     999583,
		MusicCRC:       0x1234,
		TagCRC:         0xABCD,
	}
}

func TestExtractLAME(t *testing.T) {
	raw, h := stereoHeader(t)
	frame := testutils.XingFrame(raw, 417, 36, testutils.Xing{
		Flags:   testutils.XingFrames | testutils.XingBytes | testutils.XingVBRScale,
		Frames:  2400,
		Bytes:   999583,
		Quality: 78,
		LAME:    fullLAME(),
	})

	vbr, diags := ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, diags.warnings, test.ShouldBeEmpty)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Xing.QualityScale, test.ShouldEqual, 0)

	l := vbr.Xing.LAME
	test.That(t, l.Full(), test.ShouldBeTrue)
	test.That(t, l.ShortVersion, test.ShouldEqual, "LAME3.97 ")
	test.That(t, l.LongVersion, test.ShouldEqual, "")
	test.That(t, l.VBRQuality, test.ShouldEqual, 78)
	test.That(t, l.VBRMethodRaw, test.ShouldEqual, 4)
	test.That(t, l.VBRMethod, test.ShouldEqual, "vbr-new / vbr-mtrh")
	test.That(t, l.Mode(), test.ShouldEqual, BitrateModeVBR)
	test.That(t, l.LowpassFrequency, test.ShouldEqual, 19000)
	test.That(t, l.PeakAmplitude, test.ShouldAlmostEqual, 1.0)
	test.That(t, l.PeakDB, test.ShouldAlmostEqual, 0.0)

	test.That(t, l.TrackGain, test.ShouldNotBeNil)
	test.That(t, l.TrackGain.Name, test.ShouldEqual, "Track Gain Adjustment")
	test.That(t, l.TrackGain.Originator, test.ShouldEqual, "determined automatically")
	test.That(t, l.TrackGain.Negative, test.ShouldBeTrue)
	test.That(t, l.TrackGain.GainDB, test.ShouldAlmostEqual, -6.5)
	test.That(t, l.AlbumGain, test.ShouldBeNil)

	test.That(t, l.EncodingFlags, test.ShouldResemble, LAMEEncodingFlags{NSPsyTune: true})
	test.That(t, l.ATHType, test.ShouldEqual, 5)
	test.That(t, l.BitrateMin, test.ShouldEqual, 32)
	test.That(t, l.BitrateABR, test.ShouldEqual, 0)
	test.That(t, l.EncoderDelay, test.ShouldEqual, 576)
	test.That(t, l.EndPadding, test.ShouldEqual, 1260)

	test.That(t, l.SourceSampleFreq, test.ShouldEqual, "44.1 kHz")
	test.That(t, l.StereoMode, test.ShouldEqual, "joint stereo")
	test.That(t, l.NoiseShaping, test.ShouldEqual, 1)
	test.That(t, l.NotOptimalQuality, test.ShouldBeFalse)

	test.That(t, l.MP3GainRaw, test.ShouldEqual, -2)
	test.That(t, l.MP3GainDB, test.ShouldAlmostEqual, -3.0103, 0.0001)

	test.That(t, l.SurroundInfo, test.ShouldEqual, "DPL encoding")
	test.That(t, l.PresetID, test.ShouldEqual, 480)
	test.That(t, l.Preset, test.ShouldEqual, "--preset fast standard")
	test.That(t, l.AudioBytes, test.ShouldEqual, 999583)
	test.That(t, l.MusicCRC, test.ShouldEqual, 0x1234)
	test.That(t, l.TagCRC, test.ShouldEqual, 0xABCD)
}

func TestExtractLAMEUnknownPreset(t *testing.T) {
	raw, h := stereoHeader(t)
	lame := fullLAME()
	lame.PresetSurround = 999
	frame := testutils.XingFrame(raw, 417, 36, testutils.Xing{Flags: testutils.XingFrames, Frames: 10, LAME: lame})

	vbr, diags := ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, vbr.Xing.LAME.Preset, test.ShouldEqual, "")
	test.That(t, diags.warnings, test.ShouldHaveLength, 1)
	test.That(t, diags.warnings[0].Code, test.ShouldEqual, CodeUnknownPreset)
	test.That(t, diags.warnings[0].Message, test.ShouldEqual, "Unknown LAME preset used (999)")
}

func TestExtractOldLAME(t *testing.T) {
	raw, h := stereoHeader(t)
	frame := testutils.XingFrame(raw, 417, 36, testutils.Xing{
		Flags:  testutils.XingFrames,
		Frames: 10,
		LAME:   &testutils.LAME{Version: "LAME3.88 "},
	})

	vbr, _ := ExtractVBR(nil, 0, probe(frame), h)
	l := vbr.Xing.LAME
	test.That(t, l, test.ShouldNotBeNil)
	test.That(t, l.Full(), test.ShouldBeFalse)
	test.That(t, l.ShortVersion, test.ShouldEqual, "LAME3.88 ")
	test.That(t, trimVersion(l.LongVersion), test.ShouldEqual, "LAME3.88")
}

func TestExtractVBRI(t *testing.T) {
	raw, h := stereoHeader(t)
	frame := testutils.VBRIFrame(raw, 417, testutils.VBRI{
		Version:     1,
		Delay:       1,
		Quality:     75,
		Bytes:       500000,
		Frames:      1200,
		Scale:       2,
		EntryBytes:  2,
		EntryFrames: 100,
		Entries:     []uint32{100, 200, 300},
	})

	vbr, _ := ExtractVBR(nil, 1000, probe(frame), h)
	test.That(t, vbr, test.ShouldNotBeNil)
	test.That(t, vbr.Kind, test.ShouldEqual, VBRKindVBRI)
	test.That(t, vbr.Method(), test.ShouldEqual, "Fraunhofer")
	test.That(t, vbr.Frames(), test.ShouldEqual, 1200)
	test.That(t, vbr.Bytes(), test.ShouldEqual, 500000)

	v := vbr.VBRI
	test.That(t, v.Quality, test.ShouldEqual, 75)
	test.That(t, v.SeekEntries, test.ShouldEqual, 3)
	test.That(t, v.SeekRelative, test.ShouldResemble, []int64{200, 400, 600})
	test.That(t, v.SeekAbsolute, test.ShouldResemble, []int64{1200, 1600, 2200})
}

func TestExtractVBRISeekTableBeyondProbe(t *testing.T) {
	raw, h := stereoHeader(t)
	entries := make([]uint32, 150)
	for i := range entries {
		entries[i] = 1
	}
	frame := testutils.VBRIFrame(raw, 417, testutils.VBRI{
		Bytes:       300000,
		Frames:      700,
		Scale:       1,
		EntryBytes:  2,
		EntryFrames: 5,
		Entries:     entries,
	})
	src := NewSource(bytes.NewReader(frame), 0, int64(len(frame)))

	vbr, _ := ExtractVBR(src, 0, probe(frame), h)
	test.That(t, vbr.VBRI.SeekRelative, test.ShouldHaveLength, 150)
	test.That(t, vbr.VBRI.SeekAbsolute[149], test.ShouldEqual, 150)

	vbr, _ = ExtractVBR(nil, 0, probe(frame), h)
	test.That(t, vbr.VBRI.SeekRelative, test.ShouldHaveLength, (vbrProbeSize-vbriOffset-vbriHeaderSize)/2)
}

func TestClosestStandardBitrate(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want int
	}{
		{127706.25, 128000},
		{130000, 128000},
		{318000, 320000},
		{33000, 32000},
		{330400, 330000},
		{0, 0},
	} {
		test.That(t, ClosestStandardBitrate(tc.in), test.ShouldEqual, tc.want)
	}
}

func TestLAMEPresetName(t *testing.T) {
	test.That(t, lamePresetName(0, "vbr-old / vbr-rh", 3), test.ShouldEqual, "")
	test.That(t, lamePresetName(1001, "vbr-old / vbr-rh", 3), test.ShouldEqual, "--alt-preset standard")
	test.That(t, lamePresetName(460, "vbr-old / vbr-rh", 3), test.ShouldEqual, "--preset medium")
	test.That(t, lamePresetName(460, "vbr-new / vbr-mtrh", 4), test.ShouldEqual, "--preset fast medium")
	test.That(t, lamePresetName(128, "cbr", 1), test.ShouldEqual, "--alt-preset cbr 128")
	test.That(t, lamePresetName(128, "abr", 2), test.ShouldEqual, "--alt-preset 128")
	test.That(t, lamePresetName(2000, "abr", 2), test.ShouldEqual, "")
}

func TestLAMEMode(t *testing.T) {
	for raw, want := range map[uint8]BitrateMode{
		0: BitrateModeUnknown,
		1: BitrateModeCBR,
		2: BitrateModeABR,
		3: BitrateModeVBR,
		6: BitrateModeVBR,
		8: BitrateModeCBR,
		9: BitrateModeABR,
		7: BitrateModeUnknown,
	} {
		test.That(t, (&LAMEInfo{VBRMethodRaw: raw}).Mode(), test.ShouldEqual, want)
	}
}
