package mp3parser

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"mpegaudio-backend/testutils"
)

func TestFrameLength(t *testing.T) {
	for _, tc := range []struct {
		name    string
		bitrate int
		v       Version
		l       Layer
		padding bool
		sr      int
		want    int
	}{
		{"mpeg1 layer3 128k", 128000, Version1, LayerIII, false, 44100, 417},
		{"mpeg1 layer3 128k padded", 128000, Version1, LayerIII, true, 44100, 418},
		{"mpeg1 layer3 320k 48k", 320000, Version1, LayerIII, false, 48000, 960},
		{"mpeg2 layer3 64k", 64000, Version2, LayerIII, false, 22050, 208},
		{"mpeg25 layer3 8k", 8000, Version25, LayerIII, false, 8000, 72},
		{"mpeg1 layer2 192k", 192000, Version1, LayerII, false, 48000, 576},
		{"mpeg1 layer1 384k", 384000, Version1, LayerI, false, 44100, 416},
		{"mpeg1 layer1 384k padded", 384000, Version1, LayerI, true, 44100, 420},
		{"free format", FreeBitrate, Version1, LayerIII, false, 44100, 0},
		{"no sample rate", 128000, Version1, LayerIII, false, 0, 0},
		{"reserved layer", 128000, Version1, LayerReserved, false, 44100, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, FrameLength(tc.bitrate, tc.v, tc.l, tc.padding, tc.sr), test.ShouldEqual, tc.want)
		})
	}
}

func TestFrameLengthSlotMultiple(t *testing.T) {
	for _, v := range []Version{Version1, Version2, Version25} {
		for _, l := range []Layer{LayerI, LayerII, LayerIII} {
			_, slot := frameCoefficient(v, l)
			for _, br := range Bitrates(v, l)[1:] {
				for _, sr := range sampleRateTable[v] {
					for _, padding := range []bool{false, true} {
						n := FrameLength(br, v, l, padding, sr)
						test.That(t, n, test.ShouldBeGreaterThan, 0)
						test.That(t, n%slot, test.ShouldEqual, 0)
						if padding {
							test.That(t, n-FrameLength(br, v, l, false, sr), test.ShouldEqual, slot)
						}
					}
				}
			}
		}
	}
}

func TestFreeFormatBitrate(t *testing.T) {
	h := Header{Version: Version1, Layer: LayerIII, SampleRate: 44100}
	test.That(t, freeFormatBitrate(417, h), test.ShouldAlmostEqual, 127706.25)

	h.Padding = true
	test.That(t, freeFormatBitrate(418, h), test.ShouldAlmostEqual, 127706.25)

	h = Header{Version: Version1, Layer: LayerI, SampleRate: 48000}
	test.That(t, freeFormatBitrate(400, h), test.ShouldAlmostEqual, 400000.0)
}

func freeFormatHeader() testutils.Header {
	return testutils.MPEG1Layer3(0, testutils.JointStereo)
}

func TestFreeFormatFrameLength(t *testing.T) {
	data := testutils.Frames(freeFormatHeader(), 500, 12)
	src := NewSource(bytes.NewReader(data), 0, int64(len(data)))

	n, err := FreeFormatFrameLength(src, 0, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 500)

	n, err = FreeFormatFrameLength(src, 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 500)
}

func TestFreeFormatModeExtensionVaries(t *testing.T) {
	first := freeFormatHeader()
	rest := first
	rest.ModeExtension = 2
	data := append(testutils.Frame(first, 480), testutils.Frames(rest, 480, 8)...)
	src := NewSource(bytes.NewReader(data), 0, int64(len(data)))

	ff, err := measureFreeFormat(src, 0, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ff.frameLength, test.ShouldEqual, 480)
	test.That(t, ff.modeExtensionVaries, test.ShouldBeTrue)
}

func TestFreeFormatNoNextFrame(t *testing.T) {
	data := append(testutils.Frame(freeFormatHeader(), 4), testutils.Garbage(600)...)
	src := NewSource(bytes.NewReader(data), 0, int64(len(data)))

	_, err := FreeFormatFrameLength(src, 0, false)
	test.That(t, errors.Is(err, ErrFreeFormat), test.ShouldBeTrue)
}

func TestFreeFormatLostSync(t *testing.T) {
	data := testutils.Frames(freeFormatHeader(), 500, 4)
	data = append(data, testutils.Garbage(700)...)
	src := NewSource(bytes.NewReader(data), 0, int64(len(data)))

	_, err := FreeFormatFrameLength(src, 0, true)
	test.That(t, errors.Is(err, ErrFreeFormat), test.ShouldBeTrue)
}
