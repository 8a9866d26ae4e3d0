package mp3parser

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"mpegaudio-backend/testutils"
)

// encodeHeader maps a decoded header back to its raw fields.
func encodeHeader(t *testing.T, h Header) RawHeader {
	t.Helper()
	indexOf := func(n int, match func(i int) bool) uint8 {
		for i := 0; i < n; i++ {
			if match(i) {
				return uint8(i)
			}
		}
		t.Fatalf("no raw value for %+v", h)
		return 0
	}
	raw := RawHeader{
		Sync:          syncPattern,
		Version:       indexOf(4, func(i int) bool { return versionTable[i] == h.Version }),
		Layer:         indexOf(4, func(i int) bool { return layerTable[i] == h.Layer }),
		Bitrate:       indexOf(15, func(i int) bool { return bitrateTable[h.Version][h.Layer][i] == h.Bitrate }),
		SampleRate:    indexOf(3, func(i int) bool { return sampleRateTable[h.Version][i] == h.SampleRate }),
		ChannelMode:   uint8(h.ChannelMode),
		ModeExtension: indexOf(4, func(i int) bool { return modeExtensionTable[h.Layer][i] == h.ModeExtension }),
		Emphasis:      indexOf(4, func(i int) bool { return emphasisTable[i] == h.Emphasis }),
	}
	if !h.Protected {
		raw.Protection = 1
	}
	flags := []struct {
		set bool
		bit *uint8
	}{
		{h.Padding, &raw.Padding},
		{h.Private, &raw.Private},
		{h.Copyright, &raw.Copyright},
		{h.Original, &raw.Original},
	}
	for _, f := range flags {
		if f.set {
			*f.bit = 1
		}
	}
	return raw
}

func TestDecodeRawHeader(t *testing.T) {
	raw := DecodeRawHeader([4]byte{0xFF, 0xFB, 0x90, 0x64})
	test.That(t, raw, test.ShouldResemble, RawHeader{
		Sync:          0x7FF,
		Version:       3,
		Layer:         1,
		Protection:    1,
		Bitrate:       9,
		SampleRate:    0,
		Padding:       0,
		Private:       0,
		ChannelMode:   1,
		ModeExtension: 2,
		Copyright:     0,
		Original:      1,
		Emphasis:      0,
	})
	test.That(t, raw.Bytes(), test.ShouldResemble, [4]byte{0xFF, 0xFB, 0x90, 0x64})

	_, h, v, err := ParseHeader([]byte{0xFF, 0xFB, 0x90, 0x64})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Bitrate15, test.ShouldBeFalse)
	test.That(t, h, test.ShouldResemble, Header{
		Version:       Version1,
		Layer:         LayerIII,
		Bitrate:       128000,
		SampleRate:    44100,
		ChannelMode:   ChannelJointStereo,
		ModeExtension: "MS",
		Original:      true,
		Emphasis:      "none",
		FrameLength:   417,
	})
	test.That(t, h.Channels(), test.ShouldEqual, 2)
	test.That(t, h.SamplesPerFrame(), test.ShouldEqual, 1152)
	test.That(t, h.SideInfoSize(), test.ShouldEqual, 32)
}

func TestHeaderRoundTrip(t *testing.T) {
	count := 0
	for _, version := range []byte{testutils.Version1, testutils.Version2, testutils.Version25} {
		for _, layer := range []byte{testutils.Layer1, testutils.Layer2, testutils.Layer3} {
			for bitrate := byte(0); bitrate <= 15; bitrate++ {
				for sr := byte(0); sr < 3; sr++ {
					for mode := byte(0); mode < 4; mode++ {
						for ext := byte(0); ext < 4; ext++ {
							for _, emphasis := range []byte{0, 1, 3} {
								for bits := byte(0); bits < 4; bits++ {
									b := testutils.Header{
										Version:       version,
										Layer:         layer,
										Protection:    bits & 1,
										Bitrate:       bitrate,
										SampleRate:    sr,
										Padding:       bits >> 1,
										ChannelMode:   mode,
										ModeExtension: ext,
										Emphasis:      emphasis,
									}.Bytes()
									raw, h, v, err := ParseHeader(b)
									test.That(t, err, test.ShouldBeNil)
									test.That(t, v.Bitrate15, test.ShouldEqual, bitrate == 15)

									again, _, err := NewHeader(encodeHeader(t, h))
									test.That(t, err, test.ShouldBeNil)
									test.That(t, again, test.ShouldResemble, h)
									if bitrate != 15 {
										test.That(t, encodeHeader(t, h), test.ShouldResemble, raw)
									}
									count++
								}
							}
						}
					}
				}
			}
		}
	}
	test.That(t, count, test.ShouldEqual, 3*3*16*3*4*4*3*4)
}

func TestHeaderBitrate15(t *testing.T) {
	b := testutils.MPEG1Layer3(15, testutils.Stereo).Bytes()
	_, h, v, err := ParseHeader(b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Bitrate15, test.ShouldBeTrue)
	test.That(t, h.Bitrate, test.ShouldEqual, FreeBitrate)
	test.That(t, h.IsFree(), test.ShouldBeTrue)
	test.That(t, h.FrameLength, test.ShouldEqual, 0)
}

func TestHeaderValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		raw    RawHeader
		fields []string
	}{
		{"sync", RawHeader{Sync: 0x7FE, Version: 3, Layer: 1}, []string{"synch"}},
		{"version", RawHeader{Sync: 0x7FF, Version: 1, Layer: 1}, []string{"version"}},
		{"layer", RawHeader{Sync: 0x7FF, Version: 3, Layer: 0}, []string{"layer"}},
		{"sample rate", RawHeader{Sync: 0x7FF, Version: 3, Layer: 1, SampleRate: 3}, []string{"sample_rate"}},
		{"emphasis", RawHeader{Sync: 0x7FF, Version: 3, Layer: 1, Emphasis: 2}, []string{"emphasis"}},
		{"several", RawHeader{Sync: 0x7FF, Version: 1, Layer: 0, Emphasis: 2}, []string{"version", "layer", "emphasis"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.raw.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			var herr *HeaderError
			test.That(t, errors.As(err, &herr), test.ShouldBeTrue)
			test.That(t, herr.Fields, test.ShouldResemble, tc.fields)

			_, _, err = NewHeader(tc.raw)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, _, _, err := ParseHeader([]byte{0xFF, 0xFB})
	test.That(t, errors.Is(err, ErrShortHeader), test.ShouldBeTrue)
}

func TestCheckLayerII(t *testing.T) {
	header := func(bitrateIndex, mode byte) Header {
		b := testutils.Header{Version: testutils.Version1, Layer: testutils.Layer2, Protection: 1, Bitrate: bitrateIndex, ChannelMode: mode}.Bytes()
		_, h, _, err := ParseHeader(b)
		test.That(t, err, test.ShouldBeNil)
		return h
	}
	// index 1 is 32 kbps, 4 is 64 kbps, 5 is 80 kbps, 11 is 224 kbps
	test.That(t, header(1, testutils.Mono).CheckLayerII(), test.ShouldBeNil)
	test.That(t, header(11, testutils.Mono).CheckLayerII(), test.ShouldNotBeNil)
	test.That(t, header(1, testutils.Stereo).CheckLayerII(), test.ShouldNotBeNil)
	test.That(t, header(4, testutils.Stereo).CheckLayerII(), test.ShouldBeNil)
	test.That(t, header(5, testutils.JointStereo).CheckLayerII(), test.ShouldNotBeNil)
	test.That(t, header(11, testutils.Stereo).CheckLayerII(), test.ShouldBeNil)
	test.That(t, header(0, testutils.Stereo).CheckLayerII(), test.ShouldBeNil)

	err := header(5, testutils.DualChannel).CheckLayerII()
	test.That(t, errors.Is(err, ErrLayerIIMode), test.ShouldBeTrue)
}

func TestHeaderJSON(t *testing.T) {
	h, _, err := NewHeader(DecodeRawHeader([4]byte(testutils.MPEG1Layer3(9, testutils.JointStereo).Bytes())))
	test.That(t, err, test.ShouldBeNil)

	b, err := json.Marshal(h)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(b), test.ShouldContainSubstring, `"version":"1","layer":"III"`)
	test.That(t, string(b), test.ShouldContainSubstring, `"channelmode":"joint stereo"`)

	var back Header
	test.That(t, json.Unmarshal(b, &back), test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, h)

	var l Layer
	test.That(t, l.UnmarshalText([]byte("IV")), test.ShouldNotBeNil)
}
