package audio

import (
	"bytes"
	"testing"

	"github.com/go-audio/audio"
	"go.viam.com/test"

	"mpegaudio-backend/mp3parser"
	"mpegaudio-backend/testutils"
)

func TestProbe(t *testing.T) {
	data := testutils.Frames(testutils.MPEG1Layer3(9, testutils.Stereo), 417, 40)
	d := NewDecoder(nil)

	p, err := d.Probe(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Format, test.ShouldResemble, &audio.Format{NumChannels: 2, SampleRate: 44100})
	test.That(t, p.Layer, test.ShouldEqual, 3)

	res := mp3parser.Analyze(bytes.NewReader(data), 0, int64(len(data)))
	v, err := d.Verify(data, res)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Match, test.ShouldBeTrue)
	test.That(t, v.Mismatches, test.ShouldBeEmpty)
}

func TestProbeNoFrames(t *testing.T) {
	_, err := NewDecoder(nil).Probe(testutils.Garbage(2000))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCrossCheck(t *testing.T) {
	p := &Probe{Format: &audio.Format{NumChannels: 1, SampleRate: 48000}, Duration: 10.5}
	res := &mp3parser.Result{
		Audio:           &mp3parser.AudioInfo{Channels: 2, SampleRate: 44100},
		PlaytimeSeconds: 10,
	}

	v := CrossCheck(p, res)
	test.That(t, v.Match, test.ShouldBeFalse)
	test.That(t, v.Mismatches, test.ShouldResemble, []string{
		"channels: decoded 1, analyzed 2",
		"sample rate: decoded 48000 Hz, analyzed 44100 Hz",
	})
	test.That(t, v.DurationDelta, test.ShouldAlmostEqual, 0.5)

	res.Audio = &mp3parser.AudioInfo{Channels: 1, SampleRate: 48000}
	v = CrossCheck(p, res)
	test.That(t, v.Match, test.ShouldBeTrue)

	v = CrossCheck(p, &mp3parser.Result{})
	test.That(t, v.Match, test.ShouldBeFalse)
	test.That(t, v.Mismatches, test.ShouldResemble, []string{"analysis found no audio stream"})
}
