// Package audio decodes MPEG audio to check what the analyzer reports.
package audio

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"github.com/pkg/errors"
	"github.com/tosone/minimp3"
	"go.uber.org/zap"

	"mpegaudio-backend/mp3parser"
)

// BitDepth is the sample size minimp3 decodes to.
const BitDepth = 16

// ErrNoFrames is returned when the decoder finds no MPEG audio frames.
var ErrNoFrames = errors.New("decoder found no MPEG audio frames")

// Probe is what a full decode says about a stream.
type Probe struct {
	Format   *audio.Format `json:"format"`
	Kbps     int           `json:"kbps"`
	Layer    int           `json:"layer"`
	Samples  int           `json:"samples_per_channel"`
	Duration float64       `json:"duration_seconds"`
}

// Verification compares a Probe with an analysis result.
type Verification struct {
	Probe      *Probe   `json:"probe"`
	Match      bool     `json:"match"`
	Mismatches []string `json:"mismatches,omitempty"`
	// decoded duration minus analyzed playtime, in seconds
	DurationDelta float64 `json:"duration_delta"`
}

// Decoder runs minimp3 over MPEG audio data.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder returns a Decoder. A nil logger discards log output.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Probe decodes mp3Data in full.
func (d *Decoder) Probe(mp3Data []byte) (*Probe, error) {
	decoder, pcm, err := minimp3.DecodeFull(mp3Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode MP3")
	}
	defer decoder.Close()

	if decoder.Channels == 0 || decoder.SampleRate == 0 {
		return nil, ErrNoFrames
	}
	samples := len(pcm) / (BitDepth / 8) / decoder.Channels
	p := &Probe{
		Format: &audio.Format{
			NumChannels: decoder.Channels,
			SampleRate:  decoder.SampleRate,
		},
		Kbps:     decoder.Kbps,
		Layer:    decoder.Layer,
		Samples:  samples,
		Duration: float64(samples) / float64(decoder.SampleRate),
	}
	d.logger.Debug("decoded stream",
		zap.Int("channels", decoder.Channels),
		zap.Int("sample_rate", decoder.SampleRate),
		zap.Int("samples", samples))
	return p, nil
}

// Verify decodes mp3Data and compares it with res.
func (d *Decoder) Verify(mp3Data []byte, res *mp3parser.Result) (*Verification, error) {
	p, err := d.Probe(mp3Data)
	if err != nil {
		return nil, err
	}
	return CrossCheck(p, res), nil
}

// CrossCheck compares the channel count and sample rate of a decode with
// the analysis result.
func CrossCheck(p *Probe, res *mp3parser.Result) *Verification {
	v := &Verification{Probe: p}
	if res == nil || res.Audio == nil {
		v.Mismatches = append(v.Mismatches, "analysis found no audio stream")
		return v
	}
	if got, want := p.Format.NumChannels, res.Audio.Channels; got != want {
		v.Mismatches = append(v.Mismatches, fmt.Sprintf("channels: decoded %d, analyzed %d", got, want))
	}
	if got, want := p.Format.SampleRate, res.Audio.SampleRate; got != want {
		v.Mismatches = append(v.Mismatches, fmt.Sprintf("sample rate: decoded %d Hz, analyzed %d Hz", got, want))
	}
	v.DurationDelta = math.Round((p.Duration-res.PlaytimeSeconds)*1000) / 1000
	v.Match = len(v.Mismatches) == 0
	return v
}
