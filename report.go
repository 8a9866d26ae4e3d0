package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"mpegaudio-backend/models"
	"mpegaudio-backend/mp3parser"
)

// report renders the parts of an analysis worth reading at a terminal.
func report(resp *models.AnalyzeResponse) string {
	t := table.NewWriter()
	t.SetTitle(resp.Filename)
	t.AppendHeader(table.Row{"Field", "Value"})

	res := resp.Result
	t.AppendRow(table.Row{"Audio data", fmt.Sprintf("%d-%d of %d bytes", res.AVDataOffset, res.AVDataEnd, resp.Size)})
	if resp.Tags != nil {
		t.AppendRow(table.Row{"Tags", fmt.Sprintf("%s: %s - %s", resp.Tags.Source, resp.Tags.Artist, resp.Tags.Title)})
	}
	if a := res.Audio; a != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Format", fmt.Sprintf("%s (%s)", a.DataFormat, a.Codec)})
		t.AppendRow(table.Row{"Channels", fmt.Sprintf("%d, %s", a.Channels, a.ChannelMode)})
		t.AppendRow(table.Row{"Sample rate", fmt.Sprintf("%d Hz", a.SampleRate)})
		t.AppendRow(table.Row{"Bitrate", fmt.Sprintf("%.0f bps %s", a.Bitrate, a.BitrateMode)})
		t.AppendRow(table.Row{"Playtime", fmt.Sprintf("%.3f s", res.PlaytimeSeconds)})
		if a.Encoder != "" {
			t.AppendRow(table.Row{"Encoder", a.Encoder})
		}
		if a.EncoderOptions != "" {
			t.AppendRow(table.Row{"Encoder options", a.EncoderOptions})
		}
	}
	if m := res.MPEG; m != nil {
		t.AppendRow(table.Row{"Frame", fmt.Sprintf("MPEG-%s %s, %d bytes", m.Header.Version, m.Header.Layer, m.FrameLength)})
		if m.VBRMethod != "" {
			t.AppendRow(table.Row{"VBR method", m.VBRMethod})
		}
		if h := m.Histogram; h != nil {
			t.AppendRow(table.Row{"Frames", h.FrameCount})
			t.AppendRow(table.Row{"Bitrates", distribution(h.BitrateDistribution)})
		}
	}
	if rg := res.ReplayGain; rg != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Track gain", gain(rg.Track)})
		t.AppendRow(table.Row{"Album gain", gain(rg.Album)})
	}
	if v := resp.Verification; v != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Decode check", lo.Ternary(v.Match, "match", strings.Join(v.Mismatches, "; "))})
		t.AppendRow(table.Row{"Duration delta", fmt.Sprintf("%+.3f s", v.DurationDelta)})
	}

	if len(res.Warnings)+len(res.Errors) > 0 {
		t.AppendSeparator()
	}
	for _, w := range messages(res.Warnings) {
		t.AppendRow(table.Row{"Warning", w})
	}
	for _, e := range messages(res.Errors) {
		t.AppendRow(table.Row{"Error", e})
	}
	return t.Render()
}

func messages(ds []mp3parser.Diagnostic) []string {
	return lo.Map(ds, func(d mp3parser.Diagnostic, _ int) string {
		return fmt.Sprintf("[%d] %s", d.Offset, d.Message)
	})
}

func distribution(d map[int]int) string {
	rates := lo.Keys(d)
	slices.Sort(rates)
	return strings.Join(lo.FilterMap(rates, func(rate, _ int) (string, bool) {
		return fmt.Sprintf("%dk:%d", rate/1000, d[rate]), d[rate] > 0
	}), " ")
}

func gain(g *mp3parser.GainRecord) string {
	if g == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f dB (%s)", g.Adjustment, g.Originator)
}
