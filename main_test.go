package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"mpegaudio-backend/models"
	"mpegaudio-backend/mp3parser"
	"mpegaudio-backend/testutils"
)

func writeStream(t *testing.T) string {
	t.Helper()
	data := append(testutils.Frames(testutils.MPEG1Layer3(9, testutils.Stereo), 417, 50), testutils.ID3v1("Song", "Band")...)
	path := filepath.Join(t.TempDir(), "song.mp3")
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}

func TestAnalyzeFileTable(t *testing.T) {
	path := writeStream(t)
	var out bytes.Buffer
	err := analyzeFile(&out, zaptest.NewLogger(t), path, mp3parser.DefaultOptions(), true, false)
	test.That(t, err, test.ShouldBeNil)

	s := out.String()
	test.That(t, s, test.ShouldContainSubstring, "0-20850 of 20978 bytes")
	test.That(t, s, test.ShouldContainSubstring, "ID3v1: Band - Song")
	test.That(t, s, test.ShouldContainSubstring, "44100 Hz")
	test.That(t, s, test.ShouldContainSubstring, "128000 bps cbr")
	test.That(t, s, test.ShouldContainSubstring, "128k:50")
	test.That(t, s, test.ShouldContainSubstring, "CBR128")
	test.That(t, s, test.ShouldContainSubstring, "match")
}

func TestAnalyzeFileJSON(t *testing.T) {
	path := writeStream(t)
	var out bytes.Buffer
	err := analyzeFile(&out, zaptest.NewLogger(t), path, mp3parser.DefaultOptions(), false, true)
	test.That(t, err, test.ShouldBeNil)

	var resp models.AnalyzeResponse
	test.That(t, json.Unmarshal(out.Bytes(), &resp), test.ShouldBeNil)
	test.That(t, resp.Success, test.ShouldBeTrue)
	test.That(t, resp.Filename, test.ShouldEqual, path)
	test.That(t, resp.Result.AVDataEnd, test.ShouldEqual, 20850)
	test.That(t, resp.Verification, test.ShouldBeNil)
}

func TestAnalyzeFileMissing(t *testing.T) {
	err := analyzeFile(&bytes.Buffer{}, zaptest.NewLogger(t), filepath.Join(t.TempDir(), "nope.mp3"), mp3parser.DefaultOptions(), false, false)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestReportDiagnostics(t *testing.T) {
	resp := &models.AnalyzeResponse{
		Filename: "noise.mp3",
		Size:     1000,
		Result: &mp3parser.Result{
			AVDataEnd: 1000,
			Errors: []mp3parser.Diagnostic{
				{Code: mp3parser.CodeSyncNotFound, Message: "could not find valid MPEG synch before end of file"},
			},
		},
	}
	s := report(resp)
	test.That(t, s, test.ShouldContainSubstring, "noise.mp3")
	test.That(t, s, test.ShouldContainSubstring, "[0] could not find valid MPEG synch before end of file")
}

func TestDistribution(t *testing.T) {
	test.That(t, distribution(map[int]int{160000: 3, 32000: 0, 128000: 7}), test.ShouldEqual, "128k:7 160k:3")
}
