// Package handlers is made to handle requests
package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mpegaudio-backend/audio"
	"mpegaudio-backend/container"
	"mpegaudio-backend/models"
	"mpegaudio-backend/mp3parser"
)

// Version is reported by the health check.
const Version = "1.0.0"

// Config configures the HTTP API.
type Config struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	// base analyzer options; requests may override the histogram policy
	Options mp3parser.Options
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxUploadBytes: 32 << 20,
		Options:        mp3parser.DefaultOptions(),
	}
}

type AnalyzeHandler struct {
	logger *zap.Logger
	config Config
}

func NewAnalyzeHandler(logger *zap.Logger, config Config) *AnalyzeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyzeHandler{logger: logger, config: config}
}

func (h *AnalyzeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Message: "MPEG audio analysis API is running",
		Version: Version,
	})
}

func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to parse form: %v", err),
		})
		return
	}

	var req models.AnalyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}
	policy, ok := mp3parser.ParseHistogramPolicy(req.Histogram)
	if !ok {
		c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
			Success: false,
			Message: "Histogram must be one of auto, always or never",
		})
		return
	}

	audioFile, audioHeader, err := c.Request.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
			Success: false,
			Message: "Audio file is required",
		})
		return
	}
	defer audioFile.Close()

	if !isValidAudioFile(audioHeader.Filename) {
		c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
			Success: false,
			Message: "Invalid audio file format. Only MP1, MP2, MP3 and WAV files are supported",
		})
		return
	}

	audioData, err := io.ReadAll(audioFile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.AnalyzeResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read audio file: %v", err),
		})
		return
	}

	opts := h.config.Options
	if req.Histogram != "" {
		opts.Histogram = policy
	}
	logger := h.logger.With(zap.String("filename", audioHeader.Filename))
	resp, err := Inspect(logger, bytes.NewReader(audioData), int64(len(audioData)), opts, req.Verify)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, models.AnalyzeResponse{
			Success:  false,
			Message:  err.Error(),
			Filename: audioHeader.Filename,
			Size:     int64(len(audioData)),
		})
		return
	}
	resp.Filename = audioHeader.Filename

	c.Header("X-Analysis-Warnings", fmt.Sprintf("%d", len(resp.Result.Warnings)))
	c.Header("X-Analysis-Errors", fmt.Sprintf("%d", len(resp.Result.Errors)))
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// Inspect locates the audio data in the size bytes of r, analyzes it and,
// when verify is set, decodes it to cross-check the result.
func Inspect(logger *zap.Logger, r io.ReaderAt, size int64, opts mp3parser.Options, verify bool) (*models.AnalyzeResponse, error) {
	bounds, err := container.Locate(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to locate audio data")
	}
	tags, err := container.ReadTags(r, bounds)
	if err != nil {
		logger.Warn("failed to read tags", zap.Error(err))
	}

	opts.FileFormat = bounds.Format
	opts.ID3v2Length = bounds.ID3v2Length()
	res := mp3parser.NewAnalyzer(logger, opts).Analyze(r, bounds.AVDataOffset, bounds.AVDataEnd)

	resp := &models.AnalyzeResponse{
		Success: res.OK(),
		Message: "Analysis complete",
		Size:    size,
		Bounds:  bounds,
		Tags:    tags,
		Result:  res,
	}
	if err := res.Err(); err != nil {
		resp.Message = err.Error()
	}
	if verify && res.Audio != nil {
		data, err := io.ReadAll(io.NewSectionReader(r, res.AVDataOffset, res.AVDataEnd-res.AVDataOffset))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read audio data")
		}
		v, err := audio.NewDecoder(logger).Verify(data, res)
		if err != nil {
			logger.Warn("decode check failed", zap.Error(err))
		}
		resp.Verification = v
	}
	logger.Debug("analyzed",
		zap.Int64("avdataoffset", res.AVDataOffset),
		zap.Int64("avdataend", res.AVDataEnd),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("errors", len(res.Errors)))
	return resp, nil
}

func isValidAudioFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3", ".mp2", ".mp1", ".mpa", ".wav":
		return true
	}
	return false
}
