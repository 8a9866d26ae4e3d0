// Package models contain the API request and response envelopes
package models

import (
	"mpegaudio-backend/audio"
	"mpegaudio-backend/container"
	"mpegaudio-backend/mp3parser"
)

// AnalyzeRequest holds the form fields of an analyze request
type AnalyzeRequest struct {
	Verify    bool   `form:"verify"`
	Histogram string `form:"histogram"`
}

// AnalyzeResponse is the result of analyzing one uploaded file
type AnalyzeResponse struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Filename     string              `json:"filename,omitempty"`
	Size         int64               `json:"size,omitempty"`
	Bounds       *container.Bounds   `json:"bounds,omitempty"`
	Tags         *container.Tags     `json:"tags,omitempty"`
	Result       *mp3parser.Result   `json:"result,omitempty"`
	Verification *audio.Verification `json:"verification,omitempty"`
}

// HealthResponse reports that the service is up
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}
