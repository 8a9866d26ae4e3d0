package mp3parser

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrShortHeader is returned when fewer than four header bytes are available.
	ErrShortHeader = errors.New("short MPEG audio header")
	// ErrOutOfBounds is returned for reads starting outside the audio data.
	ErrOutOfBounds = errors.New("read outside audio data")
	// ErrLayerIIMode is returned for bitrate and channel mode pairs Layer II forbids.
	ErrLayerIIMode = errors.New("bitrate not allowed in Layer II")
	// ErrSyncNotFound is returned when no valid frame sequence is found.
	ErrSyncNotFound = errors.New("MPEG audio sync not found")
	// ErrFreeFormat is returned when a free-format frame length cannot be measured.
	ErrFreeFormat = errors.New("cannot find next free-format synch pattern")
	// ErrCorruptStream is returned when the histogram scan counts no frames.
	ErrCorruptStream = errors.New("corrupt MP3 file")
	// ErrBadFrameLength is returned when a frame has no usable length.
	ErrBadFrameLength = errors.New("invalid frame length")
)

// Code identifies the kind of a Diagnostic.
type Code string

// Diagnostic codes.
const (
	CodeSyncNotFound      Code = "sync_not_found"
	CodeInvalidHeader     Code = "invalid_header"
	CodeLookAhead         Code = "lookahead_failed"
	CodeFreeFormat        Code = "free_format"
	CodeCorruptStream     Code = "corrupt_stream"
	CodeBitrate15         Code = "bitrate_index_15"
	CodeModeExtension     Code = "mode_extension_varies"
	CodeNoVBRHeader       Code = "vbr_without_header"
	CodeVBRHeaderGarbage  Code = "vbr_header_garbage"
	CodeUnknownData       Code = "unknown_data_before_sync"
	CodeLastByteTruncated Code = "last_byte_truncated"
	CodeTruncated         Code = "truncated"
	CodeTooMuchData       Code = "too_much_data"
	CodeUnknownPreset     Code = "unknown_lame_preset"
	CodeHistogramPartial  Code = "histogram_partial"
	CodeSyncErrors        Code = "histogram_sync_errors"
)

// Diagnostic is one warning or error produced while analyzing a stream.
type Diagnostic struct {
	Code    Code   `json:"code"`
	Offset  int64  `json:"offset"`
	Message string `json:"message"`
}

func (d Diagnostic) Error() string {
	return d.Message
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d: %s", d.Code, d.Offset, d.Message)
}

// diagnostics accumulates warnings and errors in the order they happen.
type diagnostics struct {
	warnings []Diagnostic
	errors   []Diagnostic
}

func (d *diagnostics) warn(code Code, offset int64, format string, args ...interface{}) {
	d.warnings = append(d.warnings, Diagnostic{Code: code, Offset: offset, Message: fmt.Sprintf(format, args...)})
}

func (d *diagnostics) fail(code Code, offset int64, format string, args ...interface{}) {
	d.errors = append(d.errors, Diagnostic{Code: code, Offset: offset, Message: fmt.Sprintf(format, args...)})
}

func (d *diagnostics) failErr(code Code, offset int64, err error) {
	d.errors = append(d.errors, Diagnostic{Code: code, Offset: offset, Message: err.Error()})
}

func (d *diagnostics) merge(o diagnostics) {
	d.warnings = append(d.warnings, o.warnings...)
	d.errors = append(d.errors, o.errors...)
}
