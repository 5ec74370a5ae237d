// Package errs defines common error variables used across the application.
package errs

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers.
var (
	// ErrExtraction indicates that the source is unreachable, unsupported, geo-blocked or malformed.
	ErrExtraction = errors.New("extraction failed")
	// ErrValidation indicates that the request was rejected before any extractor call.
	ErrValidation = errors.New("validation failed")
	// ErrArtifactMissing indicates that the extractor reported success but produced no file.
	ErrArtifactMissing = errors.New("artifact not found after download")
	// ErrDelete indicates that a scheduled deletion failed. Never returned to a client.
	ErrDelete = errors.New("delete failed")
)

// Valid request errors.
var (
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
	// ErrInvalidURL indicates that the URL field in the request is invalid.
	ErrInvalidURL = fmt.Errorf("%w: invalid url field", ErrValidation)
	// ErrSelectorMissing indicates that neither a format id nor an audio bitrate was given.
	ErrSelectorMissing = fmt.Errorf("%w: one of format_id or quality is required", ErrValidation)
	// ErrSelectorConflict indicates that both a format id and an audio bitrate were given.
	ErrSelectorConflict = fmt.Errorf("%w: format_id and quality are mutually exclusive", ErrValidation)
	// ErrInvalidBitrate indicates that the audio bitrate is not an offered quality.
	ErrInvalidBitrate = fmt.Errorf("%w: unsupported audio quality", ErrValidation)
	// ErrInvalidFormatID indicates that the video format id is malformed.
	ErrInvalidFormatID = fmt.Errorf("%w: invalid format_id", ErrValidation)
)

// Downloader errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrCookieFileMissing indicates that a configured credential file does not exist.
	ErrCookieFileMissing = errors.New("cookie file not found")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)

// ExtractionError carries the raw extractor message for diagnostics.
type ExtractionError struct {
	URL     string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s: %v", ErrExtraction, e.URL, e.Err)
	}

	return fmt.Sprintf("%s: %s: %s", ErrExtraction, e.URL, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports ErrExtraction as a match so callers can branch on the class.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
