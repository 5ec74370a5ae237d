// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers that do not stream files.
	DefaultHandlerTimeout = 90 * time.Second
	// DefaultSimulateTime is the time the mock extractor pretends to download.
	DefaultSimulateTime = 1 * time.Second
)

// Media containers, codecs and types.
const (
	// VideoContainer is the only container offered for video renditions.
	VideoContainer = "mp4"
	// AudioCodec is the transcode target for audio downloads.
	AudioCodec = "mp3"
	// AudioSelector asks the extractor for the best available audio stream.
	AudioSelector = "bestaudio/best"
	// MediaTypeVideo is the declared media type of video artifacts.
	MediaTypeVideo = "video/mp4"
	// MediaTypeAudio is the declared media type of audio artifacts.
	MediaTypeAudio = "audio/mpeg"
	// PlaceholderName replaces a title that sanitizes to nothing.
	PlaceholderName = "media"
	// DefaultTitle is used when the source reports no title.
	DefaultTitle = "Video"
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespValidationFailed is returned when a request fails validation.
	RespValidationFailed = "validation failed"
	// RespVideoInfoFail is returned when metadata cannot be fetched.
	RespVideoInfoFail = "failed to get video info"
	// RespVideoInfoRetrieved is returned with a metadata catalog.
	RespVideoInfoRetrieved = "video info retrieved"
	// RespDownloadFail is returned when a download cannot be produced.
	RespDownloadFail = "failed to download file"
	// RespFileNotFound is returned when a downloaded file is not found.
	RespFileNotFound = "file not found after download"
	// RespInternalError is returned for unexpected failures.
	RespInternalError = "internal server error"
)

// Extractor identifiers.
const (
	// ExtractorYTdlp is the yt-dlp extractor identifier.
	ExtractorYTdlp = "ytdlp"
	// ExtractorMock is the mock extractor identifier for local runs and tests.
	ExtractorMock = "mock"
)

// Download modes.
const (
	// ModeVideo downloads a specific video format.
	ModeVideo = "video"
	// ModeAudio downloads the best audio and transcodes it.
	ModeAudio = "audio"
)
