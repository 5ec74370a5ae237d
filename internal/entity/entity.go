// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"strconv"

	"tubedrop/pkg/ptr"
)

// RawRendition is a single rendition as reported by the extractor.
// Optional fields are nil when the source omits them.
type RawRendition struct {
	FormatID   string
	Ext        string
	FormatNote *string
	FileSize   *int64
	VCodec     *string
	Height     *int
	// AvgBitrate is the average total bitrate in kbps.
	AvgBitrate *int
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r RawRendition) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format_id", r.FormatID),
		slog.String("ext", r.Ext),
		slog.String("format_note", ptr.Deref(r.FormatNote)),
		slog.Int64("filesize", ptr.Deref(r.FileSize)),
		slog.String("vcodec", ptr.Deref(r.VCodec)),
		slog.Int("height", ptr.Deref(r.Height)),
		slog.Int("tbr", ptr.Deref(r.AvgBitrate)),
	)
}

// Metadata is the result of a metadata-only extractor query.
type Metadata struct {
	Title        string
	ThumbnailURL string
	Renditions   []RawRendition
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (m Metadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("title", m.Title),
		slog.String("thumbnail_url", m.ThumbnailURL),
		slog.Int("renditions", len(m.Renditions)),
	)
}

// VideoOption is a deduplicated, display-ready video rendition.
type VideoOption struct {
	FormatID     string `json:"format_id"`
	Ext          string `json:"ext"`
	Note         string `json:"format_note"`
	SizeBytes    int64  `json:"filesize"`
	QualityLabel string `json:"quality"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (v VideoOption) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format_id", v.FormatID),
		slog.String("quality", v.QualityLabel),
		slog.Int64("filesize", v.SizeBytes),
	)
}

// AudioOption is an offered mp3 transcode target.
type AudioOption struct {
	BitrateKbps int    `json:"quality"`
	Description string `json:"description"`
}

// Catalog is what a client sees for a media URL.
type Catalog struct {
	Title        string        `json:"title"`
	ThumbnailURL string        `json:"thumbnail,omitempty"`
	VideoOptions []VideoOption `json:"mp4_formats"`
	AudioOptions []AudioOption `json:"mp3_formats"`
}

// DownloadRequest selects exactly one of a video format or an audio bitrate.
type DownloadRequest struct {
	URL         string
	FormatID    string
	BitrateKbps int
}

// IsAudio reports whether the request selects the audio transcode path.
func (r DownloadRequest) IsAudio() bool {
	return r.BitrateKbps != 0
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r DownloadRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("format_id", r.FormatID),
		slog.Int("quality", r.BitrateKbps),
	)
}

// Artifact is a downloaded file owned by the service until it is deleted.
type Artifact struct {
	Path           string
	MediaType      string
	ClientFilename string
	Size           int64
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (a Artifact) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", a.Path),
		slog.String("media_type", a.MediaType),
		slog.String("client_filename", a.ClientFilename),
		slog.String("size", strconv.FormatInt(a.Size, 10)),
	)
}
