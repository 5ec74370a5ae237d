// Package downloader adapts media extractors to metadata and download calls.
package downloader

import (
	"context"
	"errors"
	"time"

	"tubedrop/internal/entity"
)

const (
	defaultProgressFreq = 500 * time.Millisecond
)

// Extractor queries and downloads media from a source URL.
type Extractor interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Metadata returns the title, thumbnail and raw renditions of url without downloading it.
	Metadata(ctx context.Context, url string) (*entity.Metadata, error)
	// Download writes the selected rendition to opts.OutputTemplate.
	Download(ctx context.Context, url string, opts Options) error
}

// Options describe one download.
type Options struct {
	// Selector is an exact format id or a selector such as "bestaudio/best".
	Selector string
	// OutputTemplate is an absolute path whose extension is the "%(ext)s" placeholder.
	OutputTemplate string
	// Transcode, when set, converts the downloaded stream to an audio codec.
	Transcode *Transcode
}

// Transcode is an audio post-processing directive.
type Transcode struct {
	Codec   string
	Quality string
}

// ExtPlaceholder is substituted by the extractor with the produced file extension.
const ExtPlaceholder = "%(ext)s"

// ClassifyError maps an extractor error to a metrics status.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
