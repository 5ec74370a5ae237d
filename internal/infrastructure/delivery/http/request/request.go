// Package request decodes and validates inbound HTTP payloads.
// Both HTML form posts and JSON bodies are accepted.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
	"tubedrop/pkg/urls"
)

const (
	maxBodySize   = 64 << 10 // 64 KiB
	maxFormMemory = 64 << 10

	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

type formDecoder interface {
	decodeForm(form url.Values) error
}

// VideoInfo asks for the catalog of a media URL.
type VideoInfo struct {
	URL string `json:"url"`
}

func (v *VideoInfo) decodeForm(form url.Values) error {
	v.URL = form.Get("url")

	return nil
}

// Validate normalizes the URL and checks it.
func (v *VideoInfo) Validate() error {
	v.URL = urls.Normalize(v.URL)
	if !urls.IsURLValid(v.URL) {
		return errs.ErrInvalidURL
	}

	return nil
}

// Download asks for one rendition of a media URL.
// Exactly one of FormatID and Quality must be set.
type Download struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
	// Quality is the mp3 bitrate in kbps.
	Quality int `json:"quality"`
}

func (d *Download) decodeForm(form url.Values) error {
	d.URL = form.Get("url")
	d.FormatID = strings.TrimSpace(form.Get("format_id"))

	quality := strings.TrimSpace(form.Get("quality"))
	if quality == "" {
		return nil
	}

	kbps, err := strconv.Atoi(quality)
	if err != nil {
		return fmt.Errorf("%w: %q", errs.ErrInvalidBitrate, quality)
	}

	d.Quality = kbps

	return nil
}

// Validate normalizes the URL and checks the selectors.
func (d *Download) Validate() error {
	d.URL = urls.Normalize(d.URL)
	if !urls.IsURLValid(d.URL) {
		return errs.ErrInvalidURL
	}

	switch {
	case d.FormatID == "" && d.Quality == 0:
		return errs.ErrSelectorMissing
	case d.FormatID != "" && d.Quality != 0:
		return errs.ErrSelectorConflict
	}

	return nil
}

// Entity converts the payload to a service request.
func (d *Download) Entity() entity.DownloadRequest {
	return entity.DownloadRequest{
		URL:         d.URL,
		FormatID:    d.FormatID,
		BitrateKbps: d.Quality,
	}
}

// Decode fills dst from a JSON, urlencoded or multipart body.
// Decoding errors wrap errs.ErrInvalidRequestBody unless dst reports a validation error.
func Decode(w http.ResponseWriter, r *http.Request, dst formDecoder) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("%w: content type: %w", errs.ErrInvalidRequestBody, err)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	switch mediaType {
	case contentTypeJSON:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err)
		}

		return nil
	case contentTypeForm:
		err = r.ParseForm()
	case contentTypeMultipart:
		err = r.ParseMultipartForm(maxFormMemory)
	default:
		return fmt.Errorf("%w: unsupported content type %q", errs.ErrInvalidRequestBody, mediaType)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err)
	}

	if err := dst.decodeForm(r.PostForm); err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return err
		}

		return fmt.Errorf("%w: %w", errs.ErrInvalidRequestBody, err)
	}

	return nil
}
