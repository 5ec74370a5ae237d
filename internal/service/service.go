// Package service orchestrates catalog queries and downloads on top of an extractor.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/consts"
	"tubedrop/internal/downloader"
	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
	"tubedrop/internal/observability"
	"tubedrop/internal/rendition"
	"tubedrop/pkg/slug"
	"tubedrop/pkg/urls"
)

const maxFormatIDLen = 128

// reFormatID accepts a single yt-dlp format id. Selector syntax such as "/" or "+" is rejected.
var reFormatID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.=-]*$`)

// Workspace provides per-request directories and delayed artifact removal.
type Workspace interface {
	NewWorkDir() (string, error)
	RemoveWorkDir(dir string) error
	ScheduleDelete(path string)
}

// Media is the public surface of the service.
type Media interface {
	// Catalog returns the video and audio options offered for url.
	Catalog(ctx context.Context, url string) (*entity.Catalog, error)
	// Download produces one artifact on disk. The caller must hand it back through Release.
	Download(ctx context.Context, req entity.DownloadRequest) (*entity.Artifact, error)
	// Release schedules deletion of a delivered artifact.
	Release(artifact *entity.Artifact)
}

type media struct {
	log       *slog.Logger
	cfg       *config.Config
	extractor downloader.Extractor
	workspace Workspace
	metrics   *observability.Metrics
}

var _ Media = (*media)(nil)

// New creates the media service. metrics may be nil.
func New(cfg *config.Config, log *slog.Logger, extractor downloader.Extractor, workspace Workspace,
	metrics *observability.Metrics,
) Media {
	return &media{
		log:       log.With(slog.String("package", "service")),
		cfg:       cfg,
		extractor: extractor,
		workspace: workspace,
		metrics:   metrics,
	}
}

func (svc *media) Catalog(ctx context.Context, url string) (*entity.Catalog, error) {
	log := svc.log.With(slog.String("func", "Catalog"))

	url = urls.Normalize(url)
	if !urls.IsURLValid(url) {
		svc.recordMetadata(observability.StatusInvalid, 0)

		return nil, errs.ErrInvalidURL
	}

	meta, err := svc.metadata(ctx, url)
	if err != nil {
		svc.recordMetadata(observability.StatusError, 0)

		return nil, err
	}

	videoOptions := rendition.Normalize(meta.Renditions)
	if svc.cfg.Delivery.SortByHeight {
		rendition.SortByHeight(videoOptions)
	}

	catalog := &entity.Catalog{
		Title:        meta.Title,
		ThumbnailURL: meta.ThumbnailURL,
		VideoOptions: videoOptions,
		AudioOptions: rendition.AudioQualities(),
	}

	svc.recordMetadata(observability.StatusOK, len(videoOptions))
	log.DebugContext(ctx, "catalog built", slog.String("url", url), slog.Int("video_options", len(videoOptions)))

	return catalog, nil
}

func (svc *media) Download(ctx context.Context, req entity.DownloadRequest) (artifact *entity.Artifact, err error) {
	req.URL = urls.Normalize(req.URL)

	if err := Validate(req); err != nil {
		return nil, err
	}

	mode := consts.ModeVideo
	if req.IsAudio() {
		mode = consts.ModeAudio
	}

	log := svc.log.With(slog.String("func", "Download"), slog.Any("request", req))
	elapsed := observability.Timer()

	defer func() {
		status := observability.StatusOK

		var size int64

		switch {
		case errors.Is(err, errs.ErrArtifactMissing):
			status = observability.StatusNotFound
		case err != nil:
			status = observability.StatusError
		default:
			size = artifact.Size
		}

		if svc.metrics != nil {
			svc.metrics.RecordDownload(mode, status, elapsed(), size)
		}
	}()

	// The title is fetched separately so a failing lookup is reported before any file is written.
	meta, err := svc.metadata(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	base := slug.Sanitize(meta.Title)
	if base == "" {
		base = consts.PlaceholderName
	}

	dir, err := svc.workspace.NewWorkDir()
	if err != nil {
		return nil, fmt.Errorf("prepare download: %w", err)
	}

	ext, mediaType, opts := plan(req, filepath.Join(dir, base+"."+downloader.ExtPlaceholder))

	if err := svc.download(ctx, req.URL, opts); err != nil {
		svc.discard(ctx, dir)

		return nil, err
	}

	path := filepath.Join(dir, base+"."+ext)

	info, err := os.Stat(path)
	if err != nil {
		svc.discard(ctx, dir)
		log.ErrorContext(ctx, "artifact missing", slog.String("path", path), slog.Any("error", err))

		return nil, fmt.Errorf("%w: %s", errs.ErrArtifactMissing, filepath.Base(path))
	}

	artifact = &entity.Artifact{
		Path:           path,
		MediaType:      mediaType,
		ClientFilename: meta.Title + "." + ext,
		Size:           info.Size(),
	}

	log.InfoContext(ctx, "artifact ready", slog.Any("artifact", artifact))

	return artifact, nil
}

func (svc *media) Release(artifact *entity.Artifact) {
	if artifact == nil || artifact.Path == "" {
		return
	}

	svc.workspace.ScheduleDelete(artifact.Path)
}

// Validate rejects malformed download requests before any extractor call.
func Validate(req entity.DownloadRequest) error {
	if !urls.IsURLValid(req.URL) {
		return errs.ErrInvalidURL
	}

	switch {
	case req.FormatID == "" && req.BitrateKbps == 0:
		return errs.ErrSelectorMissing
	case req.FormatID != "" && req.BitrateKbps != 0:
		return errs.ErrSelectorConflict
	case req.IsAudio():
		return rendition.ValidateBitrate(req.BitrateKbps)
	case len(req.FormatID) > maxFormatIDLen || !reFormatID.MatchString(req.FormatID):
		return errs.ErrInvalidFormatID
	}

	return nil
}

// plan returns the produced extension, declared media type and extractor options for req.
func plan(req entity.DownloadRequest, template string) (string, string, downloader.Options) {
	if req.IsAudio() {
		return consts.AudioCodec, consts.MediaTypeAudio, downloader.Options{
			Selector:       consts.AudioSelector,
			OutputTemplate: template,
			Transcode: &downloader.Transcode{
				Codec:   consts.AudioCodec,
				Quality: strconv.Itoa(req.BitrateKbps),
			},
		}
	}

	return consts.VideoContainer, consts.MediaTypeVideo, downloader.Options{
		Selector:       req.FormatID,
		OutputTemplate: template,
	}
}

func (svc *media) metadata(ctx context.Context, url string) (*entity.Metadata, error) {
	ctx, cancel := withTimeout(ctx, svc.cfg.Delivery.MetadataTimeout)
	defer cancel()

	elapsed := observability.Timer()
	meta, err := svc.extractor.Metadata(ctx, url)
	svc.recordExtractorCall("metadata", err, elapsed())

	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}

	return meta, nil
}

func (svc *media) download(ctx context.Context, url string, opts downloader.Options) error {
	ctx, cancel := withTimeout(ctx, svc.cfg.Delivery.DownloadTimeout)
	defer cancel()

	elapsed := observability.Timer()
	err := svc.extractor.Download(ctx, url, opts)
	svc.recordExtractorCall("download", err, elapsed())

	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	return nil
}

func (svc *media) discard(ctx context.Context, dir string) {
	if err := svc.workspace.RemoveWorkDir(dir); err != nil {
		svc.log.ErrorContext(ctx, "remove work dir", slog.String("dir", dir), slog.Any("error", err))
	}
}

func (svc *media) recordMetadata(status string, videoOptions int) {
	if svc.metrics != nil {
		svc.metrics.RecordMetadata(status, videoOptions)
	}
}

func (svc *media) recordExtractorCall(operation string, err error, seconds float64) {
	if svc.metrics != nil {
		svc.metrics.RecordExtractorCall(svc.extractor.Name(), operation, downloader.ClassifyError(err), seconds)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
