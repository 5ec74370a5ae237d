package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tubedrop/internal/consts"
	"tubedrop/internal/entity"
	"tubedrop/pkg/ptr"
)

const (
	mockFileMode = 0o644
	mockSteps    = 10
)

// Mock is an Extractor that serves a fixed catalog and writes placeholder files.
// It backs local runs without network access.
type Mock struct {
	log      *slog.Logger
	simulate time.Duration
}

// NewMock creates a mock extractor that pretends each download takes simulate.
func NewMock(log *slog.Logger, simulate time.Duration) *Mock {
	return &Mock{
		log:      log.With(slog.String("package", "downloader"), slog.String("extractor", consts.ExtractorMock)),
		simulate: simulate,
	}
}

// Name implements Extractor.
func (m *Mock) Name() string {
	return consts.ExtractorMock
}

// Metadata implements Extractor.
func (m *Mock) Metadata(ctx context.Context, url string) (*entity.Metadata, error) {
	m.log.DebugContext(ctx, "mock metadata", slog.String("url", url))

	return &entity.Metadata{
		Title:        "Mock Video",
		ThumbnailURL: "https://example.com/thumb.jpg",
		Renditions: []entity.RawRendition{
			{FormatID: "18", Ext: "mp4", FormatNote: ptr.Of("360p"), FileSize: ptr.Of(int64(1_000_000)), VCodec: ptr.Of("avc1"), Height: ptr.Of(360)},
			{FormatID: "22", Ext: "mp4", FormatNote: ptr.Of("720p"), FileSize: ptr.Of(int64(5_000_000)), VCodec: ptr.Of("avc1"), Height: ptr.Of(720)},
			{FormatID: "136", Ext: "mp4", FormatNote: ptr.Of("720p"), FileSize: ptr.Of(int64(8_000_000)), VCodec: ptr.Of("avc1"), Height: ptr.Of(720)},
			{FormatID: "251", Ext: "webm", FormatNote: ptr.Of("medium"), FileSize: ptr.Of(int64(3_000_000)), VCodec: ptr.Of("none")},
		},
	}, nil
}

// Download implements Extractor.
func (m *Mock) Download(ctx context.Context, url string, opts Options) error {
	log := m.log.With(slog.String("func", "Download"), slog.String("url", url), slog.String("selector", opts.Selector))

	progressFn := func(progress int, eta time.Duration) {
		log.DebugContext(ctx, "mock progress", slog.Int("progress", progress), slog.Duration("eta", eta))
	}

	if err := simulateDownload(ctx, m.simulate, progressFn); err != nil {
		return fmt.Errorf("simulate download: %w", err)
	}

	ext := consts.VideoContainer
	if opts.Transcode != nil {
		ext = opts.Transcode.Codec
	}

	path := strings.ReplaceAll(opts.OutputTemplate, ExtPlaceholder, ext)

	if err := os.WriteFile(path, []byte("mock media for "+url), mockFileMode); err != nil {
		return fmt.Errorf("write mock file: %w", err)
	}

	log.InfoContext(ctx, "done", slog.String("path", path))

	return nil
}

func simulateDownload(ctx context.Context, duration time.Duration, progressFn func(int, time.Duration)) error {
	if duration <= 0 {
		return ctx.Err()
	}

	ticker := time.NewTicker(duration / mockSteps)
	defer ticker.Stop()

	start := time.Now()

	for step := 1; step <= mockSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			progressFn(step*(100/mockSteps), max(duration-time.Since(start), 0))
		}
	}

	return nil
}
