//go:build integration

package integration_test

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/depmanager"
	"tubedrop/internal/downloader"
	"tubedrop/internal/storage"
)

//go:embed testdata/fake-ytdlp.sh
var fakeYTdlpScript string

type ytdlpFixture struct {
	cfg       *config.Config
	store     *storage.Manager
	extractor *downloader.YTdlp
}

// newYTdlpFixture installs the fake yt-dlp into a temp bins dir and wires a real extractor to it.
func newYTdlpFixture(t *testing.T, mode string) *ytdlpFixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	base := t.TempDir()

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.DepManager.BinsDir = filepath.Join(base, "bins")
	cfg.Dir.Downloads = filepath.Join(base, "downloads")
	cfg.Dir.Cache = filepath.Join(base, "cache")
	cfg.Dir.CookieFile = ""
	cfg.Delivery.GracePeriod = 50 * time.Millisecond
	cfg.Delivery.MetadataTimeout = 5 * time.Second
	cfg.Delivery.DownloadTimeout = 5 * time.Second

	for _, dir := range []string{cfg.DepManager.BinsDir, cfg.Dir.Cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	log := slog.New(slog.DiscardHandler)

	binPath := depmanager.New(log, cfg).BinaryPath(depmanager.BinaryYTdlp)
	if err := os.WriteFile(binPath, []byte(fakeYTdlpScript), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}

	t.Setenv("TUBEDROP_FAKE_MODE", mode)

	store := storage.New(log, cfg, nil)
	if err := store.Init(); err != nil {
		t.Fatalf("storage init: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := store.Wait(ctx); err != nil {
			t.Errorf("storage wait: %v", err)
		}
	})

	return &ytdlpFixture{
		cfg:       cfg,
		store:     store,
		extractor: downloader.NewYTdlp(log, cfg, binPath, nil),
	}
}
