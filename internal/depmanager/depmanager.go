// Package depmanager installs and refreshes the external tools the extractor shells out to:
// yt-dlp, ffmpeg with ffprobe, and deno.
// Checksums only detect new upstream releases, downloads are not verified against them.
package depmanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/errs"
)

const (
	downloadTimeout    = 10 * time.Minute
	filePermExecutable = 0o755
	filePermReadWrite  = 0o644
)

// Manager keeps binary dependencies installed under the bins directory.
type Manager struct {
	log      *slog.Logger
	cfg      config.DepManager
	platform Platform
	client   *http.Client

	mu        sync.RWMutex
	shaSums   map[string]string // asset -> sha256 fetched from upstream
	savedSums map[string]string // asset -> sha256 recorded at the last install
	binPaths  map[BinaryName]string

	updating atomic.Bool
}

// New creates a dependency manager for the host platform.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	return &Manager{
		log:       log.With(slog.String("package", "depmanager")),
		cfg:       cfg.DepManager,
		platform:  Platform{OS: runtime.GOOS, Arch: runtime.GOARCH},
		client:    &http.Client{Timeout: downloadTimeout},
		shaSums:   make(map[string]string),
		savedSums: make(map[string]string),
		binPaths:  make(map[BinaryName]string),
	}
}

// Start resolves every binary, either from PATH or by installing it into the bins directory.
// Installed binaries are refreshed in the background until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.UseSystemBinaries {
		return m.UseSystem(ctx)
	}

	if err := m.InstallAll(ctx); err != nil {
		return err
	}

	m.StartUpdateChecker(ctx)

	return nil
}

// UseSystem resolves binaries from PATH. Optional binaries that are missing are only logged.
func (m *Manager) UseSystem(ctx context.Context) error {
	for _, src := range sources(m.cfg) {
		for _, bin := range src.binaries() {
			path, err := exec.LookPath(string(bin))
			if err != nil {
				if src.optional {
					m.log.WarnContext(ctx, "optional binary not in PATH", slog.String("binary", string(bin)))

					continue
				}

				return fmt.Errorf("%w: %s: %w", errs.ErrBinaryNotFound, bin, err)
			}

			m.setPath(bin, path)
		}
	}

	m.log.InfoContext(ctx, "using system binaries", slog.Any("binaries", m.Paths()))

	return nil
}

// InstallAll downloads every binary that is not already present in the bins directory,
// then records upstream checksums for later update checks.
func (m *Manager) InstallAll(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.BinsDir, filePermExecutable); err != nil {
		return fmt.Errorf("create bins dir: %w", err)
	}

	if err := m.loadSavedSums(); err != nil {
		m.log.DebugContext(ctx, "no saved checksums, first run", slog.Any("error", err))
	}

	for _, src := range sources(m.cfg) {
		if m.installed(src) {
			for _, bin := range src.binaries() {
				m.setPath(bin, m.BinaryPath(bin))
			}

			continue
		}

		if err := m.install(ctx, src); err != nil {
			return fmt.Errorf("install %s: %w", src.name, err)
		}
	}

	m.log.InfoContext(ctx, "binaries installed", slog.Any("binaries", m.Paths()))

	if err := m.FetchSHASums(ctx); err != nil {
		m.log.WarnContext(ctx, "fetch checksums", slog.Any("error", err))

		return nil
	}

	if err := m.saveSums(); err != nil {
		m.log.WarnContext(ctx, "save checksums", slog.Any("error", err))
	}

	return nil
}

// BinaryPath returns where name lives inside the bins directory.
func (m *Manager) BinaryPath(name BinaryName) string {
	filename := string(name)
	if m.platform.OS == osWindows {
		filename += ".exe"
	}

	return filepath.Join(m.cfg.BinsDir, filename)
}

// Path returns the resolved path of name, or "" when it was never resolved.
func (m *Manager) Path(name BinaryName) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.binPaths[name]
}

// Paths returns a copy of every resolved binary path.
func (m *Manager) Paths() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make(map[string]string, len(m.binPaths))
	for name, path := range m.binPaths {
		paths[string(name)] = path
	}

	return paths
}

// StartUpdateChecker refreshes binaries whose upstream checksum changed, every UpdateInterval.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.UpdateInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAndUpdate(ctx)
			}
		}
	}()
}

func (m *Manager) checkAndUpdate(ctx context.Context) {
	if !m.updating.CompareAndSwap(false, true) {
		return
	}
	defer m.updating.Store(false)

	if err := m.FetchSHASums(ctx); err != nil {
		m.log.WarnContext(ctx, "update check: fetch checksums", slog.Any("error", err))

		return
	}

	outdated := m.outdated()
	if len(outdated) == 0 {
		m.log.DebugContext(ctx, "update check: up to date")

		return
	}

	for _, src := range outdated {
		if err := m.install(ctx, src); err != nil {
			m.log.ErrorContext(ctx, "update check: install",
				slog.String("binary", string(src.name)), slog.Any("error", err))

			continue
		}

		m.log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(src.name)))
	}

	if err := m.saveSums(); err != nil {
		m.log.WarnContext(ctx, "update check: save checksums", slog.Any("error", err))
	}
}

func (m *Manager) installed(src source) bool {
	for _, bin := range src.binaries() {
		info, err := os.Stat(m.BinaryPath(bin))
		if err != nil || info.Size() == 0 {
			return false
		}
	}

	return true
}

func (m *Manager) setPath(name BinaryName, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.binPaths[name] = path
}

// install downloads src into the bins directory, unpacking archives.
func (m *Manager) install(ctx context.Context, src source) error {
	url := src.url(m.platform)
	if url == "" {
		return fmt.Errorf("%w: no %s download url for %s", errs.ErrUnsupportedPlatform, src.name, m.platform)
	}

	log := m.log.With(slog.String("binary", string(src.name)), slog.String("url", url))
	log.InfoContext(ctx, "downloading")

	tmpPath, err := m.fetch(ctx, url)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	var format archiveFormat
	if len(src.provides) > 0 {
		format = detectArchive(url)
	}

	if format == archiveNone {
		if err := os.Rename(tmpPath, m.BinaryPath(src.name)); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
	} else {
		targets := make(map[string]string, len(src.provides))
		for _, bin := range src.provides {
			targets[filepath.Base(m.BinaryPath(bin))] = m.BinaryPath(bin)
		}

		if err := extract(format, tmpPath, targets); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	}

	for _, bin := range src.binaries() {
		path := m.BinaryPath(bin)
		if err := os.Chmod(path, filePermExecutable); err != nil {
			return fmt.Errorf("chmod %s: %w", bin, err)
		}

		m.setPath(bin, path)
	}

	log.InfoContext(ctx, "installed")

	return nil
}

// fetch downloads url into a temp file inside the bins directory and returns its path.
func (m *Manager) fetch(ctx context.Context, url string) (string, error) {
	body, err := m.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(m.cfg.BinsDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(tmp.Name())

		return "", fmt.Errorf("write temp file: %w", err)
	}

	return tmp.Name(), nil
}

func (m *Manager) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}

// PrependToPath puts the bins directory first in PATH so child processes
// such as yt-dlp find the installed ffmpeg and deno.
func (m *Manager) PrependToPath() error {
	path := os.Getenv("PATH")
	if strings.HasPrefix(path, m.cfg.BinsDir+string(os.PathListSeparator)) {
		return nil
	}

	if err := os.Setenv("PATH", m.cfg.BinsDir+string(os.PathListSeparator)+path); err != nil {
		return fmt.Errorf("set PATH: %w", err)
	}

	return nil
}
