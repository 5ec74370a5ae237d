// Package storage owns the ephemeral download area: per-request work
// directories, delayed artifact deletion and sweeping of leftovers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/errs"
	"tubedrop/internal/observability"
	"tubedrop/pkg/gen"
)

const dirMode = 0o755

// Manager hands out work directories and removes artifacts after delivery.
type Manager struct {
	log     *slog.Logger
	root    string
	grace   time.Duration
	ttl     time.Duration
	every   time.Duration
	metrics *observability.Metrics

	wg sync.WaitGroup
}

// New creates a manager rooted at cfg.Dir.Downloads. metrics may be nil.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Manager {
	return &Manager{
		log:     log.With(slog.String("package", "storage")),
		root:    cfg.Dir.Downloads,
		grace:   cfg.Delivery.GracePeriod,
		ttl:     cfg.Storage.OrphanTTL,
		every:   cfg.Storage.SweepInterval,
		metrics: metrics,
	}
}

// Init creates the download root.
func (m *Manager) Init() error {
	if err := os.MkdirAll(m.root, dirMode); err != nil {
		return fmt.Errorf("create downloads dir %q: %w", m.root, err)
	}

	return nil
}

// NewWorkDir creates a fresh directory under the root for one request.
func (m *Manager) NewWorkDir() (string, error) {
	dir := filepath.Join(m.root, gen.ID())

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	return dir, nil
}

// RemoveWorkDir removes a work directory and everything in it.
// Paths outside the root are refused.
func (m *Manager) RemoveWorkDir(dir string) error {
	if !m.within(dir) {
		return fmt.Errorf("%w: %q is outside %q", errs.ErrDelete, dir, m.root)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrDelete, err)
	}

	return nil
}

// ScheduleDelete removes path once the grace period has elapsed and then
// removes its work directory if it is left empty. It returns immediately.
// A path that is already gone is not an error.
func (m *Manager) ScheduleDelete(path string) {
	if m.metrics != nil {
		m.metrics.RecordDeleteScheduled()
	}

	m.wg.Go(func() {
		time.Sleep(m.grace)

		status := m.delete(path)

		if m.metrics != nil {
			m.metrics.RecordDeleteDone(status)
		}
	})
}

func (m *Manager) delete(path string) string {
	log := m.log.With(slog.String("path", path))

	err := os.Remove(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug("artifact already gone")
	case err != nil:
		log.Error("delete artifact", slog.Any("error", fmt.Errorf("%w: %w", errs.ErrDelete, err)))

		return observability.StatusError
	default:
		log.Debug("artifact deleted")
	}

	if dir := filepath.Dir(path); dir != m.root && m.within(dir) {
		// Fails while another file is still in the directory.
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Debug("keep work dir", slog.String("dir", dir), slog.Any("error", err))
		}
	}

	if err != nil {
		return observability.StatusAbsent
	}

	return observability.StatusOK
}

// Wait blocks until all scheduled deletions have run or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for deletions: %w", ctx.Err())
	}
}

// within reports whether path is strictly below the root.
func (m *Manager) within(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
