package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tubedrop/pkg/gen"
)

// SweepOrphans removes work directories older than the orphan TTL every
// sweep interval until ctx is done. Leftovers come from crashes and from
// clients that disconnected before streaming started.
func (m *Manager) SweepOrphans(ctx context.Context) {
	if m.every <= 0 || m.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(m.every)
	defer ticker.Stop()

	log := m.log.With(slog.String("action", "sweep_orphans"), slog.Duration("interval", m.every))

	m.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-ctx.Done():
			log.Info("sweep orphans stopped")

			return
		}
	}
}

// Sweep runs one orphan sweep and returns the number of removed directories.
func (m *Manager) Sweep(ctx context.Context) int {
	log := m.log

	entries, err := os.ReadDir(m.root)
	if err != nil {
		log.ErrorContext(ctx, "read downloads dir", slog.Any("error", err))

		return 0
	}

	cutoff := time.Now().Add(-m.ttl)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() || !gen.IsID(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(m.root, entry.Name())
		if err := m.RemoveWorkDir(dir); err != nil {
			log.ErrorContext(ctx, "remove orphan dir", slog.String("dir", dir), slog.Any("error", err))

			continue
		}

		removed++
	}

	if removed > 0 {
		log.InfoContext(ctx, "orphan dirs removed", slog.Int("count", removed))
	} else {
		log.DebugContext(ctx, "no orphan dirs found")
	}

	if m.metrics != nil {
		m.metrics.RecordSweep(removed)
	}

	return removed
}
