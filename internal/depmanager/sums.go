package depmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
)

const (
	sha256HexLength   = 64
	savedSumsFilename = ".sha256sums.json"
)

var errNoSumsURL = errors.New("no sha256 sums url configured")

// SumsURLs returns every configured checksum file URL.
func (m *Manager) SumsURLs() ([]string, error) {
	var urls []string

	for _, src := range sources(m.cfg) {
		urls = append(urls, splitList(src.sums)...)
	}

	if len(urls) == 0 {
		return nil, errNoSumsURL
	}

	return urls, nil
}

// FetchSHASums downloads and merges every configured checksum file.
func (m *Manager) FetchSHASums(ctx context.Context) error {
	urls, err := m.SumsURLs()
	if err != nil {
		return err
	}

	for _, url := range urls {
		body, err := m.get(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch sums: %w", err)
		}

		data, err := io.ReadAll(body)
		body.Close()

		if err != nil {
			return fmt.Errorf("read sums: %w", err)
		}

		m.ParseSHASums(string(data))
	}

	return nil
}

// ParseSHASums merges lines of the form "<sha256>  <filename>". Malformed lines are skipped.
// A leading "*" on the filename (binary mode marker) is dropped.
func (m *Manager) ParseSHASums(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for line := range strings.SplitSeq(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[0]) != sha256HexLength {
			continue
		}

		m.shaSums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}
}

// outdated returns the sources whose upstream checksum differs from the saved one.
func (m *Manager) outdated() []source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []source

	for _, src := range sources(m.cfg) {
		asset := src.asset(m.platform)

		latest, ok := m.shaSums[asset]
		if !ok {
			continue
		}

		if saved, ok := m.savedSums[asset]; !ok || saved != latest {
			stale = append(stale, src)
		}
	}

	return stale
}

func (m *Manager) sumsPath() string {
	return filepath.Join(m.cfg.BinsDir, savedSumsFilename)
}

func (m *Manager) loadSavedSums() error {
	data, err := os.ReadFile(m.sumsPath())
	if err != nil {
		return fmt.Errorf("read saved sums: %w", err)
	}

	saved := make(map[string]string)
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("decode saved sums: %w", err)
	}

	m.mu.Lock()
	m.savedSums = saved
	m.mu.Unlock()

	return nil
}

// saveSums persists the fetched checksums as the installed baseline.
func (m *Manager) saveSums() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.shaSums, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sums: %w", err)
	}

	if err := os.WriteFile(m.sumsPath(), data, filePermReadWrite); err != nil {
		return fmt.Errorf("write sums: %w", err)
	}

	m.savedSums = maps.Clone(m.shaSums)

	return nil
}
