// Package proxymgr rotates extractor egress through a pool of proxies.
// Proxies that fail repeatedly are parked with an exponential backoff.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/errs"
	"tubedrop/internal/observability"
)

const (
	dialTimeout = 10 * time.Second
	maxBackoff  = time.Hour
)

type state int

const (
	stateAvailable state = iota
	stateParked
)

type entry struct {
	url          string
	state        state
	failures     int
	parkedUntil  time.Time
	lastProbedAt time.Time
}

func (e *entry) usable(now time.Time) bool {
	return e.state == stateAvailable || !now.Before(e.parkedUntil)
}

// Stat is a point-in-time view of one proxy.
type Stat struct {
	URL          string
	Parked       bool
	Failures     int
	ParkedUntil  time.Time
	LastProbedAt time.Time
}

// Manager hands out proxies in round-robin order.
type Manager struct {
	log     *slog.Logger
	cfg     config.Proxy
	metrics *observability.Metrics

	mu      sync.Mutex
	entries []*entry
	index   map[string]*entry
	next    int
}

// New creates a manager over cfg.Proxies. Duplicates are ignored.
// metrics may be nil.
func New(log *slog.Logger, cfg config.Proxy, metrics *observability.Metrics) *Manager {
	mgr := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg,
		metrics: metrics,
		index:   make(map[string]*entry, len(cfg.Proxies)),
	}

	for _, proxy := range cfg.Proxies {
		if _, ok := mgr.index[proxy]; ok {
			continue
		}

		e := &entry{url: proxy}
		mgr.entries = append(mgr.entries, e)
		mgr.index[proxy] = e
	}

	mgr.publish()

	return mgr
}

// Enabled reports whether any proxy is configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.entries) > 0
}

// Next returns the next usable proxy.
// It returns errs.ErrNoProxiesAvailable when all proxies are parked or none are configured.
func (m *Manager) Next() (string, error) {
	if !m.Enabled() {
		return "", errs.ErrNoProxiesAvailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for range len(m.entries) {
		e := m.entries[m.next%len(m.entries)]
		m.next = (m.next + 1) % len(m.entries)

		if e.usable(now) {
			if m.metrics != nil {
				m.metrics.RecordProxyRequest(e.url)
			}

			return e.url, nil
		}
	}

	return "", errs.ErrNoProxiesAvailable
}

// Report records the outcome of a call made through proxy.
// A nil err clears the failure count, otherwise the proxy may be parked.
func (m *Manager) Report(proxy string, err error) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[proxy]
	if !ok {
		return
	}

	if err == nil {
		e.state = stateAvailable
		e.failures = 0
		e.parkedUntil = time.Time{}
		m.publishLocked()

		return
	}

	e.failures++

	if m.metrics != nil {
		m.metrics.RecordProxyFailure(proxy)
	}

	if e.failures < max(m.cfg.MaxFailures, 1) {
		return
	}

	backoff := m.backoff(e.failures)
	e.state = stateParked
	e.parkedUntil = time.Now().Add(backoff)
	m.publishLocked()

	m.log.Warn("proxy parked",
		slog.String("proxy", proxy),
		slog.Int("failures", e.failures),
		slog.Duration("backoff", backoff),
		slog.Any("error", err))
}

// backoff doubles FailureBackoff for every failure past MaxFailures, capped at an hour.
func (m *Manager) backoff(failures int) time.Duration {
	backoff := m.cfg.FailureBackoff
	if backoff <= 0 {
		backoff = time.Minute
	}

	for range failures - max(m.cfg.MaxFailures, 1) {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}

	return min(backoff, maxBackoff)
}

// Probe dials the proxy host and reports the outcome.
func (m *Manager) Probe(ctx context.Context, proxy string) error {
	u, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		err = fmt.Errorf("dial proxy: %w", err)
		m.Report(proxy, err)

		return err
	}

	_ = conn.Close()

	m.mu.Lock()
	if e, ok := m.index[proxy]; ok {
		e.lastProbedAt = time.Now()
	}
	m.mu.Unlock()

	m.Report(proxy, nil)

	return nil
}

// Start probes all proxies every HealthCheckInterval until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() || m.cfg.HealthCheckInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeAll(ctx)
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.HealthCheckInterval),
		slog.Int("proxy_count", len(m.entries)))
}

// Stats returns the state of every proxy in configuration order.
func (m *Manager) Stats() []Stat {
	if !m.Enabled() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := make([]Stat, 0, len(m.entries))

	for _, e := range m.entries {
		stats = append(stats, Stat{
			URL:          e.url,
			Parked:       !e.usable(now),
			Failures:     e.failures,
			ParkedUntil:  e.parkedUntil,
			LastProbedAt: e.lastProbedAt,
		})
	}

	return stats
}

// Available returns the number of usable proxies.
func (m *Manager) Available() int {
	if !m.Enabled() {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.availableLocked()
}

func (m *Manager) availableLocked() int {
	now := time.Now()
	n := 0

	for _, e := range m.entries {
		if e.usable(now) {
			n++
		}
	}

	return n
}

func (m *Manager) publish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.publishLocked()
}

func (m *Manager) publishLocked() {
	if m.metrics != nil {
		m.metrics.SetProxiesAvailable(m.availableLocked())
	}
}

func (m *Manager) probeAll(ctx context.Context) {
	for _, e := range m.entries {
		if ctx.Err() != nil {
			return
		}

		if err := m.Probe(ctx, e.url); err != nil {
			m.log.Debug("proxy probe failed", slog.String("proxy", e.url), slog.Any("error", err))
		}
	}
}
