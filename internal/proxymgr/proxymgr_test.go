package proxymgr_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"testing/synctest"
	"time"

	"tubedrop/internal/config"
	"tubedrop/internal/errs"
	"tubedrop/internal/observability"
	"tubedrop/internal/proxymgr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errDial = errors.New("connection refused")

func newManager(proxies []string) (*proxymgr.Manager, *observability.Metrics) {
	metrics := observability.New(prometheus.NewRegistry())
	cfg := config.Proxy{
		Proxies:        proxies,
		MaxFailures:    2,
		FailureBackoff: time.Minute,
	}

	return proxymgr.New(slog.New(slog.DiscardHandler), cfg, metrics), metrics
}

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxies []string
		want    []string
		wantErr error
	}{
		{
			name:    "no proxies",
			proxies: nil,
			wantErr: errs.ErrNoProxiesAvailable,
		},
		{
			name:    "single proxy repeats",
			proxies: []string{"socks5h://a:1080"},
			want:    []string{"socks5h://a:1080", "socks5h://a:1080"},
		},
		{
			name:    "round robin with duplicates dropped",
			proxies: []string{"socks5h://a:1080", "socks5h://b:1080", "socks5h://a:1080"},
			want:    []string{"socks5h://a:1080", "socks5h://b:1080", "socks5h://a:1080"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr, _ := newManager(tc.proxies)

			if tc.wantErr != nil {
				if _, err := mgr.Next(); !errors.Is(err, tc.wantErr) {
					t.Fatalf("Next() error = %v, want %v", err, tc.wantErr)
				}

				if mgr.Enabled() {
					t.Error("Enabled() = true, want false")
				}

				return
			}

			for i, want := range tc.want {
				got, err := mgr.Next()
				if err != nil {
					t.Fatalf("Next() #%d failed: %v", i, err)
				}

				if got != want {
					t.Errorf("Next() #%d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestReportParksAndRecovers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const proxy = "socks5h://a:1080"

		mgr, metrics := newManager([]string{proxy})

		mgr.Report(proxy, errDial)

		if got := mgr.Available(); got != 1 {
			t.Fatalf("Available() after one failure = %d, want 1", got)
		}

		mgr.Report(proxy, errDial)

		if _, err := mgr.Next(); !errors.Is(err, errs.ErrNoProxiesAvailable) {
			t.Fatalf("Next() error = %v, want %v", err, errs.ErrNoProxiesAvailable)
		}

		if got := testutil.ToFloat64(metrics.ProxiesAvailable); got != 0 {
			t.Errorf("available gauge = %v, want 0", got)
		}

		if got := testutil.ToFloat64(metrics.ProxyFailures.WithLabelValues(proxy)); got != 2 {
			t.Errorf("failures counter = %v, want 2", got)
		}

		stats := mgr.Stats()
		if len(stats) != 1 || !stats[0].Parked || stats[0].Failures != 2 {
			t.Fatalf("Stats() = %+v, want one parked proxy with 2 failures", stats)
		}

		time.Sleep(time.Minute)

		if got, err := mgr.Next(); err != nil || got != proxy {
			t.Fatalf("Next() after backoff = %q, %v", got, err)
		}

		mgr.Report(proxy, nil)

		if stats := mgr.Stats(); stats[0].Failures != 0 || stats[0].Parked {
			t.Errorf("Stats() after success = %+v", stats[0])
		}
	})
}

func TestBackoffGrows(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const proxy = "socks5h://a:1080"

		mgr, _ := newManager([]string{proxy})
		start := time.Now()

		mgr.Report(proxy, errDial)
		mgr.Report(proxy, errDial)
		mgr.Report(proxy, errDial)

		got := mgr.Stats()[0].ParkedUntil.Sub(start)
		if got != 2*time.Minute {
			t.Errorf("backoff after third failure = %v, want 2m", got)
		}
	})
}

func TestReportUnknownProxy(t *testing.T) {
	t.Parallel()

	mgr, _ := newManager([]string{"socks5h://a:1080"})
	mgr.Report("socks5h://unknown:1080", errDial)

	if got := mgr.Available(); got != 1 {
		t.Errorf("Available() = %d, want 1", got)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			_ = conn.Close()
		}
	}()

	live := "socks5h://" + ln.Addr().String()
	mgr, _ := newManager([]string{live})

	if err := mgr.Probe(context.Background(), live); err != nil {
		t.Fatalf("Probe() failed: %v", err)
	}

	if stats := mgr.Stats(); stats[0].LastProbedAt.IsZero() {
		t.Error("expected probe time to be recorded")
	}

	if err := mgr.Probe(context.Background(), "socks5h://%zz"); err == nil {
		t.Error("Probe() with malformed url succeeded unexpectedly")
	}
}
