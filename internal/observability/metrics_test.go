package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tubedrop/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	m.RecordMetadata(observability.StatusOK, 3)
	m.RecordMetadata(observability.StatusError, 0)
	m.RecordDownload("audio", observability.StatusOK, 1.5, 1024)
	m.RecordDownload("video", observability.StatusNotFound, 0.5, 0)
	m.RecordDeleteScheduled()
	m.RecordDeleteScheduled()
	m.RecordDeleteDone(observability.StatusOK)
	m.RecordHTTPRequest(http.MethodPost, "/v1/download", http.StatusOK, time.Second, 2048)

	if got := testutil.ToFloat64(m.MetadataRequests.WithLabelValues(observability.StatusOK)); got != 1 {
		t.Errorf("metadata ok = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.DownloadBytes); got != 1024 {
		t.Errorf("download bytes = %v, want 1024", got)
	}

	if got := testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("video", observability.StatusNotFound)); got != 1 {
		t.Errorf("video not found = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.DeletesPending); got != 1 {
		t.Errorf("deletes pending = %v, want 1", got)
	}

	// A second registry must accept a fresh set of metrics.
	observability.New(prometheus.NewRegistry())

	srv := httptest.NewServer(observability.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}

	if !strings.Contains(string(body), "tubedrop_downloads_total") {
		t.Errorf("metrics output lacks downloads counter:\n%s", body)
	}
}
