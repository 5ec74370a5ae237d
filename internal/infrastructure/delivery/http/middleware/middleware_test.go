package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tubedrop/internal/infrastructure/delivery/http/middleware"
	"tubedrop/internal/observability"
	"tubedrop/pkg/gen"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecoverer(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantPanic  any
		wantStatus int
		wantBody   string
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "string panic",
			handler: func(_ http.ResponseWriter, _ *http.Request) {
				panic("test panic")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
		{
			name: "error panic",
			handler: func(_ http.ResponseWriter, _ *http.Request) {
				panic(errors.New("test error panic"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
		{
			name: "http.ErrAbortHandler re-panic",
			handler: func(_ http.ResponseWriter, _ *http.Request) {
				panic(http.ErrAbortHandler)
			},
			wantPanic: http.ErrAbortHandler,
		},
		{
			name: "panic after response started",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				panic("test panic")
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer

			log := slog.New(slog.NewJSONHandler(&logBuf, nil))
			handler := middleware.Recoverer(log)(tt.handler)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			if tt.wantPanic != nil {
				defer func() {
					if recovered := recover(); recovered != tt.wantPanic {
						t.Errorf("got panic %v, want %v", recovered, tt.wantPanic)
					}
				}()
			}

			handler.ServeHTTP(rec, req)

			if got := rec.Code; got != tt.wantStatus {
				t.Errorf("got status %v, want %v", got, tt.wantStatus)
			}

			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("got body %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}

			if tt.wantStatus != http.StatusInternalServerError && tt.name != "panic after response started" {
				return
			}

			if !strings.Contains(logBuf.String(), "handler panic") {
				t.Errorf("panic was not logged: %s", logBuf.String())
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`done`))
	})

	handler := middleware.RequestID(middleware.Logger(log)(next))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/foo?bar=baz", nil)
	req.Header.Set(middleware.HeaderXRequestID, "req-1")
	req.RemoteAddr = "1.2.3.4:1234"
	req.ContentLength = 123
	now := time.Now()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got, want := rec.Code, http.StatusTeapot; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}

	var requestEntry struct {
		Time      time.Time             `json:"time"`
		Level     string                `json:"level"`
		Msg       string                `json:"msg"`
		RequestID string                `json:"request_id"`
		Request   middleware.RequestLog `json:"request"`
	}

	if err := json.Unmarshal([]byte(lines[0]), &requestEntry); err != nil {
		t.Fatalf("failed to unmarshal request entry: %v", err)
	}

	if requestEntry.Time.Before(now.Add(-time.Minute)) {
		t.Errorf("got time %v", requestEntry.Time)
	}

	if requestEntry.Level != "DEBUG" || requestEntry.Msg != "http request" || requestEntry.RequestID != "req-1" {
		t.Errorf("got entry %+v", requestEntry)
	}

	want := middleware.RequestLog{
		Method:        http.MethodPost,
		URI:           "http://example.com/foo?bar=baz",
		RemoteAddr:    "1.2.3.4:1234",
		Proto:         "HTTP/1.1",
		ContentLength: 123,
	}
	if requestEntry.Request != want {
		t.Errorf("got request %+v, want %+v", requestEntry.Request, want)
	}

	var responseEntry struct {
		Msg    string `json:"msg"`
		Status int    `json:"status"`
		Size   int    `json:"size"`
		Path   string `json:"path"`
	}

	if err := json.Unmarshal([]byte(lines[1]), &responseEntry); err != nil {
		t.Fatalf("failed to unmarshal response entry: %v", err)
	}

	if responseEntry.Msg != "http response" || responseEntry.Status != http.StatusTeapot ||
		responseEntry.Size != 4 || responseEntry.Path != "/foo" {
		t.Errorf("got response entry %+v", responseEntry)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name        string
		headerValue string
		validateID  func(string) bool
	}{
		{
			name:        "existing requestID",
			headerValue: "test-request-1234",
			validateID:  func(id string) bool { return id == "test-request-1234" },
		},
		{
			name:        "generated requestID",
			headerValue: "",
			validateID:  gen.IsID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxChecked := false

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if reqID := middleware.RequestIDFrom(r.Context()); !tt.validateID(reqID) {
					t.Errorf("requestID in context is invalid: %q", reqID)
				}

				ctxChecked = true

				_, _ = w.Write([]byte("ok"))
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.headerValue != "" {
				req.Header.Set(middleware.HeaderXRequestID, tt.headerValue)
			}

			rec := httptest.NewRecorder()
			middleware.RequestID(next).ServeHTTP(rec, req)

			if !ctxChecked {
				t.Error("next handler was not called")
			}

			if resID := rec.Result().Header.Get(middleware.HeaderXRequestID); !tt.validateID(resID) {
				t.Errorf("X-Request-ID header is invalid: %q", resID)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.New(prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("item"))
	})

	handler := middleware.Metrics(metrics)(mux)

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /items/{id}", "200")); got != 2 {
		t.Errorf("items requests = %v, want 2", got)
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}
