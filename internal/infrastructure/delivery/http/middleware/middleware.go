// Package middleware holds the HTTP middleware chain shared by all routes.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tubedrop/internal/consts"
	"tubedrop/internal/infrastructure/delivery/http/response"
	"tubedrop/internal/observability"
	"tubedrop/pkg/gen"
)

type contextKey string

// RequestIDKey is the context key of the request id.
const RequestIDKey contextKey = "requestID"

const (
	HeaderXRequestID = "X-Request-ID"

	// unmatchedRoute labels requests that no route pattern matched.
	unmatchedRoute = "unmatched"
)

// RequestLog is the logged view of an inbound request.
type RequestLog struct {
	Method        string `json:"method"`
	URI           string `json:"uri"`
	RemoteAddr    string `json:"remote_addr"`
	Proto         string `json:"proto"`
	ContentLength int64  `json:"content_length"`
}

// statusWriter remembers the status code and body size written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.size += n

	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}

	return &statusWriter{ResponseWriter: w}
}

// Recoverer turns a handler panic into a 500 when nothing was written yet.
// http.ErrAbortHandler is re-panicked so the server aborts the connection.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrap(w)

			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler { //nolint:errorlint
					panic(rvr)
				}

				log.ErrorContext(r.Context(), "handler panic",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.Any("panic", fmt.Sprint(rvr)))

				if sw.status == 0 {
					response.InternalServerError(sw, consts.RespInternalError, nil)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

// RequestID propagates X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = gen.ID()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		w.Header().Set(HeaderXRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)

	return id
}

// Logger logs every request at debug level and its completion at info level.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)
			reqID := slog.String("request_id", RequestIDFrom(r.Context()))

			log.DebugContext(r.Context(), "http request",
				reqID,
				slog.Any("request", RequestLog{
					Method:        r.Method,
					URI:           r.RequestURI,
					RemoteAddr:    r.RemoteAddr,
					Proto:         r.Proto,
					ContentLength: r.ContentLength,
				}))

			next.ServeHTTP(sw, r)

			log.InfoContext(r.Context(), "http response",
				reqID,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.code()),
				slog.Int("size", sw.size),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

// Metrics records request count, latency and response size per route pattern.
// It must sit after any middleware that replaces the request so that the mux
// sets the pattern on the request seen here.
func Metrics(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)

			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}

			metrics.RecordHTTPRequest(r.Method, route, sw.code(), time.Since(start), sw.size)
		})
	}
}
