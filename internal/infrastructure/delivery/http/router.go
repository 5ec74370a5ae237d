// Package httprouter wires the HTTP routes of the media service.
package httprouter

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"slices"

	"tubedrop/internal/config"
	"tubedrop/internal/consts"
	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
	"tubedrop/internal/infrastructure/delivery/http/middleware"
	"tubedrop/internal/infrastructure/delivery/http/request"
	"tubedrop/internal/infrastructure/delivery/http/response"
	"tubedrop/internal/observability"
	"tubedrop/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

//go:embed web/index.html
var indexHTML []byte

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(c) {
		h = mw(h)
	}

	return h
}

// Router is a ServeMux with a global middleware chain.
type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	svc         service.Media
	metrics     *observability.Metrics
	gatherer    prometheus.Gatherer
	globalChain chain
	handler     http.Handler
}

// New builds the router. A nil gatherer serves the default Prometheus registry.
func New(log *slog.Logger, cfg *config.Config, svc service.Media, metrics *observability.Metrics,
	gatherer prometheus.Gatherer,
) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		svc:      svc,
		metrics:  metrics,
		gatherer: gatherer,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	r.handler = r.globalChain.then(r.ServeMux)

	return r
}

// Use appends middleware to the global chain.
func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	r.globalChain = append(r.globalChain, middleware...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// SetGlobalMiddlewares installs the chain applied to every route.
func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logger(r.log),
	)

	if r.metrics != nil {
		r.Use(middleware.Metrics(r.metrics))
	}
}

// SetRoutes registers all routes.
func (r *Router) SetRoutes() {
	r.SetRoutesHealthcheck()
	r.SetRoutesMedia()

	r.HandleFunc("GET /{$}", r.Index)
	r.Handle("GET /metrics", observability.Handler(r.gatherer))
}

// SetRoutesHealthcheck registers the readiness probe.
func (r *Router) SetRoutesHealthcheck() {
	r.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// SetRoutesMedia registers the catalog and download routes.
// The unversioned paths keep the reply shapes of the first release.
func (r *Router) SetRoutesMedia() {
	r.HandleFunc("POST /v1/video_info", r.VideoInfo)
	r.HandleFunc("POST /v1/download", r.Download)

	r.HandleFunc("POST /video_info/", r.LegacyVideoInfo)
	r.HandleFunc("POST /download/", r.Download)
}

// Index serves the HTML front-end.
func (r *Router) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// VideoInfo returns the catalog of a media URL inside the response envelope.
func (r *Router) VideoInfo(w http.ResponseWriter, req *http.Request) {
	r.videoInfo(w, req, "VideoInfo", func(catalog *entity.Catalog) {
		response.OK(w, consts.RespVideoInfoRetrieved, catalog)
	})
}

// LegacyVideoInfo returns the bare catalog. Errors still use the envelope.
func (r *Router) LegacyVideoInfo(w http.ResponseWriter, req *http.Request) {
	r.videoInfo(w, req, "LegacyVideoInfo", func(catalog *entity.Catalog) {
		response.JSON(w, http.StatusOK, catalog)
	})
}

func (r *Router) videoInfo(w http.ResponseWriter, req *http.Request, handler string,
	write func(*entity.Catalog),
) {
	log := r.log.With(slog.String("handler", handler), slog.String("request_id", middleware.RequestIDFrom(req.Context())))

	timeout := r.cfg.HTTP.HandlerTimeout
	if timeout <= 0 {
		timeout = consts.DefaultHandlerTimeout
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	var in request.VideoInfo
	if err := request.Decode(w, req, &in); err != nil {
		r.fail(ctx, w, log, consts.RespVideoInfoFail, err)

		return
	}

	if err := in.Validate(); err != nil {
		r.fail(ctx, w, log, consts.RespVideoInfoFail, err)

		return
	}

	catalog, err := r.svc.Catalog(ctx, in.URL)
	if err != nil {
		r.fail(ctx, w, log, consts.RespVideoInfoFail, err)

		return
	}

	log.InfoContext(ctx, consts.RespVideoInfoRetrieved, slog.String("url", in.URL))

	write(catalog)
}

// Download produces the requested rendition and streams it as an attachment.
// The artifact is released for deletion once streaming returns.
func (r *Router) Download(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := r.log.With(slog.String("handler", "Download"), slog.String("request_id", middleware.RequestIDFrom(ctx)))

	var in request.Download
	if err := request.Decode(w, req, &in); err != nil {
		r.fail(ctx, w, log, consts.RespDownloadFail, err)

		return
	}

	if err := in.Validate(); err != nil {
		r.fail(ctx, w, log, consts.RespDownloadFail, err)

		return
	}

	artifact, err := r.svc.Download(ctx, in.Entity())
	if err != nil {
		r.fail(ctx, w, log, consts.RespDownloadFail, err)

		return
	}

	defer r.svc.Release(artifact)

	file, err := os.Open(artifact.Path)
	if err != nil {
		r.fail(ctx, w, log, consts.RespDownloadFail, errors.Join(errs.ErrArtifactMissing, err))

		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		r.fail(ctx, w, log, consts.RespDownloadFail, err)

		return
	}

	log.InfoContext(ctx, "streaming artifact", slog.Any("artifact", artifact))

	response.Attachment(w, req, artifact.ClientFilename, artifact.MediaType, info.ModTime(), file)
}

// fail maps err to a status code and writes the JSON envelope.
func (r *Router) fail(ctx context.Context, w http.ResponseWriter, log *slog.Logger, message string, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidRequestBody):
		log.WarnContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, err)
	case errors.Is(err, errs.ErrValidation):
		log.WarnContext(ctx, consts.RespValidationFailed, slog.Any("error", err))
		response.BadRequest(w, consts.RespValidationFailed, err)
	case errors.Is(err, errs.ErrArtifactMissing):
		log.ErrorContext(ctx, consts.RespFileNotFound, slog.Any("error", err))
		response.NotFound(w, consts.RespFileNotFound, err)
	case errors.Is(err, errs.ErrExtraction):
		log.WarnContext(ctx, message, slog.Any("error", err))
		response.BadRequest(w, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		log.ErrorContext(ctx, message, slog.Any("error", err))
		response.GatewayTimeout(w, message, err)
	default:
		log.ErrorContext(ctx, message, slog.Any("error", err))
		response.InternalServerError(w, message, err)
	}
}
