// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tubedrop/internal/config"
	"tubedrop/internal/consts"
	"tubedrop/internal/depmanager"
	"tubedrop/internal/downloader"
	httprouter "tubedrop/internal/infrastructure/delivery/http"
	"tubedrop/internal/observability"
	"tubedrop/internal/proxymgr"
	"tubedrop/internal/service"
	"tubedrop/internal/storage"
	httpserver "tubedrop/pkg/http/server"
	"tubedrop/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
		Format:    cfg.App.LogFormat,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(nil)

	extractor, err := newExtractor(ctx, log, cfg, metrics)
	if err != nil {
		log.ErrorContext(ctx, "extractor setup", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	store := storage.New(log, cfg, metrics)
	if err := store.Init(); err != nil {
		log.ErrorContext(ctx, "storage init", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	go store.SweepOrphans(ctx)

	svc := service.New(cfg, log, extractor, store, metrics)
	router := httprouter.New(log, cfg, svc, metrics, nil)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Port,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "tubedrop started",
		slog.String("port", cfg.HTTP.Port),
		slog.String("extractor", extractor.Name()))

	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		if err != nil {
			log.ErrorContext(ctx, "http server", slog.Any("error", err))
		}
	}

	if err := httpSrv.Shutdown(); err != nil {
		log.Error("http server shutdown", slog.Any("error", err))
	}

	// pending deletions still run their grace period
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout+cfg.Delivery.GracePeriod)
	defer cancel()

	if err := store.Wait(waitCtx); err != nil {
		log.Warn("pending deletions abandoned", slog.Any("error", err))
	}

	log.Info("tubedrop shut down gracefully")
}

// newExtractor returns the mock extractor or a yt-dlp extractor backed by managed binaries.
func newExtractor(ctx context.Context, log *slog.Logger, cfg *config.Config,
	metrics *observability.Metrics,
) (downloader.Extractor, error) {
	if cfg.App.Extractor == consts.ExtractorMock {
		return downloader.NewMock(log, consts.DefaultSimulateTime), nil
	}

	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "checking yt-dlp, ffmpeg and deno. it may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		return nil, err
	}

	if !cfg.DepManager.UseSystemBinaries {
		if err := depMgr.PrependToPath(); err != nil {
			return nil, err
		}
	}

	proxies := proxymgr.New(log, cfg.Proxy, metrics)
	proxies.Start(ctx)

	return downloader.NewYTdlp(log, cfg, depMgr.Path(depmanager.BinaryYTdlp), proxies), nil
}
