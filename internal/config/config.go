// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubedrop/internal/errs"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	HTTP       HTTP
	App        App
	Dir        Dir
	Delivery   Delivery
	Storage    Storage
	DepManager DepManager
	Proxy      Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel  string `env:"TUBEDROP_APP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TUBEDROP_APP_LOG_FORMAT" envDefault:"json"`
	// Extractor selects the extractor backend: "ytdlp" or "mock".
	Extractor string `env:"TUBEDROP_APP_EXTRACTOR" envDefault:"ytdlp"`
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port            string        `env:"TUBEDROP_HTTP_PORT"             envDefault:":8000"`
	HandlerTimeout  time.Duration `env:"TUBEDROP_HTTP_HANDLER_TIMEOUT"  envDefault:"90s"`
	WriteTimeout    time.Duration `env:"TUBEDROP_HTTP_WRITE_TIMEOUT"    envDefault:"30m"`
	ShutdownTimeout time.Duration `env:"TUBEDROP_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Delivery holds metadata and download pipeline configuration.
type Delivery struct {
	// GracePeriod is how long an artifact stays on disk after it was streamed.
	GracePeriod     time.Duration `env:"TUBEDROP_DELIVERY_GRACE_PERIOD"     envDefault:"5s"`
	MetadataTimeout time.Duration `env:"TUBEDROP_DELIVERY_METADATA_TIMEOUT" envDefault:"1m"`
	DownloadTimeout time.Duration `env:"TUBEDROP_DELIVERY_DOWNLOAD_TIMEOUT" envDefault:"30m"`
	// SortByHeight orders video options by descending height instead of source order.
	SortByHeight bool `env:"TUBEDROP_DELIVERY_SORT_BY_HEIGHT" envDefault:"false"`
}

// Storage holds ephemeral storage configuration.
type Storage struct {
	// OrphanTTL is the age after which a leftover work directory is swept.
	OrphanTTL     time.Duration `env:"TUBEDROP_STORAGE_ORPHAN_TTL"     envDefault:"1h"`
	SweepInterval time.Duration `env:"TUBEDROP_STORAGE_SWEEP_INTERVAL" envDefault:"10m"`
}

// Dir holds directory paths for downloads, cache, and cookie file.
type Dir struct {
	Downloads string `env:"TUBEDROP_DIR_DOWNLOAD" envDefault:"./downloads"` // ephemeral artifacts
	Cache     string `env:"TUBEDROP_DIR_CACHE"    envDefault:"./data/cache"` // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file for gated sources
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"TUBEDROP_DIR_COOKIE_FILE" envDefault:""`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	if c.Cache, err = filepath.Abs(c.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// CheckCookieFile fails when a cookie file is configured but absent.
func (c *Dir) CheckCookieFile() error {
	if c.CookieFile == "" {
		return nil
	}

	if _, err := os.Stat(c.CookieFile); err != nil {
		return fmt.Errorf("%w: %s: %w", errs.ErrCookieFileMissing, c.CookieFile, err)
	}

	return nil
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.Dir.CheckCookieFile()
	if err != nil {
		return nil, fmt.Errorf("check cookie file: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"TUBEDROP_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries resolves binaries from PATH instead of downloading them.
	UseSystemBinaries bool `env:"TUBEDROP_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"false"`
	// UpdateInterval is how often to check for binary updates
	UpdateInterval time.Duration `env:"TUBEDROP_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	FFmpegSHA256SumsURL string `env:"TUBEDROP_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                        //nolint:lll
	FFmpegLinuxARM64    string `env:"TUBEDROP_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"TUBEDROP_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	YTdlpSHA256SumsURL string `env:"TUBEDROP_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`      //nolint:lll
	YTdlpLinuxARM64    string `env:"TUBEDROP_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"TUBEDROP_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll

	// deno solves the JS challenges of some extractors
	DenoSHA256SumsURL string `env:"TUBEDROP_DEPMANAGER_DENO_SHA256SUMS_URL" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip.sha256sum,https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip.sha256sum"` //nolint:lll
	DenoLinuxARM64    string `env:"TUBEDROP_DEPMANAGER_DENO_LINUX_ARM64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip"`                                                                                                                    //nolint:lll
	DenoLinuxAMD64    string `env:"TUBEDROP_DEPMANAGER_DENO_LINUX_AMD64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip"`                                                                                                                     //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for extractor requests.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"TUBEDROP_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"TUBEDROP_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"TUBEDROP_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"TUBEDROP_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
