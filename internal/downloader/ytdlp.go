package downloader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tubedrop/internal/config"
	"tubedrop/internal/consts"
	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
	"tubedrop/internal/proxymgr"
	"tubedrop/pkg/maths"
	"tubedrop/pkg/ptr"

	"github.com/lrstanley/go-ytdlp"
)

var (
	maxJSONSize = 16 * 1024 * 1024 // 16 MiB scanner buffer, info documents with many formats are large
	bufSize     = 64 * 1024        // 64 KiB initial buffer
)

// YTdlp is an Extractor backed by the yt-dlp binary.
type YTdlp struct {
	log     *slog.Logger
	cfg     *config.Config
	bin     string
	proxies *proxymgr.Manager
}

// NewYTdlp creates a yt-dlp extractor. An empty bin resolves yt-dlp from PATH.
// proxies may be nil.
func NewYTdlp(log *slog.Logger, cfg *config.Config, bin string, proxies *proxymgr.Manager) *YTdlp {
	if proxies.Enabled() {
		log.Info("proxy manager attached", slog.Int("proxy_count", proxies.Available()))
	}

	return &YTdlp{
		log:     log.With(slog.String("package", "downloader"), slog.String("extractor", consts.ExtractorYTdlp)),
		cfg:     cfg,
		bin:     bin,
		proxies: proxies,
	}
}

// Name implements Extractor.
func (d *YTdlp) Name() string {
	return consts.ExtractorYTdlp
}

// Metadata implements Extractor.
func (d *YTdlp) Metadata(ctx context.Context, url string) (*entity.Metadata, error) {
	log := d.log.With(slog.String("func", "Metadata"), slog.String("url", url))

	command := d.command().
		SkipDownload().
		PrintJSON()

	res, err := d.run(ctx, command, url)
	if err != nil {
		log.ErrorContext(ctx, "ytdlp run", slog.Any("error", err), slog.Any("result", Result{res}))

		return nil, err
	}

	meta, err := ParseMetadata(res.Stdout)
	if err != nil {
		log.ErrorContext(ctx, "parse ytdlp stdout", slog.Any("error", err), slog.Any("result", Result{res}))

		return nil, &errs.ExtractionError{URL: url, Message: "malformed extractor output", Err: err}
	}

	log.DebugContext(ctx, "metadata extracted", slog.Any("metadata", meta))

	return meta, nil
}

// Download implements Extractor.
func (d *YTdlp) Download(ctx context.Context, url string, opts Options) error {
	log := d.log.With(slog.String("func", "Download"), slog.String("url", url), slog.String("selector", opts.Selector))

	progressFn := func(prog ytdlp.ProgressUpdate) {
		log.DebugContext(ctx, "ytdlp progress", slog.Any("progress_update", ProgressUpdate{&prog}))
	}

	command := d.command().
		Format(opts.Selector).
		Output(opts.OutputTemplate).
		ProgressFunc(defaultProgressFreq, progressFn)

	if opts.Transcode != nil {
		command = command.
			ExtractAudio().
			AudioFormat(opts.Transcode.Codec).
			AudioQuality(opts.Transcode.Quality)
	}

	res, err := d.run(ctx, command, url)
	if err != nil {
		log.ErrorContext(ctx, "ytdlp run", slog.Any("error", err), slog.Any("result", Result{res}))

		return err
	}

	log.InfoContext(ctx, "done", slog.Any("result", Result{res}))

	return nil
}

// command builds the flags shared by every invocation.
func (d *YTdlp) command() *ytdlp.Command {
	command := ytdlp.New().
		NoPlaylist().
		CacheDir(d.cfg.Dir.Cache)

	if d.bin != "" {
		command = command.SetExecutable(d.bin)
	}

	if d.cfg.Dir.CookieFile != "" {
		command = command.Cookies(d.cfg.Dir.CookieFile)
	}

	return command
}

// run executes command through the next available proxy and reports the outcome back to the pool.
func (d *YTdlp) run(ctx context.Context, command *ytdlp.Command, url string) (*ytdlp.Result, error) {
	var proxy string

	if d.proxies.Enabled() {
		next, err := d.proxies.Next()
		if err != nil {
			d.log.WarnContext(ctx, "no proxy available, going direct", slog.Any("error", err))
		} else {
			proxy = next
			command = command.Proxy(proxy)
		}
	}

	res, err := command.Run(ctx, url)

	if proxy != "" && ctx.Err() == nil {
		d.proxies.Report(proxy, err)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("ytdlp run: %w", ctxErr)
		}

		return res, extractionError(url, res, err)
	}

	return res, nil
}

func extractionError(url string, res *ytdlp.Result, err error) error {
	var message string
	if res != nil {
		message = lastLine(res.Stderr)
	}

	return &errs.ExtractionError{URL: url, Message: message, Err: err}
}

// ParseMetadata decodes the first info document found in yt-dlp stdout.
// Non-JSON lines such as warnings are skipped.
func ParseMetadata(stdout string) (*entity.Metadata, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, bufSize), maxJSONSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var info infoJSON
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("decode info json: %w", err)
		}

		return info.metadata(), nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stdout: %w", err)
	}

	return nil, errNoInfo
}

var errNoInfo = errors.New("no info json in output")

func (i infoJSON) metadata() *entity.Metadata {
	title := strings.TrimSpace(ptr.Deref(i.Title))
	if title == "" {
		title = consts.DefaultTitle
	}

	renditions := make([]entity.RawRendition, 0, len(i.Formats))

	for _, f := range i.Formats {
		renditions = append(renditions, entity.RawRendition{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			FormatNote: f.FormatNote,
			FileSize:   roundInt64(f.FileSize),
			VCodec:     f.VCodec,
			Height:     roundInt(f.Height),
			AvgBitrate: roundInt(f.Tbr),
		})
	}

	return &entity.Metadata{
		Title:        title,
		ThumbnailURL: ptr.Deref(i.Thumbnail),
		Renditions:   renditions,
	}
}

func roundInt(v *float64) *int {
	if v == nil {
		return nil
	}

	return ptr.Of(maths.RoundFloat64ToInt(*v))
}

func roundInt64(v *float64) *int64 {
	if v == nil {
		return nil
	}

	return ptr.Of(int64(maths.RoundFloat64ToInt(*v)))
}
