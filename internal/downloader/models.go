package downloader

import (
	"fmt"
	"log/slog"
	"strings"

	"tubedrop/pkg/calc"
	"tubedrop/pkg/shellquote"

	"github.com/lrstanley/go-ytdlp"
)

// Result wraps ytdlp.Result for custom logging.
type Result struct {
	*ytdlp.Result
}

// LogValue implements the slog.LogValuer interface for custom logging of Result.
func (r Result) LogValue() slog.Value {
	if r.Result == nil {
		return slog.GroupValue(slog.String("error", "nil result"))
	}

	return slog.GroupValue(
		slog.String("command", shellquote.Join(r.Executable, r.Args)),
		slog.Int("exit_code", r.ExitCode),
		slog.String("stderr", lastLine(r.Stderr)),
	)
}

// ProgressUpdate wraps ytdlp.ProgressUpdate for custom logging.
type ProgressUpdate struct {
	*ytdlp.ProgressUpdate
}

// LogValue implements the slog.LogValuer interface for custom logging of ProgressUpdate.
func (p ProgressUpdate) LogValue() slog.Value {
	if p.ProgressUpdate == nil {
		return slog.GroupValue(slog.String("error", "nil progress update"))
	}

	return slog.GroupValue(
		slog.String("filename", p.Filename),
		slog.String("status", fmt.Sprintf("%v", p.Status)),
		slog.Int("downloaded_bytes", p.DownloadedBytes),
		slog.Int("total_bytes", p.TotalBytes),
		slog.Int("progress", calc.Progress(p.DownloadedBytes, p.TotalBytes)),
		slog.String("eta", calc.ETA(p.DownloadedBytes, p.TotalBytes, p.Started).String()),
	)
}

// infoJSON is the subset of the yt-dlp info document the catalog needs.
type infoJSON struct {
	Title     *string      `json:"title"`
	Thumbnail *string      `json:"thumbnail"`
	Formats   []formatJSON `json:"formats"`
}

// formatJSON is one entry of the yt-dlp "formats" array.
// Numbers are floats because yt-dlp emits both 1080 and 1080.0 depending on the extractor.
type formatJSON struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	FormatNote *string  `json:"format_note"`
	FileSize   *float64 `json:"filesize"`
	VCodec     *string  `json:"vcodec"`
	Height     *float64 `json:"height"`
	Tbr        *float64 `json:"tbr"`
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n\t ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}

	return strings.TrimSpace(s)
}
