package depmanager

import (
	"strings"

	"tubedrop/internal/config"
)

// BinaryName represents the name of a binary dependency.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
	BinaryDeno    BinaryName = "deno"
)

const (
	osLinux   = "linux"
	osWindows = "windows"
	archARM64 = "arm64"
	archAMD64 = "amd64"
)

// Platform is the OS and architecture the binaries are fetched for.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

func (p Platform) linuxARM() bool {
	return p.OS == osLinux && p.Arch == archARM64
}

// source describes where one downloadable artifact lives and what it provides.
type source struct {
	name BinaryName
	// arm64 and amd64 are the download URLs per architecture.
	arm64, amd64 string
	// sums lists the checksum files that mention this artifact.
	sums string
	// asset is the artifact file name as listed in the checksum files.
	asset func(Platform) string
	// provides lists the binaries unpacked from an archive. Empty means the URL is the binary itself.
	provides []BinaryName
	// optional artifacts do not fail startup when missing from PATH.
	optional bool
}

// url picks the URL for p. Anything but linux/arm64 falls back to the amd64 build.
func (s source) url(p Platform) string {
	if p.linuxARM() && s.arm64 != "" {
		return s.arm64
	}

	return s.amd64
}

// binaries returns the binaries installing s produces.
func (s source) binaries() []BinaryName {
	if len(s.provides) == 0 {
		return []BinaryName{s.name}
	}

	return s.provides
}

// sources returns the install order: ffmpeg and deno first, yt-dlp last.
func sources(cfg config.DepManager) []source {
	return []source{
		{
			name:  BinaryFFmpeg,
			arm64: cfg.FFmpegLinuxARM64,
			amd64: cfg.FFmpegLinuxAMD64,
			sums:  cfg.FFmpegSHA256SumsURL,
			asset: func(p Platform) string {
				if p.linuxARM() {
					return "ffmpeg-master-latest-linuxarm64-gpl.tar.xz"
				}

				return "ffmpeg-master-latest-linux64-gpl.tar.xz"
			},
			provides: []BinaryName{BinaryFFmpeg, BinaryFFprobe},
		},
		{
			name:  BinaryDeno,
			arm64: cfg.DenoLinuxARM64,
			amd64: cfg.DenoLinuxAMD64,
			sums:  cfg.DenoSHA256SumsURL,
			asset: func(p Platform) string {
				if p.linuxARM() {
					return "deno-aarch64-unknown-linux-gnu.zip"
				}

				return "deno-x86_64-unknown-linux-gnu.zip"
			},
			provides: []BinaryName{BinaryDeno},
			optional: true,
		},
		{
			name:  BinaryYTdlp,
			arm64: cfg.YTdlpLinuxARM64,
			amd64: cfg.YTdlpLinuxAMD64,
			sums:  cfg.YTdlpSHA256SumsURL,
			asset: func(p Platform) string {
				if p.linuxARM() {
					return "yt-dlp_linux_aarch64"
				}

				return "yt-dlp_linux"
			},
		},
	}
}

// splitList splits a comma separated list and drops empty items.
func splitList(raw string) []string {
	var items []string

	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}

	return items
}
