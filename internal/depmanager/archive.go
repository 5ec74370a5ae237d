package depmanager

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"
)

type archiveFormat int

const (
	archiveNone archiveFormat = iota
	archiveZip
	archiveTarXZ
	archiveTarGZ
)

var errTargetsMissing = errors.New("archive is missing expected files")

func detectArchive(url string) archiveFormat {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return archiveZip
	case strings.HasSuffix(url, ".tar.xz"):
		return archiveTarXZ
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return archiveTarGZ
	}

	return archiveNone
}

// extract copies the archive members whose base name is a key of targets to the mapped path.
// Every target must be found.
func extract(format archiveFormat, archivePath string, targets map[string]string) error {
	if format == archiveZip {
		return extractZip(archivePath, targets)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var reader io.Reader

	switch format {
	case archiveTarXZ:
		reader, err = xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
	case archiveTarGZ:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()

		reader = gz
	default:
		return fmt.Errorf("unsupported archive format %d", format)
	}

	return extractTar(reader, targets)
}

func extractTar(r io.Reader, targets map[string]string) error {
	tr := tar.NewReader(r)
	found := make(map[string]struct{}, len(targets))

	for len(found) < len(targets) {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(header.Name)

		dest, ok := targets[name]
		if !ok {
			continue
		}

		if err := writeFile(dest, tr); err != nil {
			return err
		}

		found[name] = struct{}{}
	}

	return checkFound(found, targets)
}

func extractZip(archivePath string, targets map[string]string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	found := make(map[string]struct{}, len(targets))

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name := path.Base(f.Name)

		dest, ok := targets[name]
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip member: %w", err)
		}

		err = writeFile(dest, rc)
		rc.Close()

		if err != nil {
			return err
		}

		found[name] = struct{}{}
	}

	return checkFound(found, targets)
}

func writeFile(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	_, err = io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	return nil
}

func checkFound(found map[string]struct{}, targets map[string]string) error {
	var missing []string

	for name := range targets {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errTargetsMissing, strings.Join(missing, ", "))
	}

	return nil
}
