// Reader/writer compression helpers: detect a .zst/.zstd suffix and
// transparently wrap the underlying file in a zstd stream.
package dataset

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst") || strings.HasSuffix(path, ".zstd")
}

// openWriter returns an io.Writer for path, creating parent directories as
// needed, and a closer to run once writing is done.
func openWriter(path string) (io.Writer, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	if !isCompressed(path) {
		return file, file.Close, nil
	}
	zw, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return zw, func() error {
		zerr := zw.Close()
		ferr := file.Close()
		if zerr != nil {
			return zerr
		}
		return ferr
	}, nil
}

// openReader returns an io.Reader for path and a closer to run once
// reading is done.
func openReader(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !isCompressed(path) {
		return file, file.Close, nil
	}
	zr, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return zr, func() error {
		zr.Close()
		return file.Close()
	}, nil
}
