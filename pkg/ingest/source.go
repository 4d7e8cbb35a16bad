package ingest

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// readCloser reads from r and closes every closer, innermost first
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closeFunc func()

func (f closeFunc) Close() error { f(); return nil }

// Open returns a stream over the snapshot lines at path. The format is
// picked by extension: .zip (exactly one entry, read in place), .zst, .gz,
// anything else is plain text.
func Open(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.Wrapf(ErrSourceNotFound, "%s is a directory", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZip(path)
	case ".zst", ".zstd":
		return openWith(path, func(f *os.File) (io.Reader, io.Closer, error) {
			dec, err := zstd.NewReader(f)
			if err != nil {
				return nil, nil, err
			}
			return dec, closeFunc(dec.Close), nil
		})
	case ".gz":
		return openWith(path, func(f *os.File) (io.Reader, io.Closer, error) {
			zr, err := gzip.NewReader(f)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr, nil
		})
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		return f, nil
	}
}

func openWith(path string, wrap func(*os.File) (io.Reader, io.Closer, error)) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	r, c, err := wrap(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrMalformedArchive, "%s: %v", path, err)
	}
	return &readCloser{Reader: r, closers: []io.Closer{c, f}}, nil
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "%s: %v", path, err)
	}
	if n := len(zr.File); n != 1 {
		zr.Close()
		return nil, errors.Wrapf(ErrMalformedArchive, "%s: want exactly one entry, found %d", path, n)
	}
	entry, err := zr.File[0].Open()
	if err != nil {
		zr.Close()
		return nil, errors.Wrapf(ErrMalformedArchive, "%s: open %s: %v", path, zr.File[0].Name, err)
	}
	return &readCloser{Reader: entry, closers: []io.Closer{entry, zr}}, nil
}
