package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipExt marks paths whose contents are gzip compressed
const GzipExt = ".gz"

var gzipMagic = []byte{0x1f, 0x8b}

// FormatOutput joins stub, name and ext into "stub-name.ext". Empty parts are
// skipped and a leading dot on ext is not doubled.
func FormatOutput(stub, name, ext string) string {
	handle := stub
	if name != "" {
		if handle != "" {
			handle += "-"
		}
		handle += name
	}
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		handle += "." + ext
	}
	return handle
}

// InDirectory places a relative path under dir. Absolute paths and an empty
// dir leave path untouched.
func InDirectory(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// IsCompressed reports whether path names a gzip file
func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), GzipExt)
}

// Exists reports whether a regular file exists at path
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AtomicWrite writes the output of fn to path through a temporary file that
// replaces path only once fully written and synced.
func AtomicWrite(path string, fn func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := writeTo(file, path, fn); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func writeTo(file *os.File, path string, fn func(w io.Writer) error) error {
	buf := bufio.NewWriter(file)

	if !IsCompressed(path) {
		if err := fn(buf); err != nil {
			return err
		}
		if err := buf.Flush(); err != nil {
			return fmt.Errorf("failed to flush file: %w", err)
		}
		return nil
	}

	zw := gzip.NewWriter(buf)
	zw.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := fn(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	return nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenReader opens path for reading, decompressing it when it starts with
// the gzip magic number regardless of its extension.
func OpenReader(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(file)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !bytes.Equal(head, gzipMagic) {
		return &readCloser{Reader: br, closers: []io.Closer{file}}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	return &readCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil
}
