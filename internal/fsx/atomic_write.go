package fsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrAtomicWriteDirSync indicates the parent directory could not be synced
// after rename. The new file is in place but durability is not guaranteed.
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter writes files atomically using a temp-file-then-rename
// sequence, fsyncing the payload (and optionally the directory) before
// returning.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter that uses the given filesystem.
// Panics if fs is nil.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

// AtomicWriteOptions configures Write behavior.
type AtomicWriteOptions struct {
	// SyncDir controls whether the parent directory is synced after rename.
	SyncDir bool

	// Perm specifies the file permissions. Must be non-zero.
	Perm os.FileMode
}

// Write writes data from r to path atomically and durably: it writes to a
// temp file in the same directory, syncs it, renames it over path, then
// syncs the parent directory (if opts.SyncDir is true).
//
// If the directory sync step fails, the returned error satisfies
// errors.Is(err, ErrAtomicWriteDirSync); the payload is already in place.
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmpFile, tmpPath, err := createAtomicTempFile(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	cleanup := func() error {
		closeErr := closeTmpFile(tmpPath, tmpFile)
		removeErr := removeTempFile(w.fs, tmpPath)

		return errors.Join(closeErr, removeErr)
	}

	if chmodErr := tmpFile.Chmod(opts.Perm); chmodErr != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, chmodErr), cleanup())
	}

	if writeErr := writeAndSyncTempFile(tmpFile, tmpPath, reader); writeErr != nil {
		return errors.Join(writeErr, cleanup())
	}

	if renameErr := w.fs.Rename(tmpPath, path); renameErr != nil {
		return errors.Join(fmt.Errorf("rename: %w", renameErr), cleanup())
	}

	cleanupErr := cleanup()

	if opts.SyncDir {
		if err := fsyncDir(w.fs, dir); err != nil {
			return errors.Join(err, cleanupErr)
		}
	}

	return nil
}

// WriteBytes is a convenience wrapper around Write for in-memory payloads.
func (w *AtomicWriter) WriteBytes(path string, data []byte, opts AtomicWriteOptions) error {
	return w.Write(path, bytes.NewReader(data), opts)
}

// WriteWithDefaults writes content atomically using default options
// (sync the directory, mode 0o644).
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// DefaultOptions returns the default atomic write options.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{
		SyncDir: true,
		Perm:    0o644,
	}
}

func writeAndSyncTempFile(file File, path string, r io.Reader) error {
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write temp file %q: %w", path, err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync temp file %q: %w", path, err)
	}

	return nil
}

const atomicWriteMaxAttempts = 10000

var atomicWriteCounter atomic.Uint64

func createAtomicTempFile(fs FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range atomicWriteMaxAttempts {
		seq := atomicWriteCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func fsyncDir(fs FS, dirPath string) error {
	dirFd, err := fs.Open(dirPath)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dirPath, err))
	}

	syncErr := dirFd.Sync()
	if syncErr == nil {
		return closeDir(dirPath, dirFd)
	}

	return errors.Join(
		ErrAtomicWriteDirSync,
		fmt.Errorf("%q: %w", dirPath, syncErr),
		closeDir(dirPath, dirFd),
	)
}

func closeDir(dir string, file File) error {
	if err := file.Close(); err != nil {
		return fmt.Errorf("close dir %q: %w", dir, err)
	}

	return nil
}

func closeTmpFile(path string, file File) error {
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file %q: %w", path, err)
	}

	return nil
}

func removeTempFile(fs FS, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file %q: %w", path, err)
	}

	return nil
}
