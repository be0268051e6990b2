// Package fsx provides filesystem abstractions for the store and index
// snapshot layers, so that atomic writes, locking, and fault injection can be
// exercised in tests without touching the real disk semantics.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os]
//   - [Locker]: flock(2)-based advisory locking
//   - [AtomicWriter]: temp-file-then-rename durable writes
package fsx

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all standard
// library functions that accept [io.Reader], [io.Writer], [io.Seeker], or
// [io.Closer].
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. Used for flock(2) via [Locker].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file.
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk.
	Sync() error

	// Chmod changes the mode of the file.
	Chmod(mode os.FileMode) error
}

// FS defines filesystem operations for reading, writing, and managing files.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by io/fs.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	Open(path string) (File, error)
	Create(path string) (File, error)
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadDir(path string) ([]os.DirEntry, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
