package fsx

import (
	"io"
	"math/rand"
	"os"
	"sync"
	"syscall"
)

// ChaosConfig controls fault injection probabilities for [Chaos]. Each rate
// is a float64 from 0.0 (never) to 1.0 (always). The zero value disables all
// fault injection.
//
// Chaos can stand in for a real FS (for example through store.WithFS) to
// exercise the error kinds in spec §7 (external_io, storage_busy) without
// needing a real flaky disk.
type ChaosConfig struct {
	// WriteFailRate controls how often File.Write fails entirely.
	WriteFailRate float64

	// SyncFailRate controls how often File.Sync (fsync) fails.
	SyncFailRate float64

	// RenameFailRate controls how often FS.Rename fails, simulating a crash
	// between temp-file write and the atomic rename.
	RenameFailRate float64

	// ReadFailRate controls how often FS.ReadFile and File.Read fail.
	ReadFailRate float64

	// OpenFailRate controls how often FS.Open/Create/OpenFile fail.
	OpenFailRate float64
}

// Chaos wraps an [FS] and injects faults according to [ChaosConfig]. Safe
// for concurrent use; the config can be swapped at runtime via SetConfig.
type Chaos struct {
	mu     sync.RWMutex
	inner  FS
	cfg    ChaosConfig
	rand   *rand.Rand
	randMu sync.Mutex
}

// NewChaos wraps inner with fault injection governed by cfg.
func NewChaos(inner FS, cfg ChaosConfig) *Chaos {
	return &Chaos{
		inner: inner,
		cfg:   cfg,
		//nolint:gosec // deterministic-enough test fault injection, not security sensitive
		rand: rand.New(rand.NewSource(1)),
	}
}

// SetConfig atomically replaces the fault injection configuration.
func (c *Chaos) SetConfig(cfg ChaosConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg = cfg
}

func (c *Chaos) config() ChaosConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cfg
}

func (c *Chaos) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.randMu.Lock()
	defer c.randMu.Unlock()

	return c.rand.Float64() < rate
}

func (c *Chaos) Open(path string) (File, error) {
	if c.roll(c.config().OpenFailRate) {
		return nil, &os.PathError{Op: "open", Path: path, Err: syscall.EIO}
	}

	f, err := c.inner.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) Create(path string) (File, error) {
	if c.roll(c.config().OpenFailRate) {
		return nil, &os.PathError{Op: "create", Path: path, Err: syscall.ENOSPC}
	}

	f, err := c.inner.Create(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.roll(c.config().OpenFailRate) {
		return nil, &os.PathError{Op: "openfile", Path: path, Err: syscall.EIO}
	}

	f, err := c.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.roll(c.config().ReadFailRate) {
		return nil, &os.PathError{Op: "read", Path: path, Err: syscall.EIO}
	}

	return c.inner.ReadFile(path)
}

func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) error {
	if c.roll(c.config().WriteFailRate) {
		return &os.PathError{Op: "write", Path: path, Err: syscall.ENOSPC}
	}

	return c.inner.WriteFile(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) { return c.inner.ReadDir(path) }
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.inner.MkdirAll(path, perm)
}
func (c *Chaos) Stat(path string) (os.FileInfo, error) { return c.inner.Stat(path) }
func (c *Chaos) Exists(path string) (bool, error)      { return c.inner.Exists(path) }
func (c *Chaos) Remove(path string) error               { return c.inner.Remove(path) }
func (c *Chaos) RemoveAll(path string) error             { return c.inner.RemoveAll(path) }

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.roll(c.config().RenameFailRate) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EIO}
	}

	return c.inner.Rename(oldpath, newpath)
}

var _ FS = (*Chaos)(nil)

// chaosFile wraps a File and injects write/sync/read faults.
type chaosFile struct {
	File

	c *Chaos
}

func (f *chaosFile) Write(p []byte) (int, error) {
	if f.c.roll(f.c.config().WriteFailRate) {
		return 0, &os.PathError{Op: "write", Err: syscall.EIO}
	}

	return f.File.Write(p)
}

func (f *chaosFile) Read(p []byte) (int, error) {
	if f.c.roll(f.c.config().ReadFailRate) {
		return 0, &os.PathError{Op: "read", Err: syscall.EIO}
	}

	return f.File.Read(p)
}

func (f *chaosFile) Sync() error {
	if f.c.roll(f.c.config().SyncFailRate) {
		return &os.PathError{Op: "sync", Err: syscall.EIO}
	}

	return f.File.Sync()
}

var _ File = (*chaosFile)(nil)
var _ io.ReadWriteCloser = (*chaosFile)(nil)
