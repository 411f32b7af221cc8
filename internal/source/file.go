// Package source tracks the on-disk files a deck definition depends on.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// File is a tracked file: an absolute path plus the modification time last
// observed for it. The baseline only moves forward through Refresh.
type File struct {
	path string
	dir  string
	base string
	ext  string

	mu    sync.Mutex
	mtime time.Time
}

// Open stats path and returns a File whose baseline is the current mtime.
// Errors wrap the underlying os error so callers can test for fs.ErrNotExist.
func Open(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("source: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source: %s is a directory", abs)
	}
	return newFile(abs, info.ModTime()), nil
}

// Track returns a File whose baseline is mtime, typically the time observed
// when the file was read. Any later write shows up on the next Refresh.
func Track(path string, mtime time.Time) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("source: resolve %s: %w", path, err)
	}
	return newFile(abs, mtime), nil
}

func newFile(abs string, mtime time.Time) *File {
	name := filepath.Base(abs)
	ext := filepath.Ext(name)
	return &File{
		path:  abs,
		dir:   filepath.Dir(abs),
		base:  strings.TrimSuffix(name, ext),
		ext:   ext,
		mtime: mtime,
	}
}

// Path returns the absolute path.
func (f *File) Path() string { return f.path }

// Dir returns the absolute directory containing the file.
func (f *File) Dir() string { return f.dir }

// Base returns the file name without its final extension.
func (f *File) Base() string { return f.base }

// Ext returns the final extension including the dot, or "".
func (f *File) Ext() string { return f.ext }

// ModTime returns the baseline modification time.
func (f *File) ModTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mtime
}

// Exists reports whether the file is currently present on disk.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Dirty reports whether the file changed since the baseline without
// rebasing it.
func (f *File) Dirty() (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return false, fmt.Errorf("source: stat %s: %w", f.path, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return info.ModTime().After(f.mtime), nil
}

// Refresh reports whether the file changed since the baseline and moves the
// baseline to the current mtime. A second call without an intervening write
// reports false.
func (f *File) Refresh() (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return false, fmt.Errorf("source: stat %s: %w", f.path, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mtime := info.ModTime()
	dirty := mtime.After(f.mtime)
	f.mtime = mtime
	return dirty, nil
}

// Is reports whether path names this file.
func (f *File) Is(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == f.path
}
