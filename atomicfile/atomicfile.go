// Package atomicfile writes files atomically: content goes to a temporary
// file in the target directory and moves into place on Close, so readers
// never observe a partial file.
package atomicfile

import (
	"os"
	"path/filepath"
)

// File is a write-only file that becomes visible under its final path on
// Close.
type File struct {
	*os.File
	path string
}

// New creates a temporary file next to path.
func New(path string) (*File, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".wip-*")
	if err != nil {
		return nil, err
	}
	return &File{File: f, path: path}, nil
}

// Close syncs, closes and renames the file into place.
func (f *File) Close() error {
	if err := f.File.Sync(); err != nil {
		f.Abort()
		return err
	}
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return err
	}
	return os.Rename(f.File.Name(), f.path)
}

// Abort discards the temporary file.
func (f *File) Abort() error {
	f.File.Close()
	return os.Remove(f.File.Name())
}
