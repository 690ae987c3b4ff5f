package persistence

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AtomicFile writes a file through a temporary sibling that replaces the
// destination only on Commit, so readers never observe a partial model.
type AtomicFile struct {
	mu        sync.Mutex
	file      *os.File
	buf       *bufio.Writer
	path      string
	committed bool
}

// CreateAtomic opens a temporary file next to path. The parent directory is
// created if missing.
func CreateAtomic(path string) (*AtomicFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary model file: %w", err)
	}
	return &AtomicFile{
		file: file,
		buf:  bufio.NewWriterSize(file, 1<<20),
		path: path,
	}, nil
}

// Write appends data to the buffered temporary file.
func (a *AtomicFile) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Write(p)
}

// Commit flushes, fsyncs and renames the temporary file onto the destination.
func (a *AtomicFile) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		a.discard()
		return err
	}
	if err := a.file.Sync(); err != nil {
		a.discard()
		return err
	}
	tmp := a.file.Name()
	if err := a.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	a.committed = true
	return nil
}

// Close discards the temporary file unless Commit succeeded.
func (a *AtomicFile) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return nil
	}
	a.discard()
	return nil
}

// Path returns the destination path.
func (a *AtomicFile) Path() string {
	return a.path
}

func (a *AtomicFile) discard() {
	name := a.file.Name()
	_ = a.file.Close()
	_ = os.Remove(name)
	a.committed = true
}
