// Package mmap maps model files read-only into memory.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

// ErrEmptyFile is returned when mapping a zero-length file.
var ErrEmptyFile = errors.New("mmap: file is empty")

// File is a read-only memory-mapped file.
type File struct {
	file *os.File
	data []byte
}

// Open maps the whole file at path for reading.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	data, err := mmapFile(file.Fd(), int(info.Size()))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return &File{file: file, data: data}, nil
}

// Bytes returns the mapped region. It is only valid until Close.
func (f *File) Bytes() []byte {
	return f.data
}

// Len returns the size of the mapping in bytes.
func (f *File) Len() int {
	return len(f.data)
}

// Close unmaps the region and closes the file.
func (f *File) Close() error {
	var firstErr error
	if f.data != nil {
		if err := munmapFile(f.data); err != nil {
			firstErr = err
		}
		f.data = nil
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
