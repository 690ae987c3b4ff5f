package mmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMapsFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	want := []byte("nodevec mapped contents")
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Len() != len(want) || string(f.Bytes()) != string(want) {
		t.Errorf("mapped %q, want %q", f.Bytes(), want)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}
