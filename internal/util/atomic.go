// Package util provides file helpers shared by psb commands.
package util

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// AtomicWriteJSON writes indented JSON to a file atomically.
func AtomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, append(data, '\n'), 0644)
}

// AtomicWriteFile writes data to a temporary file next to path and renames
// it over path. Readers see either the old or the new content, never a
// partial file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// AtomicWrite buffers what write produces and stores it with
// AtomicWriteFile. Nothing is written when write fails.
func AtomicWrite(path string, perm os.FileMode, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	return AtomicWriteFile(path, buf.Bytes(), perm)
}
