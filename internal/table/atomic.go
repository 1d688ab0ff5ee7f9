// Package table reads and writes the files stages hand to each other.
package table

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes path through fn. The content goes to a temporary file
// in the same directory which is renamed over path only when fn and the
// flush succeed, so readers never observe a partial file.
func WriteAtomic(path string, fn func(io.Writer) error) error {
	return WriteAtomicAll(Output{Path: path, Write: fn})
}

// Output is one file of a stage.
type Output struct {
	Path  string
	Write func(io.Writer) error
}

// WriteAtomicAll stages every output in a temporary file and renames them
// into place only after all of them were written. If any write fails no
// existing file is touched.
func WriteAtomicAll(outputs ...Output) (err error) {
	staged := make([]string, 0, len(outputs))
	defer func() {
		if err != nil {
			for _, tmp := range staged {
				os.Remove(tmp)
			}
		}
	}()

	for _, o := range outputs {
		tmp, err := stage(o.Path, o.Write)
		if err != nil {
			return err
		}
		staged = append(staged, tmp)
	}
	for i, o := range outputs {
		if err := os.Rename(staged[i], o.Path); err != nil {
			return fmt.Errorf("renaming into %s: %w", o.Path, err)
		}
	}
	return nil
}

// stage writes a complete temporary sibling of path and returns its name.
func stage(path string, fn func(io.Writer) error) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := fn(tmp); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("setting mode on %s: %w", path, err)
	}
	return tmp.Name(), nil
}
