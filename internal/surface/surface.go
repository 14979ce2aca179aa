// Package surface provides targets that rendered charts are drawn onto.
// A surface receives a complete encoded image and replaces whatever it
// held before, so the last render to finish is the one that stays.
package surface

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Image is an encoded chart image.
type Image struct {
	ContentType string
	Data        []byte
	RenderedAt  time.Time
}

// Memory keeps the latest image in memory.
type Memory struct {
	mu      sync.RWMutex
	latest  Image
	version uint64
}

// NewMemory creates an empty in-memory surface
func NewMemory() *Memory {
	return &Memory{}
}

// Replace stores img as the current content
func (m *Memory) Replace(img Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = img
	m.version++
	return nil
}

// Latest returns the current image, or false if nothing has been drawn yet
func (m *Memory) Latest() (Image, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.latest, m.version > 0
}

// Version returns how many times the surface has been replaced
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.version
}

// File writes each image to a path on disk.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file surface for path. The file is not touched until
// the first Replace.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the output path
func (f *File) Path() string {
	return f.path
}

// Replace writes img to a temporary file next to the target and renames it
// into place, so readers never observe a partially written chart.
func (f *File) Replace(img Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close chart file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set chart permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move chart into place: %w", err)
	}
	return nil
}
