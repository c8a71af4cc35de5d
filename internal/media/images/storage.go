// Package images provides the on-disk image stores and raster helpers for photos and thumbnails.
package images

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Ext is the file extension of every image kept in a store.
const Ext = ".jpg"

// Storage is a flat directory of JPEG files keyed by identity: {root}/{id}.jpg.
// Thread-safe for concurrent operations within one process.
type Storage struct {
	root string
	mu   sync.RWMutex
}

// NewStorage creates a store rooted at dir, creating the directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Storage{root: dir}, nil
}

// NewStorageWithSubdir creates a store rooted at {basePath}/{subdir}.
// Example: NewStorageWithSubdir("/data", "thumbnails") -> /data/thumbnails/.
func NewStorageWithSubdir(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}
	return NewStorage(filepath.Join(basePath, subdir))
}

// Root returns the store's directory.
func (s *Storage) Root() string {
	return s.root
}

// Path returns the full filesystem path for an identity's image.
func (s *Storage) Path(id string) string {
	return filepath.Join(s.root, id+Ext)
}

// Exists reports whether an image is stored for id.
func (s *Storage) Exists(id string) bool {
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Get reads the stored bytes for id. A missing file wraps os.ErrNotExist.
func (s *Storage) Get(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found for %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Save writes data for id, replacing any existing file. The write goes to a
// hidden temp file in the same directory which is then renamed into place,
// so readers never observe a partial image.
func (s *Storage) Save(id string, data []byte) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.root, ".tmp-*"+Ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close image file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(id)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}

// Delete removes the image for id. Deleting a missing image is not an error.
func (s *Storage) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(id)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Hash computes the SHA256 of the stored image, hex-encoded, for ETag validation.
func (s *Storage) Hash(id string) (string, error) {
	data, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// List returns the identities of every stored image, sorted.
// Hidden files, directories and files without the store extension are skipped.
func (s *Storage) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id, ok := strings.CutSuffix(name, Ext)
		if !ok || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Decode reads and decodes the stored image for id.
func (s *Storage) Decode(id string) (image.Image, error) {
	data, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return img, nil
}

// Encode stores img for id as a JPEG of the given quality.
func (s *Storage) Encode(id string, img image.Image, quality int) error {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, quality); err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return s.Save(id, buf.Bytes())
}
