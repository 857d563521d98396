package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobRef is the location reference a save returns.
type BlobRef struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Bucket      string
	Name        string
	Path        string
	ContentType string
	Updated     time.Time
}

// Storage defines the blob store boundary. Objects are keyed by the
// user-chosen filename; saving the same name silently replaces the prior
// content, so collisions are possible and not resolved here.
type Storage interface {
	// Save writes an object and returns its location.
	Save(ctx context.Context, name string, data []byte, contentType string) (BlobRef, error)

	// Get retrieves an object and its content type.
	Get(ctx context.Context, name string) ([]byte, string, error)

	// List returns the stored objects. The extraction trigger uses it to
	// discover uploads it has not recorded yet.
	List(ctx context.Context) ([]BlobInfo, error)
}

// LocalStorage implements Storage on the local filesystem. The directory
// base name doubles as the bucket name in blob references.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a LocalStorage rooted at basePath, creating the
// directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes an object to disk.
func (l *LocalStorage) Save(ctx context.Context, name string, data []byte, contentType string) (BlobRef, error) {
	path := filepath.Join(l.basePath, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return BlobRef{}, fmt.Errorf("writing file: %w", err)
	}
	return BlobRef{
		Bucket: filepath.Base(l.basePath),
		Name:   filepath.Base(name),
		Path:   path,
	}, nil
}

// Get reads an object from disk. The content type is recovered from the
// file extension.
func (l *LocalStorage) Get(ctx context.Context, name string) ([]byte, string, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, "", fmt.Errorf("reading file: %w", err)
	}
	return data, contentTypeForName(name), nil
}

// List returns the objects in the storage directory.
func (l *LocalStorage) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading storage directory: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("reading file info: %w", err)
		}
		blobs = append(blobs, BlobInfo{
			Bucket:      filepath.Base(l.basePath),
			Name:        entry.Name(),
			Path:        filepath.Join(l.basePath, entry.Name()),
			ContentType: contentTypeForName(entry.Name()),
			Updated:     info.ModTime(),
		})
	}
	return blobs, nil
}

// contentTypeForName maps a filename extension to a MIME type, covering
// the formats phones actually produce.
func contentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
