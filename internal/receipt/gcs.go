package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStorage implements Storage on a Google Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSStorage creates a GCSStorage for the given bucket using
// Application Default Credentials.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket}, nil
}

// Save uploads an object, replacing any prior content under the same name.
func (g *GCSStorage) Save(ctx context.Context, name string, data []byte, contentType string) (BlobRef, error) {
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return BlobRef{}, fmt.Errorf("writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return BlobRef{}, fmt.Errorf("finalizing upload: %w", err)
	}

	return BlobRef{
		Bucket: g.bucket,
		Name:   name,
		Path:   fmt.Sprintf("gs://%s/%s", g.bucket, name),
	}, nil
}

// Get downloads an object and its content type.
func (g *GCSStorage) Get(ctx context.Context, name string) ([]byte, string, error) {
	obj := g.client.Bucket(g.bucket).Object(name)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading object attrs: %w", err)
	}

	rc, err := obj.NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("opening object: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("reading object: %w", err)
	}
	return data, attrs.ContentType, nil
}

// List returns the objects in the bucket.
func (g *GCSStorage) List(ctx context.Context) ([]BlobInfo, error) {
	blobs := make([]BlobInfo, 0)
	it := g.client.Bucket(g.bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		blobs = append(blobs, BlobInfo{
			Bucket:      g.bucket,
			Name:        attrs.Name,
			Path:        fmt.Sprintf("gs://%s/%s", g.bucket, attrs.Name),
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
		})
	}
	return blobs, nil
}

// Close releases the underlying client.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
