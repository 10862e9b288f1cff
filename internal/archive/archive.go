// Package archive writes records removed from the primary database to cold
// storage before they are deleted.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gocloud.dev/blob"

	// Register blob drivers for file:// and mem://
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Store persists archived records.
type Store interface {
	// Put writes v as JSON under key, overwriting any existing object.
	Put(ctx context.Context, key string, v any) error

	// Get reads the object stored under key into v.
	Get(ctx context.Context, key string, v any) error

	Close() error
}

// BlobStore implements Store on a gocloud.dev bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// Open opens the bucket at url, e.g. "file:///var/lib/compliance/archive" or "mem://".
func Open(ctx context.Context, url string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive bucket: %w", err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// Key returns the object key for an archived entity.
func Key(entityType, entityID string) string {
	return fmt.Sprintf("archive/%s/%s.json", entityType, entityID)
}

func (s *BlobStore) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal archive object: %w", err)
	}

	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("failed to write archive object %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string, v any) error {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("failed to open archive object %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read archive object %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
