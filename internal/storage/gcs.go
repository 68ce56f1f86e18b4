package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements the Storage interface for Google Cloud Storage
type GCSStorage struct {
	client        *storage.Client
	bucket        string
	objectPrefix  string
	uploadTimeout time.Duration
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string) (*GCSStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:        client,
		bucket:        bucketName,
		objectPrefix:  objectPrefix,
		uploadTimeout: 5 * time.Minute,
	}, nil
}

func (s *GCSStorage) objectName(name string) string {
	if s.objectPrefix == "" {
		return name
	}
	return path.Join(s.objectPrefix, name)
}

// Path returns the gs:// URL of the object.
func (s *GCSStorage) Path(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.objectName(name))
}

func (s *GCSStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(name)).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", s.Path(name), err)
	}
}

// Place uploads src and removes the local copy once the upload is committed.
func (s *GCSStorage) Place(ctx context.Context, src, name string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(s.objectName(name)).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	f.Close()
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove %s after upload: %w", src, err)
	}
	return s.Path(name), nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
