package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
)

// FirebaseFileStore keeps payment proofs in the Firebase (Cloud Storage) bucket
type FirebaseFileStore struct {
	bucket *gcs.BucketHandle
	name   string
}

// NewFirebaseFileStore opens the app's default bucket
func NewFirebaseFileStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseFileStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, err
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, err
	}
	return &FirebaseFileStore{bucket: bucket, name: bucketName}, nil
}

func (s *FirebaseFileStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.name, key), nil
}

func (s *FirebaseFileStore) Delete(ctx context.Context, key string) error {
	return s.bucket.Object(key).Delete(ctx)
}

// LocalFileStore writes uploads below a directory that the server exposes at /uploads
type LocalFileStore struct {
	dir     string
	baseURL string
}

func NewLocalFileStore(dir, appURL string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalFileStore{dir: dir, baseURL: strings.TrimRight(appURL, "/") + "/uploads"}, nil
}

func (s *LocalFileStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalFileStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + filepath.ToSlash(filepath.Clean("/"+key)), nil
}

func (s *LocalFileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
