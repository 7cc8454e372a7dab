// Package storage uploads chat images to Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// Uploader stores an object and returns a download URL for it.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS uses application default credentials unless credentialsFile is set.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is not set")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Upload writes the object with a Firebase download token so clients can fetch it
// through the Firebase Storage endpoint.
func (g *GCS) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	token := uuid.NewString()
	w := g.client.Bucket(g.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", objectPath, err)
	}
	return DownloadURL(g.bucket, objectPath, token), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}

// ChatImagePath names a new object for uid. ext includes the leading dot.
func ChatImagePath(uid, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("chat-images/%s/%s%s", url.PathEscape(uid), uuid.NewString(), ext)
}
