package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
)

// NewClient creates a Cloud Storage client. Application Default Credentials are
// used unless credentialsJSON is set.
func NewClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// BlobStorage keeps disbursement documents in a single bucket.
type BlobStorage struct {
	client *storage.Client
	bucket string
}

// NewBlobStorage creates a new BlobStorage.
func NewBlobStorage(client *storage.Client, bucket string) *BlobStorage {
	return &BlobStorage{client: client, bucket: bucket}
}

var _ portssvc.BlobStorage = (*BlobStorage)(nil)

func (b *BlobStorage) Upload(ctx context.Context, data []byte, path, contentType string) error {
	w := b.client.Bucket(b.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", b.bucket, path, err)
	}
	return nil
}

func (b *BlobStorage) GetDocument(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, apperrors.NewNotFoundError("document %s", key)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.bucket, key, err)
	}
	return data, nil
}
