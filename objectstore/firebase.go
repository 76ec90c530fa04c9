package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
)

// Firebase загружает объекты в бакет Firebase Storage и выдает
// ссылки с токеном скачивания, как клиентский SDK.
type Firebase struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewFirebase(ctx context.Context, app *firebase.App, bucketName string) (*Firebase, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase storage: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", bucketName, err)
	}
	return &Firebase{bucket: bucket, bucketName: bucketName}, nil
}

// DownloadURL - публичная ссылка на объект с токеном
func DownloadURL(bucketName, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucketName, url.PathEscape(objectPath), token)
}

func (f *Firebase) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	token := uuid.NewString()
	w := f.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload %s: %w", objectPath, err)
	}
	return DownloadURL(f.bucketName, objectPath, token), nil
}
