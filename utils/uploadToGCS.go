package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// UploadFileToGCS streams a reader into GCS under objectName.
func UploadFileToGCS(ctx context.Context, objectName string, file io.Reader) error {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(wc, file); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write object %q: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %q: %w", objectName, err)
	}
	return nil
}

// objectReader closes the underlying client together with the object reader.
type objectReader struct {
	io.ReadCloser
	client io.Closer
}

func (r *objectReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadFileFromGCS returns a reader for objectName. Closing it also closes
// the client opened for the read.
func ReadFileFromGCS(ctx context.Context, objectName string) (io.ReadCloser, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open object %q: %w", objectName, err)
	}
	return &objectReader{ReadCloser: rc, client: client}, nil
}

// BuildObjectAccessURL builds the public-style URL for a stored object.
func BuildObjectAccessURL(objectKey string) string {
	bucketName := os.Getenv("GCS_BUCKET")
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, objectKey)
}
