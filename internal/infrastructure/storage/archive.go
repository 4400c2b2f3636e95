package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Archiver stores generated artifacts (calendar files) for later retrieval
type Archiver interface {
	PutCalendar(ctx context.Context, objectName, ics string) error
}

// MinIOArchiver implements Archiver on a MinIO/S3 bucket
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchiver creates the client and ensures the bucket exists
func NewMinIOArchiver(cfg *config.StorageConfig) (*MinIOArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	a := &MinIOArchiver{client: client, bucket: cfg.BucketName}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, a.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	log.Println("✅ Artifact archive ready")
	return a, nil
}

// PutCalendar uploads an iCalendar document under the given object name
func (a *MinIOArchiver) PutCalendar(ctx context.Context, objectName, ics string) error {
	reader := bytes.NewReader([]byte(ics))
	_, err := a.client.PutObject(ctx, a.bucket, objectName, reader, int64(len(ics)), minio.PutObjectOptions{
		ContentType: "text/calendar",
	})
	if err != nil {
		return apperrors.ErrArchiveFailed(objectName, err)
	}
	return nil
}

// NoopArchiver discards artifacts. Used when the archive is disabled.
type NoopArchiver struct{}

func (NoopArchiver) PutCalendar(ctx context.Context, objectName, ics string) error {
	return nil
}
