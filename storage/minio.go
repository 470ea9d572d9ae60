package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"resonate/config"
	"resonate/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	coverBucket string
)

// InitMinio initializes the MinIO client and ensures the cover-art bucket
// exists. Audio files never go through MinIO; they live on the local
// filesystem served by core/streaming.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.CoverBucket)
	if err != nil {
		return fmt.Errorf("failed to check cover bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.CoverBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("failed to create cover bucket: %w", err)
		}
		logger.Info("created cover bucket", logger.String("bucket", cfg.CoverBucket))
	}

	minioClient = client
	coverBucket = cfg.CoverBucket
	return nil
}

// GetMinioClient returns the global MinIO client, or nil if uninitialized.
func GetMinioClient() *minio.Client {
	return minioClient
}

// UploadCover stores a cover image under key.
func UploadCover(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := minioClient.PutObject(ctx, coverBucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload cover %s: %w", key, err)
	}
	return nil
}

// FetchCover returns the cover object and its content type. The caller must
// close the reader.
func FetchCover(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if minioClient == nil {
		return nil, "", fmt.Errorf("MinIO client not initialized")
	}
	obj, err := minioClient.GetObject(ctx, coverBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get cover %s: %w", key, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("failed to stat cover %s: %w", key, err)
	}
	contentType := stat.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return obj, contentType, nil
}
