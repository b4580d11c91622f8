package engine

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig locates the object store that BACKUP and RESTORE statements
// address.
type MinIOConfig struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Secure    bool   `koanf:"secure"`
	// Create makes the bucket when it does not exist.
	Create bool `koanf:"create"`
}

// Enabled reports whether an endpoint is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// URL returns the base address of the bucket as seen by the server.
func (c MinIOConfig) URL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, c.Endpoint, c.Bucket)
}

// ProbeBucket reports whether the configured bucket is reachable, creating
// it when asked to.
func ProbeBucket(ctx context.Context, cfg MinIOConfig) (bool, error) {
	if !cfg.Enabled() {
		return false, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if exists || !cfg.Create {
		return exists, nil
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return false, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
	}
	return true, nil
}
