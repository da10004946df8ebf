package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Endpoint  string `env:"MINIO_ENDPOINT,default=minio:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY,default=minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY,default=minioadmin"`
	Bucket    string `env:"MINIO_BUCKET,default=erpmax-backups"`
	UseSSL    bool   `env:"MINIO_USE_SSL,default=false"`
	Region    string `env:"MINIO_REGION"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if strings.TrimSpace(cfg.Endpoint) == "" {
		errors = append(errors, "MINIO_ENDPOINT is required")
	} else if strings.Contains(cfg.Endpoint, "://") {
		errors = append(errors, "MINIO_ENDPOINT must be host:port without a scheme")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		errors = append(errors, "MINIO_ACCESS_KEY is required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		errors = append(errors, "MINIO_SECRET_KEY is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		errors = append(errors, "MINIO_BUCKET is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// Store writes backup artifacts to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg *Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	log.Info().Str("bucket", s.bucket).Msg("bucket created")
	return nil
}

func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *Store) Bucket() string { return s.bucket }

// BackupKey is the object key of a backup manifest.
func BackupKey(tenantID, jobID string) string {
	return fmt.Sprintf("backups/%s/%s.json", tenantID, jobID)
}
