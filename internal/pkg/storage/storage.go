package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage defines the minimal interface for archive backends.
type Storage interface {
	// Put stores body under key.
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Config selects and configures a backend.
type Config struct {
	Driver string // "s3", "local" or empty to disable

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	LocalPath string
}

// New builds the configured backend. A nil Storage means archiving is disabled.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "":
		return nil, nil
	case "s3":
		return NewS3Storage(cfg)
	case "local":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// WebhookKey builds the archive key for one gateway delivery.
func WebhookKey(provider string, receivedAt time.Time, ext string) string {
	receivedAt = receivedAt.UTC()
	return fmt.Sprintf("webhooks/%s/%s/%s-%s.%s",
		strings.ToLower(provider),
		receivedAt.Format("2006/01/02"),
		receivedAt.Format("150405"),
		uuid.NewString(),
		strings.TrimPrefix(ext, "."),
	)
}
