// Package blob stores opaque documents such as backup snapshots on the local
// filesystem or an S3 compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/noah-isme/dept-portal-api/pkg/config"
)

var (
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned when Put targets an existing key.
	ErrExists = errors.New("blob already exists")
	// ErrInvalidKey is returned for empty or escaping keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"sizeBytes"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url,omitempty"`
}

// Store is the write-once object store used for snapshots.
type Store interface {
	Driver() string
	Put(ctx context.Context, key string, body []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	// URL returns a time limited download link for key.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Open builds the store selected by cfg.Driver. linkBase and signer are used
// by the filesystem driver to mint download links served by the API.
func Open(ctx context.Context, cfg config.BlobConfig, signer *LinkSigner, linkBase string) (Store, error) {
	switch cfg.Driver {
	case "", config.BlobFilesystem:
		return NewFilesystem(cfg.Dir, signer, linkBase)
	case config.BlobS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			SessionToken:    cfg.S3SessionToken,
			Timeout:         cfg.S3RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	return key, nil
}
