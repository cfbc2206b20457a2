package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/angelmondragon/guruji-backend/pkg/config"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

// ErrObjectNotFound is returned when the requested object no longer exists.
var ErrObjectNotFound = errors.New("gcs object not found")

// objectOpener streams an object's bytes; swapped out in tests.
type objectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

type Client struct {
	raw           *storage.Client
	open          objectOpener
	defaultBucket string
	logg          *logger.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Downloader is the surface the ingest pipeline depends on.
type Downloader interface {
	Download(ctx context.Context, bucket, object, dest string) (int64, error)
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	switch {
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	raw, err := storage.NewClient(ctx, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	client := &Client{
		raw:           raw,
		defaultBucket: cfg.BucketName,
		logg:          logg,
	}
	client.open = client.openObject

	if err := client.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func (c *Client) openObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := c.raw.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
	}
	return r, err
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// Ping checks the default bucket is reachable. Without a default bucket the
// worker accepts notifications for any bucket, so there is nothing to probe.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.raw.Bucket(c.defaultBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %q attrs: %w", c.defaultBucket, err)
	}
	return nil
}

// Download copies gs://bucket/object into dest, creating parent directories,
// and returns the number of bytes written. A partially written dest is left
// in place for the caller's cleanup.
func (c *Client) Download(ctx context.Context, bucket, object, dest string) (int64, error) {
	if c == nil || c.open == nil {
		return 0, errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" || object == "" {
		return 0, errors.New("bucket and object are required")
	}

	src, err := c.open(ctx, bucket, object)
	if err != nil {
		return 0, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return 0, fmt.Errorf("create scratch dir: %w", err)
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}

	written, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr != nil {
		return written, fmt.Errorf("copy gs://%s/%s: %w", bucket, object, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close scratch file: %w", closeErr)
	}
	return written, nil
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
