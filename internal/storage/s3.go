package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the object store connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3ConfigFromEnv reads the object store settings from the environment.
func S3ConfigFromEnv() S3Config {
	useSSL := true
	switch strings.ToLower(os.Getenv("S3_USE_SSL")) {
	case "0", "false", "no", "off":
		useSSL = false
	}
	return S3Config{
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Region:    os.Getenv("S3_REGION"),
		UseSSL:    useSSL,
	}
}

// ParseS3Root splits an s3://bucket/prefix root into bucket and prefix.
func ParseS3Root(root string) (bucket, prefix string, err error) {
	if !IsS3Root(root) {
		return "", "", fmt.Errorf("not an s3 root: %s", root)
	}
	trimmed := strings.TrimPrefix(root, "s3://")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", fmt.Errorf("s3 root %s has no bucket", root)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}

// S3 serves a bucket prefix on an S3-compatible object store. Directory
// semantics are emulated with delimiter listings.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
	root   string
	retry  RetryConfig
}

// NewS3 creates a backend for an s3://bucket/prefix root.
func NewS3(root string, cfg S3Config, retry RetryConfig) (*S3, error) {
	bucket, prefix, err := ParseS3Root(root)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 root %s requires S3_ENDPOINT", root)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3{
		client: client,
		bucket: bucket,
		prefix: prefix,
		root:   root,
		retry:  retry,
	}, nil
}

// Root returns the original s3:// root string.
func (s *S3) Root() string {
	return s.root
}

func (s *S3) key(rel string) string {
	if rel == "" || rel == "." {
		return s.prefix
	}
	return path.Join(s.prefix, rel)
}

// isRetryableS3 accepts throttling, server errors and network timeouts.
func isRetryableS3(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 429 || resp.StatusCode >= 500 {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}

// List returns the entries directly under a directory prefix.
func (s *S3) List(ctx context.Context, dir string) ([]Entry, error) {
	listPrefix := s.key(dir)
	if listPrefix != "" {
		listPrefix += "/"
	}

	var entries []Entry
	err := withRetry(ctx, "s3", "list", dir, s.retry, isRetryableS3, func() error {
		entries = entries[:0]
		objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    listPrefix,
			Recursive: false,
		})
		for obj := range objects {
			if obj.Err != nil {
				return obj.Err
			}
			name := strings.TrimPrefix(obj.Key, listPrefix)
			if name == "" {
				// The directory marker object itself
				continue
			}
			if strings.HasSuffix(name, "/") {
				entries = append(entries, Entry{
					Name:  strings.TrimSuffix(name, "/"),
					IsDir: true,
				})
				continue
			}
			entries = append(entries, Entry{
				Name:    name,
				Size:    obj.Size,
				ModTime: obj.LastModified,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Read returns the full contents of an object.
func (s *S3) Read(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, "s3", "read", p, s.retry, isRetryableS3, func() error {
		obj, getErr := s.client.GetObject(ctx, s.bucket, s.key(p), minio.GetObjectOptions{})
		if getErr != nil {
			return getErr
		}
		defer obj.Close()
		var readErr error
		data, readErr = io.ReadAll(obj)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Stat returns the entry for a single object.
func (s *S3) Stat(ctx context.Context, p string) (Entry, error) {
	var info minio.ObjectInfo
	err := withRetry(ctx, "s3", "stat", p, s.retry, isRetryableS3, func() error {
		var statErr error
		info, statErr = s.client.StatObject(ctx, s.bucket, s.key(p), minio.StatObjectOptions{})
		return statErr
	})
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:    path.Base(p),
		Size:    info.Size,
		ModTime: info.LastModified,
	}, nil
}

// Exists reports whether an object exists.
func (s *S3) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}
