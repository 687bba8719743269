package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/inference-sim/seedsweep/sweep"
)

// ObjectStoreConfig locates results synced to an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string // host[:port], no scheme
	Bucket    string
	Prefix    string // key prefix standing in for the results root
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// ObjectStore reports completion by the presence of
// <prefix>/[<scenario>/]<config>/Seed-<seed>/info.csv in a bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStore connects to the bucket, which must already exist.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("object store: bucket is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("object store: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("object store: bucket %s does not exist", cfg.Bucket)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Key returns the object key of item's artifact.
func (o *ObjectStore) Key(item sweep.WorkItem) string {
	return filepath.ToSlash(item.ArtifactPath(o.prefix))
}

// Exists implements sweep.CompletionProbe.
func (o *ObjectStore) Exists(ctx context.Context, item sweep.WorkItem) (bool, error) {
	_, err := o.client.StatObject(ctx, o.bucket, o.Key(item), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", o.bucket, o.Key(item), err)
}
