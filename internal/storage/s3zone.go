package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client surface S3Zone depends on;
// *s3.Client satisfies it, and tests substitute an in-memory fake.
type S3API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Zone implements the same Zone contract as LocalZone against an S3
// bucket, so the raw/canonical zones and registry integrity checks work
// unmodified against a remote backend. Put still refuses to overwrite an
// existing key: S3 has no atomic rename, so write-once is enforced with a
// head-before-put check instead of stage+rename.
type S3Zone struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Zone constructs an S3Zone using the default AWS credential chain
// (environment, shared config, IMDS) via config.LoadDefaultConfig.
func NewS3Zone(ctx context.Context, bucket, prefix string) (*S3Zone, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return NewS3ZoneWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3ZoneWithClient constructs an S3Zone over an already-configured
// client.
func NewS3ZoneWithClient(client S3API, bucket, prefix string) *S3Zone {
	return &S3Zone{client: client, bucket: bucket, prefix: prefix}
}

func (z *S3Zone) key(k string) string {
	if z.prefix == "" {
		return k
	}
	return z.prefix + "/" + k
}

// Exists reports whether key is present via HeadObject.
func (z *S3Zone) Exists(key string) (bool, error) {
	ctx := context.Background()
	_, err := z.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &z.bucket,
		Key:    awsString(z.key(key)),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("storage: s3 head %s: %w", key, err)
}

// Put uploads data at key via the s3manager Uploader, refusing to
// overwrite an existing key (write-once, matching LocalZone's contract).
func (z *S3Zone) Put(key string, data []byte) error {
	exists, err := z.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return &SnapshotOverwriteError{Key: key}
	}

	ctx := context.Background()
	uploader := manager.NewUploader(z.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &z.bucket,
		Key:    awsString(z.key(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	return nil
}

// Get downloads the object at key.
func (z *S3Zone) Get(key string) ([]byte, error) {
	ctx := context.Background()
	out, err := z.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &z.bucket,
		Key:    awsString(z.key(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 read body %s: %w", key, err)
	}
	return data, nil
}

func awsString(s string) *string { return &s }

var _ Zone = (*S3Zone)(nil)
