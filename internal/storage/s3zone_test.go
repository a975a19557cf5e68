package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3API double keyed by object key.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errNotImplemented
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errNotImplemented
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errNotImplemented
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errNotImplemented
}

var errNotImplemented = errors.New("fakeS3: not implemented")

var _ S3API = (*fakeS3)(nil)

func TestS3ZonePutGetRoundtrip(t *testing.T) {
	z := NewS3ZoneWithClient(newFakeS3(), "bucket", "quantlab")

	require.NoError(t, z.Put("dataset_id=ds/dataset_version=v1/part-0.json", []byte(`{"rows":1}`)))

	got, err := z.Get("dataset_id=ds/dataset_version=v1/part-0.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"rows":1}`), got)

	exists, err := z.Exists("dataset_id=ds/dataset_version=v1/part-0.json")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = z.Exists("dataset_id=ds/dataset_version=v2/part-0.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3ZoneRefusesOverwrite(t *testing.T) {
	z := NewS3ZoneWithClient(newFakeS3(), "bucket", "")

	require.NoError(t, z.Put("k", []byte("first")))
	err := z.Put("k", []byte("second"))
	var overwrite *SnapshotOverwriteError
	require.ErrorAs(t, err, &overwrite)

	got, err := z.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestS3ZonePrefixesKeys(t *testing.T) {
	fake := newFakeS3()
	z := NewS3ZoneWithClient(fake, "bucket", "quantlab/dev")

	require.NoError(t, z.Put("k", []byte("v")))
	_, prefixed := fake.objects["quantlab/dev/k"]
	assert.True(t, prefixed)
}

func TestS3ZoneBacksCanonicalZonePublish(t *testing.T) {
	z := NewS3ZoneWithClient(newFakeS3(), "bucket", "quantlab")
	canonical := NewCanonicalZone(z)

	meta, err := canonical.Publish("ds", "v1", "1", "run-1", sampleBarSet(t), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ContentHash)

	got, err := canonical.ReadMetadata("ds", "v1")
	require.NoError(t, err)
	assert.Equal(t, meta.ContentHash, got.ContentHash)

	recomputed, err := canonical.RecomputeContentHash("ds", "v1")
	require.NoError(t, err)
	assert.Equal(t, meta.ContentHash, recomputed)
}
