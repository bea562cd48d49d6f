package s3api

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-9", 100, 0, 9, true},
		{"bytes=10-", 100, 10, 99, true},
		{"bytes=-5", 100, 95, 99, true},
		{"bytes=-500", 100, 0, 99, true},
		{"bytes=90-200", 100, 90, 99, true},
		{"bytes=100-", 100, 0, 0, false},
		{"bytes=5-1", 100, 0, 0, false},
		{"bytes=0-1,3-4", 100, 0, 0, false},
		{"bytes=-0", 100, 0, 0, false},
		{"bytes=a-b", 100, 0, 0, false},
		{"items=0-1", 100, 0, 0, false},
		{"bytes=0-0", 0, 0, 0, false},
	}

	for _, c := range cases {
		t.Run(c.header, func(t *testing.T) {
			start, end, ok := ParseRange(c.header, c.size)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.Equal(t, c.start, start)
				assert.Equal(t, c.end, end)
			}
		})
	}
}

func mustPut(t *testing.T, e *MemoryEngine, bucket string, keys ...string) {
	for _, k := range keys {
		_, err := e.PutObject(context.Background(), PutObjectInput{
			Bucket: bucket,
			Key:    k,
			Body:   strings.NewReader(k),
		})
		require.NoError(t, err)
	}
}

func objectKeys(out ListObjectsOutput) []string {
	res := make([]string, 0, len(out.Objects))
	for _, o := range out.Objects {
		res = append(res, o.Key)
	}
	return res
}

func TestMemoryEngine_ListObjects(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	require.NoError(t, e.CreateBucket(ctx, "b1"))
	mustPut(t, e, "b1", "a/1", "a/2", "b/1", "c", "d")

	t.Run("all", func(t *testing.T) {
		out, err := e.ListObjects(ctx, ListObjectsInput{Bucket: "b1", MaxKeys: 1000})
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1", "a/2", "b/1", "c", "d"}, objectKeys(out))
		assert.False(t, out.IsTruncated)
	})

	t.Run("delimiter", func(t *testing.T) {
		out, err := e.ListObjects(ctx, ListObjectsInput{Bucket: "b1", Delimiter: "/", MaxKeys: 1000})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, objectKeys(out))
		assert.Equal(t, []string{"a/", "b/"}, out.CommonPrefixes)
	})

	t.Run("prefix", func(t *testing.T) {
		out, err := e.ListObjects(ctx, ListObjectsInput{Bucket: "b1", Prefix: "a/", Delimiter: "/", MaxKeys: 1000})
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1", "a/2"}, objectKeys(out))
		assert.Empty(t, out.CommonPrefixes)
	})

	t.Run("truncated", func(t *testing.T) {
		out, err := e.ListObjects(ctx, ListObjectsInput{Bucket: "b1", Delimiter: "/", MaxKeys: 2})
		require.NoError(t, err)
		assert.Empty(t, objectKeys(out))
		assert.Equal(t, []string{"a/", "b/"}, out.CommonPrefixes)
		assert.True(t, out.IsTruncated)
		assert.Equal(t, "b/", out.NextMarker)

		out, err = e.ListObjects(ctx, ListObjectsInput{Bucket: "b1", Delimiter: "/", Marker: out.NextMarker, MaxKeys: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, objectKeys(out))
		assert.False(t, out.IsTruncated)
	})

	t.Run("no-bucket", func(t *testing.T) {
		_, err := e.ListObjects(ctx, ListObjectsInput{Bucket: "none", MaxKeys: 1})
		var awsErr awsapi.AwsError
		require.ErrorAs(t, err, &awsErr)
		assert.Equal(t, awsapi.ErrorCodeNoSuchBucket, awsErr.Code)
	})
}

func TestMemoryEngine_objects(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	e := NewMemoryEngine()
	e.Now = func() time.Time { return now }

	_, err := e.PutObject(ctx, PutObjectInput{Bucket: "none", Key: "k", Body: strings.NewReader("x")})
	var awsErr awsapi.AwsError
	require.ErrorAs(t, err, &awsErr)
	assert.Equal(t, awsapi.ErrorCodeNoSuchBucket, awsErr.Code)

	require.NoError(t, e.CreateBucket(ctx, "b1"))
	info, err := e.PutObject(ctx, PutObjectInput{
		Bucket:      "b1",
		Key:         "k",
		ContentType: "text/plain",
		Metadata:    map[string]string{"Color": "blue"},
		Body:        strings.NewReader("0123456789"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, `"781e5e245d69b566979b86e28d23f2c7"`, info.ETag)
	assert.Equal(t, now, info.LastModified)
	assert.Equal(t, map[string]string{"color": "blue"}, info.Metadata)

	obj, err := e.GetObject(ctx, "b1", "k", "bytes=2-4")
	require.NoError(t, err)
	b, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "234", string(b))
	assert.Equal(t, int64(3), obj.ContentLength)
	assert.Equal(t, "bytes 2-4/10", obj.ContentRange)

	_, err = e.HeadObject(ctx, "b1", "nope")
	require.ErrorAs(t, err, &awsErr)
	assert.Equal(t, awsapi.ErrorCodeNoSuchKey, awsErr.Code)

	err = e.DeleteBucket(ctx, "b1")
	require.ErrorAs(t, err, &awsErr)
	assert.Equal(t, awsapi.ErrorCodeBucketNotEmpty, awsErr.Code)

	require.NoError(t, e.DeleteObject(ctx, "b1", "k"))
	require.NoError(t, e.DeleteObject(ctx, "b1", "k"))
	require.NoError(t, e.DeleteBucket(ctx, "b1"))
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestMemoryEngine_PutObject_readError(t *testing.T) {
	e := NewMemoryEngine()
	_, err := e.PutObject(context.Background(), PutObjectInput{Bucket: "b1", Key: "k", Body: failingReader{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read body")

	var awsErr awsapi.AwsError
	assert.False(t, errors.As(err, &awsErr))
}
