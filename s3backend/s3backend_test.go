package s3backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/s3api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream 是一个简化的 S3 上游，只支持测试用到的请求。
type fakeUpstream struct {
	mu       sync.Mutex
	requests []string // METHOD path
	lastBody string
	lastMeta string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	writeError := func(status int, code, message string) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+message+`</Message></Error>`)
		}
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Owner><ID>owner</ID><DisplayName>owner</DisplayName></Owner>
<Buckets>
<Bucket><Name>t-b1</Name><CreationDate>2024-01-02T03:04:05.000Z</CreationDate></Bucket>
<Bucket><Name>other</Name><CreationDate>2024-01-02T03:04:05.000Z</CreationDate></Bucket>
<Bucket><Name>t-b2</Name><CreationDate>2024-02-02T03:04:05.000Z</CreationDate></Bucket>
</Buckets></ListAllMyBucketsResult>`)

	case r.Method == http.MethodPut && r.URL.Path == "/t-taken":
		writeError(http.StatusConflict, "BucketAlreadyExists", "taken")

	case r.Method == http.MethodPut && r.URL.Path == "/t-b1":
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodHead && r.URL.Path == "/t-missing":
		writeError(http.StatusNotFound, "", "")

	case r.Method == http.MethodHead && r.URL.Path == "/t-b1":
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete && r.URL.Path == "/t-full":
		writeError(http.StatusConflict, "BucketNotEmpty", "not empty")

	case r.Method == http.MethodGet && r.URL.Path == "/t-b1" && r.URL.Query().Has("prefix"):
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>t-b1</Name><Prefix>d</Prefix><Marker></Marker><MaxKeys>2</MaxKeys><IsTruncated>true</IsTruncated>
<Contents><Key>d1.txt</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"abc"</ETag><Size>3</Size><StorageClass>STANDARD</StorageClass></Contents>
<CommonPrefixes><Prefix>dir/</Prefix></CommonPrefixes>
</ListBucketResult>`)

	case r.Method == http.MethodGet && r.URL.Path == "/t-missing":
		writeError(http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")

	case r.Method == http.MethodPut && r.URL.Path == "/t-b1/a.txt":
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastBody = string(data)
		f.lastMeta = r.Header.Get("X-Amz-Meta-Color")
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag-a"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && r.URL.Path == "/t-b1/a.txt":
		w.Header().Set("ETag", `"etag-a"`)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 03:04:05 GMT")
		w.Header().Set("X-Amz-Meta-Color", "red")
		if r.Header.Get("Range") == "bytes=0-1" {
			w.Header().Set("Content-Range", "bytes 0-1/5")
			w.Header().Set("Content-Length", "2")
			w.WriteHeader(http.StatusPartialContent)
			io.WriteString(w, "he")
			return
		}
		w.Header().Set("Content-Length", "5")
		io.WriteString(w, "hello")

	case r.Method == http.MethodHead && r.URL.Path == "/t-b1/a.txt":
		w.Header().Set("ETag", `"etag-a"`)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "5")
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 03:04:05 GMT")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodHead && r.URL.Path == "/t-b1/missing":
		writeError(http.StatusNotFound, "", "")

	case r.Method == http.MethodGet && r.URL.Path == "/t-b1/missing":
		writeError(http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")

	case r.Method == http.MethodGet && r.URL.Path == "/t-b1/denied":
		writeError(http.StatusForbidden, "AccessDenied", "Access Denied")

	case r.Method == http.MethodDelete && r.URL.Path == "/t-b1/a.txt":
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(http.StatusBadRequest, "InvalidRequest", "unexpected "+r.Method+" "+r.URL.Path)
	}
}

func newTestEngine(t *testing.T, region string) (*Engine, *fakeUpstream) {
	upstream := &fakeUpstream{}
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	e := New(Config{
		Endpoint:        server.URL,
		Region:          region,
		AccessKeyID:     "AK",
		SecretAccessKey: "SK",
		BucketPrefix:    "t-",
	}, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return e, upstream
}

func requireAwsError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var awsErr awsapi.AwsError
	require.ErrorAs(t, err, &awsErr)
	assert.Equal(t, status, awsErr.HttpStatus())
	assert.Equal(t, code, awsErr.ErrorCode())
}

func TestNew_panics(t *testing.T) {
	assert.Panics(t, func() { New(Config{}) })
}

func TestEngine_buckets(t *testing.T) {
	e, upstream := newTestEngine(t, "")
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		buckets, err := e.ListBuckets(ctx)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, "b1", buckets[0].Name)
		assert.Equal(t, 2024, buckets[0].CreationDate.Year())
		assert.Equal(t, "b2", buckets[1].Name)
	})

	t.Run("create", func(t *testing.T) {
		require.NoError(t, e.CreateBucket(ctx, "b1"))
		requireAwsError(t, e.CreateBucket(ctx, "taken"), http.StatusConflict, awsapi.ErrorCodeBucketAlreadyExists)
	})

	t.Run("head", func(t *testing.T) {
		require.NoError(t, e.HeadBucket(ctx, "b1"))
		requireAwsError(t, e.HeadBucket(ctx, "missing"), http.StatusNotFound, awsapi.ErrorCodeNoSuchBucket)
	})

	t.Run("delete", func(t *testing.T) {
		requireAwsError(t, e.DeleteBucket(ctx, "full"), http.StatusConflict, awsapi.ErrorCodeBucketNotEmpty)
	})

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	assert.Contains(t, upstream.requests, "PUT /t-b1")
	assert.Contains(t, upstream.requests, "HEAD /t-missing")
}

func TestEngine_ListObjects(t *testing.T) {
	e, _ := newTestEngine(t, "")
	ctx := context.Background()

	out, err := e.ListObjects(ctx, s3api.ListObjectsInput{Bucket: "b1", Prefix: "d", MaxKeys: 2})
	require.NoError(t, err)
	require.Len(t, out.Objects, 1)
	assert.Equal(t, "d1.txt", out.Objects[0].Key)
	assert.Equal(t, int64(3), out.Objects[0].Size)
	assert.Equal(t, `"abc"`, out.Objects[0].ETag)
	assert.Equal(t, "STANDARD", out.Objects[0].StorageClass)
	assert.Equal(t, []string{"dir/"}, out.CommonPrefixes)
	assert.True(t, out.IsTruncated)
	assert.Equal(t, "d1.txt", out.NextMarker)

	_, err = e.ListObjects(ctx, s3api.ListObjectsInput{Bucket: "missing"})
	requireAwsError(t, err, http.StatusNotFound, awsapi.ErrorCodeNoSuchBucket)
}

func TestEngine_objects(t *testing.T) {
	e, upstream := newTestEngine(t, "")
	ctx := context.Background()

	t.Run("put", func(t *testing.T) {
		info, err := e.PutObject(ctx, s3api.PutObjectInput{
			Bucket:        "b1",
			Key:           "a.txt",
			ContentType:   "text/plain",
			ContentLength: 5,
			Metadata:      map[string]string{"color": "red"},
			Body:          strings.NewReader("hello"),
		})
		require.NoError(t, err)
		assert.Equal(t, `"etag-a"`, info.ETag)
		assert.Equal(t, int64(5), info.Size)

		upstream.mu.Lock()
		assert.Equal(t, "hello", upstream.lastBody)
		assert.Equal(t, "red", upstream.lastMeta)
		upstream.mu.Unlock()
	})

	t.Run("put-length", func(t *testing.T) {
		upstream.mu.Lock()
		before := len(upstream.requests)
		upstream.mu.Unlock()

		_, err := e.PutObject(ctx, s3api.PutObjectInput{
			Bucket: "b1", Key: "chunked", ContentLength: -1, Body: strings.NewReader("hello"),
		})
		requireAwsError(t, err, http.StatusLengthRequired, awsapi.ErrorCodeMissingContentLength)

		_, err = e.PutObject(ctx, s3api.PutObjectInput{
			Bucket: "b1", Key: "huge", ContentLength: s3api.MaxPutObjectSize + 1, Body: strings.NewReader("x"),
		})
		requireAwsError(t, err, http.StatusBadRequest, awsapi.ErrorCodeEntityTooLarge)

		upstream.mu.Lock()
		assert.Equal(t, before, len(upstream.requests), "rejected before reaching upstream")
		upstream.mu.Unlock()
	})

	t.Run("get", func(t *testing.T) {
		obj, err := e.GetObject(ctx, "b1", "a.txt", "")
		require.NoError(t, err)
		defer obj.Body.Close()

		data, err := io.ReadAll(obj.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, int64(5), obj.ContentLength)
		assert.Equal(t, int64(5), obj.Size)
		assert.Equal(t, `"etag-a"`, obj.ETag)
		assert.Equal(t, "text/plain", obj.ContentType)
		assert.Equal(t, "red", obj.Metadata["color"])
		assert.Equal(t, 2024, obj.LastModified.Year())
	})

	t.Run("get-range", func(t *testing.T) {
		obj, err := e.GetObject(ctx, "b1", "a.txt", "bytes=0-1")
		require.NoError(t, err)
		defer obj.Body.Close()

		data, err := io.ReadAll(obj.Body)
		require.NoError(t, err)
		assert.Equal(t, "he", string(data))
		assert.Equal(t, "bytes 0-1/5", obj.ContentRange)
		assert.Equal(t, int64(2), obj.ContentLength)
		assert.Equal(t, int64(5), obj.Size)
	})

	t.Run("get-missing", func(t *testing.T) {
		_, err := e.GetObject(ctx, "b1", "missing", "")
		requireAwsError(t, err, http.StatusNotFound, awsapi.ErrorCodeNoSuchKey)
	})

	t.Run("get-denied", func(t *testing.T) {
		_, err := e.GetObject(ctx, "b1", "denied", "")
		requireAwsError(t, err, http.StatusForbidden, awsapi.ErrorCodeAccessDenied)
	})

	t.Run("head", func(t *testing.T) {
		info, err := e.HeadObject(ctx, "b1", "a.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
		assert.Equal(t, `"etag-a"`, info.ETag)

		_, err = e.HeadObject(ctx, "b1", "missing")
		requireAwsError(t, err, http.StatusNotFound, awsapi.ErrorCodeNoSuchKey)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, e.DeleteObject(ctx, "b1", "a.txt"))
	})
}

func TestEngine_unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	e := New(Config{Endpoint: server.URL}, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
	})

	err := e.HeadBucket(context.Background(), "b1")
	require.Error(t, err)

	var awsErr awsapi.AwsError
	assert.False(t, errors.As(err, &awsErr))
	assert.Contains(t, err.Error(), "s3backend")
}

func TestObjectSize(t *testing.T) {
	assert.Equal(t, int64(13), objectSize("bytes 0-4/13", 5))
	assert.Equal(t, int64(5), objectSize("", 5))
	assert.Equal(t, int64(5), objectSize("bytes 0-4/*", 5))
}
