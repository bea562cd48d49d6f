package s3api

import (
	"context"
	"io"
	"time"
)

// Engine 是 S3 操作的实际执行者，如另一个 S3 服务。 s3api 只负责协议的转换。
//
// 调用者的身份可以通过 credential.IdentityFromContext(ctx) 获取。
// 资源不存在等情况应返回带有 S3 错误码的 awsapi.AwsError ，可使用 ErrNoSuchBucket 等方法创建。
type Engine interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	HeadBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, input ListObjectsInput) (ListObjectsOutput, error)

	// PutObject 写入对象， input.Body 需在方法返回前读取完毕。
	PutObject(ctx context.Context, input PutObjectInput) (ObjectInfo, error)

	// GetObject 读取对象，调用者负责关闭返回的 Object.Body 。
	// rangeHeader 为 HTTP Range 头的原始值，为空表示读取整个对象。
	GetObject(ctx context.Context, bucket, key, rangeHeader string) (*Object, error)

	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Bucket 描述一个 bucket 。
type Bucket struct {
	Name         string
	CreationDate time.Time
}

// ObjectInfo 是对象的元数据。
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string // 带引号，如 "d41d8cd98f00b204e9800998ecf8427e" 。
	LastModified time.Time
	ContentType  string
	StorageClass string

	// Metadata 是用户定义的元数据，对应 x-amz-meta-* 头， key 为小写且不含前缀。
	Metadata map[string]string
}

// Object 是 GetObject 读取到的对象。
type Object struct {
	ObjectInfo

	// Body 是对象的内容，或 Range 指定的部分。
	Body io.ReadCloser

	// ContentLength 是 Body 的长度，为 -1 表示未知。
	ContentLength int64

	// ContentRange 在读取部分内容时非空，如 bytes 0-9/100 。
	ContentRange string
}

// ListObjectsInput 是 Engine.ListObjects 的参数。
type ListObjectsInput struct {
	Bucket    string
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

// ListObjectsOutput 是 Engine.ListObjects 的结果。
type ListObjectsOutput struct {
	Objects        []ObjectInfo
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// PutObjectInput 是 Engine.PutObject 的参数。
type PutObjectInput struct {
	Bucket        string
	Key           string
	ContentType   string
	ContentMD5    string
	ContentLength int64 // -1 表示未知。
	Metadata      map[string]string
	Body          io.Reader
}
