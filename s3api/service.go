package s3api

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmstar/go-awsapi/credential"
)

// 回执中的时间格式。
const timeFormat = "2006-01-02T15:04:05.000Z"

// Service 将 S3 的操作映射到 Engine 。每个公开方法即是一个操作，名称与 S3 的操作一致，通过 Mount 注册。
type Service struct {
	Engine Engine
}

// Response 是没有 XML body 的回执，用于需要设置 HTTP 头或返回对象内容的操作。
type Response struct {
	// Status 为 0 时使用 200 。
	Status int

	// Header 会被复制到 HTTP 回执上。
	Header http.Header

	// Body 可以为 nil ，输出完毕后被关闭。
	Body io.ReadCloser
}

// Owner 是资源的所有者，使用调用者的 Access Key 作为 ID 。
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

func ownerOf(id credential.Identity) Owner {
	name := id.Description
	if name == "" {
		name = id.AccessKey
	}
	return Owner{ID: id.AccessKey, DisplayName: name}
}

// BucketRequest 是 bucket 级别操作的参数。
type BucketRequest struct {
	Bucket string
}

// ObjectRequest 是对象级别操作的参数。
type ObjectRequest struct {
	Bucket string
	Key    string
}

// BucketEntry 是 ListAllMyBucketsResult 中的一个 bucket 。
type BucketEntry struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

// ListAllMyBucketsResult 是 ListAllMyBuckets 的回执。
type ListAllMyBucketsResult struct {
	XMLName xml.Name      `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListAllMyBucketsResult"`
	Owner   Owner         `xml:"Owner"`
	Buckets []BucketEntry `xml:"Buckets>Bucket"`
}

// ListAllMyBuckets 对应 GET / ，列出全部 bucket 。
func (s Service) ListAllMyBuckets(ctx context.Context, id credential.Identity) (*ListAllMyBucketsResult, error) {
	buckets, err := s.Engine.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	res := &ListAllMyBucketsResult{
		Owner:   ownerOf(id),
		Buckets: make([]BucketEntry, 0, len(buckets)),
	}
	for _, b := range buckets {
		res.Buckets = append(res.Buckets, BucketEntry{
			Name:         b.Name,
			CreationDate: formatTime(b.CreationDate),
		})
	}
	return res, nil
}

// CreateBucket 对应 PUT /{bucket} 。请求 body 中的 CreateBucketConfiguration 被忽略。
func (s Service) CreateBucket(ctx context.Context, req BucketRequest) (*Response, error) {
	if !ValidBucketName(req.Bucket) {
		return nil, ErrInvalidBucketName()
	}

	if err := s.Engine.CreateBucket(ctx, req.Bucket); err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set("Location", "/"+req.Bucket)
	return &Response{Header: h}, nil
}

// DeleteBucket 对应 DELETE /{bucket} ，成功时返回 204 。
func (s Service) DeleteBucket(ctx context.Context, req BucketRequest) (*Response, error) {
	if err := s.Engine.DeleteBucket(ctx, req.Bucket); err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusNoContent}, nil
}

// HeadBucket 对应 HEAD /{bucket} 。
func (s Service) HeadBucket(ctx context.Context, req BucketRequest) (*Response, error) {
	if err := s.Engine.HeadBucket(ctx, req.Bucket); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

// ListObjectsRequest 是 ListObjects 的参数。
type ListObjectsRequest struct {
	Bucket    string
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   string
}

// ObjectEntry 是 ListBucketResult 中的一个对象。
type ObjectEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	Owner        Owner  `xml:"Owner"`
	StorageClass string `xml:"StorageClass"`
}

// CommonPrefix 是 ListBucketResult 中按 Delimiter 合并的前缀。
type CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}

// ListBucketResult 是 ListObjects 的回执。
type ListBucketResult struct {
	XMLName        xml.Name       `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name           string         `xml:"Name"`
	Prefix         string         `xml:"Prefix"`
	Marker         string         `xml:"Marker"`
	NextMarker     string         `xml:"NextMarker,omitempty"`
	MaxKeys        int            `xml:"MaxKeys"`
	Delimiter      string         `xml:"Delimiter,omitempty"`
	IsTruncated    bool           `xml:"IsTruncated"`
	Contents       []ObjectEntry  `xml:"Contents"`
	CommonPrefixes []CommonPrefix `xml:"CommonPrefixes"`
}

// ListObjects 对应 GET /{bucket} ，列出 bucket 中的对象。 max-keys 的取值范围为 0 到 DefaultMaxKeys 。
func (s Service) ListObjects(ctx context.Context, id credential.Identity, req ListObjectsRequest) (*ListBucketResult, error) {
	maxKeys := DefaultMaxKeys
	if req.MaxKeys != "" {
		n, err := strconv.Atoi(req.MaxKeys)
		if err != nil || n < 0 {
			return nil, errInvalidArgument(nil, "Provided max-keys not an integer or within integer range")
		}
		maxKeys = min(n, DefaultMaxKeys)
	}

	out, err := s.Engine.ListObjects(ctx, ListObjectsInput{
		Bucket:    req.Bucket,
		Prefix:    req.Prefix,
		Delimiter: req.Delimiter,
		Marker:    req.Marker,
		MaxKeys:   maxKeys,
	})
	if err != nil {
		return nil, err
	}

	owner := ownerOf(id)
	res := &ListBucketResult{
		Name:        req.Bucket,
		Prefix:      req.Prefix,
		Marker:      req.Marker,
		MaxKeys:     maxKeys,
		Delimiter:   req.Delimiter,
		IsTruncated: out.IsTruncated,
		Contents:    make([]ObjectEntry, 0, len(out.Objects)),
	}

	// NextMarker 仅在指定了 Delimiter 时返回。
	if out.IsTruncated && req.Delimiter != "" {
		res.NextMarker = out.NextMarker
	}

	for _, o := range out.Objects {
		storageClass := o.StorageClass
		if storageClass == "" {
			storageClass = "STANDARD"
		}
		res.Contents = append(res.Contents, ObjectEntry{
			Key:          o.Key,
			LastModified: formatTime(o.LastModified),
			ETag:         o.ETag,
			Size:         o.Size,
			Owner:        owner,
			StorageClass: storageClass,
		})
	}
	for _, p := range out.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, CommonPrefix{p})
	}
	return res, nil
}

// PutObjectRequest 是 PutObject 的参数。
type PutObjectRequest struct {
	Bucket        string
	Key           string
	ContentType   string
	ContentMD5    string
	ContentLength int64
	Metadata      map[string]string
	Body          io.Reader
}

// PutObject 对应 PUT /{bucket}/{key} ，请求的 body 直接交给 Engine ，不做缓冲。
// 必须给出 Content-Length 。
func (s Service) PutObject(ctx context.Context, req PutObjectRequest) (*Response, error) {
	if err := CheckPutObjectLength(req.ContentLength); err != nil {
		return nil, err
	}

	body := req.Body
	if body == nil {
		body = http.NoBody
	}

	info, err := s.Engine.PutObject(ctx, PutObjectInput{
		Bucket:        req.Bucket,
		Key:           req.Key,
		ContentType:   req.ContentType,
		ContentMD5:    req.ContentMD5,
		ContentLength: req.ContentLength,
		Metadata:      req.Metadata,
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	if info.ETag != "" {
		h.Set("ETag", info.ETag)
	}
	return &Response{Header: h}, nil
}

// GetObjectRequest 是 GetObject 的参数。 Response* 对应 response-* 参数，用于覆盖回执头。
type GetObjectRequest struct {
	Bucket                     string
	Key                        string
	Range                      string
	ResponseContentType        string
	ResponseContentLanguage    string
	ResponseExpires            string
	ResponseCacheControl       string
	ResponseContentDisposition string
	ResponseContentEncoding    string
}

// GetObject 对应 GET /{bucket}/{key} ，对象内容以流的形式输出。给定 Range 时返回 206 。
func (s Service) GetObject(ctx context.Context, req GetObjectRequest) (*Response, error) {
	obj, err := s.Engine.GetObject(ctx, req.Bucket, req.Key, req.Range)
	if err != nil {
		return nil, err
	}

	h := objectHeader(obj.ObjectInfo)
	if obj.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	} else {
		h.Del("Content-Length")
	}

	overrides := []struct{ name, value string }{
		{"Content-Type", req.ResponseContentType},
		{"Content-Language", req.ResponseContentLanguage},
		{"Expires", req.ResponseExpires},
		{"Cache-Control", req.ResponseCacheControl},
		{"Content-Disposition", req.ResponseContentDisposition},
		{"Content-Encoding", req.ResponseContentEncoding},
	}
	for _, o := range overrides {
		if o.value != "" {
			h.Set(o.name, o.value)
		}
	}

	res := &Response{Header: h, Body: obj.Body}
	if obj.ContentRange != "" {
		h.Set("Content-Range", obj.ContentRange)
		res.Status = http.StatusPartialContent
	}
	return res, nil
}

// HeadObject 对应 HEAD /{bucket}/{key} ，只返回对象的元数据。
func (s Service) HeadObject(ctx context.Context, req ObjectRequest) (*Response, error) {
	info, err := s.Engine.HeadObject(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, err
	}
	return &Response{Header: objectHeader(info)}, nil
}

// DeleteObject 对应 DELETE /{bucket}/{key} ，成功时返回 204 。
func (s Service) DeleteObject(ctx context.Context, req ObjectRequest) (*Response, error) {
	if err := s.Engine.DeleteObject(ctx, req.Bucket, req.Key); err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusNoContent}, nil
}

func objectHeader(info ObjectInfo) http.Header {
	h := make(http.Header)

	contentType := info.ContentType
	if contentType == "" {
		contentType = "binary/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	h.Set("Accept-Ranges", "bytes")

	if info.ETag != "" {
		h.Set("ETag", info.ETag)
	}
	if !info.LastModified.IsZero() {
		h.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	for k, v := range info.Metadata {
		h.Set(metadataHeaderPrefix+strings.ToLower(k), v)
	}
	return h
}

// ValidBucketName 判断 bucket 名称是否合规：3 到 63 个字符，只含小写字母、数字、“.”和“-”，
// 以字母或数字开头和结尾。
func ValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '.' || c == '-':
			if i == 0 || i == len(name)-1 {
				return false
			}
		default:
			return false
		}
	}
	return !strings.Contains(name, "..")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
