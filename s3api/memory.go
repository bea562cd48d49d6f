package s3api

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-errx"
)

// MemoryEngine 是一个在内存中保存数据的 Engine ，用于测试和本地开发。
type MemoryEngine struct {
	mu      sync.RWMutex
	buckets map[string]*memoryBucket

	// Now 返回当前时间，为 nil 时使用 time.Now 。
	Now func() time.Time
}

type memoryBucket struct {
	created time.Time
	objects map[string]memoryObject
}

type memoryObject struct {
	info ObjectInfo
	data []byte
}

var _ Engine = (*MemoryEngine)(nil)

// NewMemoryEngine 创建一个空的 MemoryEngine 。
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{buckets: make(map[string]*memoryBucket)}
}

func (e *MemoryEngine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// ListBuckets implements [Engine.ListBuckets].
func (e *MemoryEngine) ListBuckets(ctx context.Context) ([]Bucket, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res := make([]Bucket, 0, len(e.buckets))
	for name, b := range e.buckets {
		res = append(res, Bucket{Name: name, CreationDate: b.created})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// CreateBucket implements [Engine.CreateBucket].
func (e *MemoryEngine) CreateBucket(ctx context.Context, bucket string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.buckets[bucket]; ok {
		return ErrBucketAlreadyOwnedByYou()
	}
	e.buckets[bucket] = &memoryBucket{
		created: e.now(),
		objects: make(map[string]memoryObject),
	}
	return nil
}

// DeleteBucket implements [Engine.DeleteBucket].
func (e *MemoryEngine) DeleteBucket(ctx context.Context, bucket string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.buckets[bucket]
	if !ok {
		return ErrNoSuchBucket()
	}
	if len(b.objects) > 0 {
		return ErrBucketNotEmpty()
	}
	delete(e.buckets, bucket)
	return nil
}

// HeadBucket implements [Engine.HeadBucket].
func (e *MemoryEngine) HeadBucket(ctx context.Context, bucket string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.buckets[bucket]; !ok {
		return ErrNoSuchBucket()
	}
	return nil
}

// ListObjects implements [Engine.ListObjects]. 对象按 key 的字节顺序排列。
func (e *MemoryEngine) ListObjects(ctx context.Context, input ListObjectsInput) (ListObjectsOutput, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.buckets[input.Bucket]
	if !ok {
		return ListObjectsOutput{}, ErrNoSuchBucket()
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, input.Prefix) && k > input.Marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out ListObjectsOutput
	seenPrefixes := make(map[string]bool)
	count := 0
	for _, k := range keys {
		if input.Delimiter != "" {
			rest := k[len(input.Prefix):]
			if i := strings.Index(rest, input.Delimiter); i >= 0 {
				p := input.Prefix + rest[:i+len(input.Delimiter)]
				// 上一页以公共前缀结束时，该前缀下的 key 都已经输出过。
				if seenPrefixes[p] || p <= input.Marker {
					continue
				}

				if count == input.MaxKeys {
					out.IsTruncated = true
					break
				}
				seenPrefixes[p] = true
				out.CommonPrefixes = append(out.CommonPrefixes, p)
				out.NextMarker = p
				count++
				continue
			}
		}

		if count == input.MaxKeys {
			out.IsTruncated = true
			break
		}
		out.Objects = append(out.Objects, b.objects[k].info)
		out.NextMarker = k
		count++
	}
	return out, nil
}

// PutObject implements [Engine.PutObject]. 给定 ContentMD5 时校验内容的摘要。
func (e *MemoryEngine) PutObject(ctx context.Context, input PutObjectInput) (ObjectInfo, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return ObjectInfo{}, errx.Wrap("memory engine: read body", err)
	}

	sum := md5.Sum(data)
	if input.ContentMD5 != "" && input.ContentMD5 != base64.StdEncoding.EncodeToString(sum[:]) {
		return ObjectInfo{}, awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeBadDigest, nil,
			"The Content-MD5 you specified did not match what we received.")
	}

	metadata := make(map[string]string, len(input.Metadata))
	for k, v := range input.Metadata {
		metadata[strings.ToLower(k)] = v
	}

	info := ObjectInfo{
		Key:          input.Key,
		Size:         int64(len(data)),
		ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
		LastModified: e.now(),
		ContentType:  input.ContentType,
		StorageClass: "STANDARD",
		Metadata:     metadata,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.buckets[input.Bucket]
	if !ok {
		return ObjectInfo{}, ErrNoSuchBucket()
	}
	b.objects[input.Key] = memoryObject{info: info, data: data}
	return info, nil
}

// GetObject implements [Engine.GetObject]. 支持单个范围的 Range 头。
func (e *MemoryEngine) GetObject(ctx context.Context, bucket, key, rangeHeader string) (*Object, error) {
	obj, err := e.find(bucket, key)
	if err != nil {
		return nil, err
	}

	size := int64(len(obj.data))
	res := &Object{ObjectInfo: obj.info}
	if rangeHeader == "" {
		res.Body = io.NopCloser(bytes.NewReader(obj.data))
		res.ContentLength = size
		return res, nil
	}

	start, end, ok := ParseRange(rangeHeader, size)
	if !ok {
		return nil, ErrInvalidRange()
	}

	res.Body = io.NopCloser(bytes.NewReader(obj.data[start : end+1]))
	res.ContentLength = end - start + 1
	res.ContentRange = "bytes " + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10) + "/" + strconv.FormatInt(size, 10)
	return res, nil
}

// HeadObject implements [Engine.HeadObject].
func (e *MemoryEngine) HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	obj, err := e.find(bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	return obj.info, nil
}

// DeleteObject implements [Engine.DeleteObject]. 对象不存在时也视为成功。
func (e *MemoryEngine) DeleteObject(ctx context.Context, bucket, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.buckets[bucket]
	if !ok {
		return ErrNoSuchBucket()
	}
	delete(b.objects, key)
	return nil
}

func (e *MemoryEngine) find(bucket, key string) (memoryObject, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.buckets[bucket]
	if !ok {
		return memoryObject{}, ErrNoSuchBucket()
	}
	obj, ok := b.objects[key]
	if !ok {
		return memoryObject{}, ErrNoSuchKey()
	}
	return obj, nil
}

// ParseRange 解析单个范围的 Range 头，如 bytes=0-9 、 bytes=10- 、 bytes=-5 ，返回闭区间 [start, end] 。
// 格式不正确或范围无法满足时 ok=false 。结束位置超过 size 时截断到 size-1 。
func ParseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}

	first, last, found := strings.Cut(spec, "-")
	if !found || size <= 0 {
		return 0, 0, false
	}

	if first == "" {
		// 后缀形式，取最后 n 个字节。
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		return max(size-n, 0), size - 1, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	end = size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		end = min(end, size-1)
	}
	return start, end, true
}
