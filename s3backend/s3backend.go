// Package s3backend 提供基于上游 S3 兼容存储的 [s3api.Engine] 实现。
//
// 请求使用 aws-sdk-go-v2 转发到上游，上游的错误码原样映射为 S3 错误。
// 配置 BucketPrefix 时，对外的 bucket 名称在上游会加上前缀，多个部署可共享同一个上游。
package s3backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/s3api"
	"github.com/cmstar/go-awsapi/telemetry"
	"github.com/cmstar/go-errx"
)

// Config 是 [Engine] 的配置。
type Config struct {
	// Endpoint 是上游地址，如 http://minio:9000 。
	Endpoint string

	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// BucketPrefix 加在上游的 bucket 名称前，列举 bucket 时只返回带此前缀的。
	BucketPrefix string

	// HTTPClient 为 nil 时使用 SDK 默认的客户端。
	HTTPClient *http.Client
}

// Engine 将 S3 操作转发到上游。
type Engine struct {
	client *s3.Client
	prefix string
	region string
}

var _ s3api.Engine = (*Engine)(nil)

// New 创建 [Engine] 。 optFns 可以进一步调整 s3.Options ，如替换 Retryer 。
func New(cfg Config, optFns ...func(*s3.Options)) *Engine {
	if cfg.Endpoint == "" {
		panic("endpoint must be provided")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,

		// 上游通常不是 AWS ，不发送也不校验新式的校验和。
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}

	return &Engine{
		client: s3.New(opts, optFns...),
		prefix: cfg.BucketPrefix,
		region: region,
	}
}

func (e *Engine) upstream(bucket string) string {
	return e.prefix + bucket
}

// observe 开始一个 span ，返回的函数在操作结束时调用，记录耗时和结果。
func (e *Engine) observe(ctx context.Context, op, bucket, key string) (context.Context, func(err error)) {
	ctx, span := telemetry.StartSpan(ctx, "s3backend "+op,
		telemetry.AttrEngine.String("s3"),
		telemetry.AttrBucket.String(bucket),
		telemetry.AttrKey.String(key),
	)
	start := time.Now()
	return ctx, func(err error) {
		telemetry.RecordError(span, err)
		telemetry.ObserveEngineCall("s3", op, start, err)
		span.End()
	}
}

// ListBuckets implements [s3api.Engine.ListBuckets].
func (e *Engine) ListBuckets(ctx context.Context) (res []s3api.Bucket, err error) {
	ctx, done := e.observe(ctx, "ListBuckets", "", "")
	defer func() { done(err) }()

	out, err := e.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, mapError(err, "")
	}

	res = make([]s3api.Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		if !strings.HasPrefix(name, e.prefix) || len(name) == len(e.prefix) {
			continue
		}
		res = append(res, s3api.Bucket{
			Name:         name[len(e.prefix):],
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}
	return res, nil
}

// CreateBucket implements [s3api.Engine.CreateBucket].
func (e *Engine) CreateBucket(ctx context.Context, bucket string) (err error) {
	ctx, done := e.observe(ctx, "CreateBucket", bucket, "")
	defer func() { done(err) }()

	input := &s3.CreateBucketInput{Bucket: aws.String(e.upstream(bucket))}

	// us-east-1 不能带 LocationConstraint 。
	if e.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(e.region),
		}
	}

	_, err = e.client.CreateBucket(ctx, input)
	return mapError(err, "")
}

// DeleteBucket implements [s3api.Engine.DeleteBucket].
func (e *Engine) DeleteBucket(ctx context.Context, bucket string) (err error) {
	ctx, done := e.observe(ctx, "DeleteBucket", bucket, "")
	defer func() { done(err) }()

	_, err = e.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(e.upstream(bucket))})
	return mapError(err, awsapi.ErrorCodeNoSuchBucket)
}

// HeadBucket implements [s3api.Engine.HeadBucket].
func (e *Engine) HeadBucket(ctx context.Context, bucket string) (err error) {
	ctx, done := e.observe(ctx, "HeadBucket", bucket, "")
	defer func() { done(err) }()

	_, err = e.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(e.upstream(bucket))})
	return mapError(err, awsapi.ErrorCodeNoSuchBucket)
}

// ListObjects implements [s3api.Engine.ListObjects].
func (e *Engine) ListObjects(ctx context.Context, input s3api.ListObjectsInput) (res s3api.ListObjectsOutput, err error) {
	ctx, done := e.observe(ctx, "ListObjects", input.Bucket, "")
	defer func() { done(err) }()

	req := &s3.ListObjectsInput{
		Bucket: aws.String(e.upstream(input.Bucket)),
	}
	if input.Prefix != "" {
		req.Prefix = aws.String(input.Prefix)
	}
	if input.Delimiter != "" {
		req.Delimiter = aws.String(input.Delimiter)
	}
	if input.Marker != "" {
		req.Marker = aws.String(input.Marker)
	}
	if input.MaxKeys > 0 {
		req.MaxKeys = aws.Int32(int32(min(input.MaxKeys, 1000)))
	}

	out, err := e.client.ListObjects(ctx, req)
	if err != nil {
		return res, mapError(err, awsapi.ErrorCodeNoSuchBucket)
	}

	res.IsTruncated = aws.ToBool(out.IsTruncated)
	res.NextMarker = aws.ToString(out.NextMarker)
	for _, obj := range out.Contents {
		res.Objects = append(res.Objects, s3api.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         aws.ToString(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
			StorageClass: string(obj.StorageClass),
		})
	}
	for _, p := range out.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, aws.ToString(p.Prefix))
	}

	// 上游在没有 delimiter 时不返回 NextMarker 。
	if res.IsTruncated && res.NextMarker == "" && len(res.Objects) > 0 {
		res.NextMarker = res.Objects[len(res.Objects)-1].Key
	}
	return res, nil
}

// PutObject implements [s3api.Engine.PutObject].
func (e *Engine) PutObject(ctx context.Context, input s3api.PutObjectInput) (info s3api.ObjectInfo, err error) {
	ctx, done := e.observe(ctx, "PutObject", input.Bucket, input.Key)
	defer func() { done(err) }()

	length := input.ContentLength
	if err := s3api.CheckPutObjectLength(length); err != nil {
		return info, err
	}

	req := &s3.PutObjectInput{
		Bucket:        aws.String(e.upstream(input.Bucket)),
		Key:           aws.String(input.Key),
		Body:          input.Body,
		ContentLength: aws.Int64(length),
		Metadata:      input.Metadata,
	}
	if input.ContentType != "" {
		req.ContentType = aws.String(input.ContentType)
	}
	if input.ContentMD5 != "" {
		req.ContentMD5 = aws.String(input.ContentMD5)
	}

	// 请求体是流，不能预先计算 SHA256 。
	out, err := e.client.PutObject(ctx, req, s3.WithAPIOptions(
		v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware,
	))
	if err != nil {
		return info, mapError(err, awsapi.ErrorCodeNoSuchBucket)
	}

	return s3api.ObjectInfo{
		Key:          input.Key,
		Size:         length,
		ETag:         aws.ToString(out.ETag),
		LastModified: time.Now().UTC(),
		ContentType:  input.ContentType,
		StorageClass: "STANDARD",
		Metadata:     input.Metadata,
	}, nil
}

// GetObject implements [s3api.Engine.GetObject].
func (e *Engine) GetObject(ctx context.Context, bucket, key, rangeHeader string) (obj *s3api.Object, err error) {
	ctx, done := e.observe(ctx, "GetObject", bucket, key)
	defer func() { done(err) }()

	req := &s3.GetObjectInput{
		Bucket: aws.String(e.upstream(bucket)),
		Key:    aws.String(key),
	}
	if rangeHeader != "" {
		req.Range = aws.String(rangeHeader)
	}

	out, err := e.client.GetObject(ctx, req)
	if err != nil {
		return nil, mapError(err, awsapi.ErrorCodeNoSuchKey)
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}

	return &s3api.Object{
		ObjectInfo: s3api.ObjectInfo{
			Key:          key,
			Size:         objectSize(aws.ToString(out.ContentRange), length),
			ETag:         aws.ToString(out.ETag),
			LastModified: aws.ToTime(out.LastModified),
			ContentType:  aws.ToString(out.ContentType),
			StorageClass: string(out.StorageClass),
			Metadata:     lowerKeys(out.Metadata),
		},
		Body:          out.Body,
		ContentLength: length,
		ContentRange:  aws.ToString(out.ContentRange),
	}, nil
}

// HeadObject implements [s3api.Engine.HeadObject].
func (e *Engine) HeadObject(ctx context.Context, bucket, key string) (info s3api.ObjectInfo, err error) {
	ctx, done := e.observe(ctx, "HeadObject", bucket, key)
	defer func() { done(err) }()

	out, err := e.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(e.upstream(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return info, mapError(err, awsapi.ErrorCodeNoSuchKey)
	}

	return s3api.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
		StorageClass: string(out.StorageClass),
		Metadata:     lowerKeys(out.Metadata),
	}, nil
}

// DeleteObject implements [s3api.Engine.DeleteObject].
func (e *Engine) DeleteObject(ctx context.Context, bucket, key string) (err error) {
	ctx, done := e.observe(ctx, "DeleteObject", bucket, key)
	defer func() { done(err) }()

	_, err = e.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(e.upstream(bucket)),
		Key:    aws.String(key),
	})
	return mapError(err, awsapi.ErrorCodeNoSuchBucket)
}

// objectSize 从 Content-Range 中取对象的总长度，如 bytes 0-4/13 为 13 。
func objectSize(contentRange string, length int64) int64 {
	i := strings.LastIndexByte(contentRange, '/')
	if i < 0 {
		return length
	}

	var n int64
	for _, c := range contentRange[i+1:] {
		if c < '0' || c > '9' {
			return length
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func lowerKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	res := make(map[string]string, len(m))
	for k, v := range m {
		res[strings.ToLower(k)] = v
	}
	return res
}

// mapError 将上游的错误转换为 S3 错误。
// HEAD 请求的 404 没有回执体，错误码为 NotFound ，此时使用 notFoundCode 。
func mapError(err error, notFoundCode string) error {
	if err == nil {
		return nil
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return errx.Wrap("s3backend: call upstream", err)
	}

	code := ae.ErrorCode()
	if code == "NotFound" && notFoundCode != "" {
		code = notFoundCode
	}

	switch code {
	case awsapi.ErrorCodeNoSuchBucket:
		return s3api.ErrNoSuchBucket()
	case awsapi.ErrorCodeNoSuchKey:
		return s3api.ErrNoSuchKey()
	case awsapi.ErrorCodeBucketNotEmpty:
		return s3api.ErrBucketNotEmpty()
	case awsapi.ErrorCodeBucketAlreadyExists:
		return s3api.ErrBucketAlreadyExists()
	case awsapi.ErrorCodeBucketAlreadyOwnedByYou:
		return s3api.ErrBucketAlreadyOwnedByYou()
	case awsapi.ErrorCodeInvalidBucketName:
		return s3api.ErrInvalidBucketName()
	case awsapi.ErrorCodeInvalidRange:
		return s3api.ErrInvalidRange()
	}

	status := http.StatusInternalServerError
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		status = re.HTTPStatusCode()
	}

	message := ae.ErrorMessage()
	if message == "" {
		message = "upstream error: " + code
	}
	return awsapi.CreateAwsError(nil, status, code, err, message)
}
