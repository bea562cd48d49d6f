package s3api

import (
	"net/http"

	"github.com/cmstar/go-awsapi"
)

/*
当前文件提供常用的 S3 错误，供 Engine 的实现使用。消息与 S3 一致。
*/

// ErrNoSuchBucket 表示 bucket 不存在。
func ErrNoSuchBucket() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusNotFound, awsapi.ErrorCodeNoSuchBucket, nil,
		"The specified bucket does not exist")
}

// ErrNoSuchKey 表示对象不存在。
func ErrNoSuchKey() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusNotFound, awsapi.ErrorCodeNoSuchKey, nil,
		"The specified key does not exist.")
}

// ErrBucketNotEmpty 表示 bucket 中还有对象，不能删除。
func ErrBucketNotEmpty() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusConflict, awsapi.ErrorCodeBucketNotEmpty, nil,
		"The bucket you tried to delete is not empty")
}

// ErrBucketAlreadyExists 表示 bucket 已被其他人占用。
func ErrBucketAlreadyExists() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusConflict, awsapi.ErrorCodeBucketAlreadyExists, nil,
		"The requested bucket name is not available.")
}

// ErrBucketAlreadyOwnedByYou 表示 bucket 已存在且属于调用者。
func ErrBucketAlreadyOwnedByYou() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusConflict, awsapi.ErrorCodeBucketAlreadyOwnedByYou, nil,
		"Your previous request to create the named bucket succeeded and you already own it.")
}

// ErrInvalidBucketName 表示 bucket 名称不合规。
func ErrInvalidBucketName() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeInvalidBucketName, nil,
		"The specified bucket is not valid.")
}

// ErrInvalidRange 表示 Range 头无法满足。
func ErrInvalidRange() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusRequestedRangeNotSatisfiable, awsapi.ErrorCodeInvalidRange, nil,
		"The requested range is not satisfiable")
}

// MaxPutObjectSize 是单次 PutObject 允许的最大对象大小，与 S3 一致为 5 GiB 。
const MaxPutObjectSize int64 = 5 << 30

// ErrMissingContentLength 表示 PUT 请求没有给出 Content-Length ，如使用 chunked 编码。
func ErrMissingContentLength() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusLengthRequired, awsapi.ErrorCodeMissingContentLength, nil,
		"You must provide the Content-Length HTTP header.")
}

// ErrEntityTooLarge 表示对象超过 [MaxPutObjectSize] 。
func ErrEntityTooLarge() awsapi.AwsError {
	return awsapi.CreateAwsError(nil, http.StatusBadRequest, awsapi.ErrorCodeEntityTooLarge, nil,
		"Your proposed upload exceeds the maximum allowed object size.")
}

// CheckPutObjectLength 校验 PutObject 的 Content-Length ，未知时返回 [ErrMissingContentLength] ，
// 超过 [MaxPutObjectSize] 时返回 [ErrEntityTooLarge] 。
func CheckPutObjectLength(length int64) error {
	switch {
	case length < 0:
		return ErrMissingContentLength()
	case length > MaxPutObjectSize:
		return ErrEntityTooLarge()
	}
	return nil
}

func errNotImplemented(state *awsapi.ApiState) awsapi.AwsError {
	return awsapi.CreateAwsError(state, http.StatusNotImplemented, awsapi.ErrorCodeNotImplemented, nil,
		"A header or query you provided implies functionality that is not implemented.")
}

func errMethodNotAllowed(state *awsapi.ApiState) awsapi.AwsError {
	return awsapi.CreateAwsError(state, http.StatusMethodNotAllowed, awsapi.ErrorCodeMethodNotAllowed, nil,
		"The specified method is not allowed against this resource.")
}

func errInvalidArgument(state *awsapi.ApiState, format string, args ...any) awsapi.AwsError {
	return awsapi.CreateAwsError(state, http.StatusBadRequest, awsapi.ErrorCodeInvalidArgument, nil, format, args...)
}
