package awsapi

import "net/http"

const (
	// ContentTypeNone 未指定类型。
	ContentTypeNone = ""

	// ContentTypeJson 对应 Content-Type: application/json 的值。
	ContentTypeJson = "application/json"

	// ContentTypeXml 对应 Content-Type: text/xml 的值， EC2 和 S3 的回执均使用此类型。
	ContentTypeXml = "text/xml"

	// ContentTypeApplicationXml 对应 Content-Type: application/xml 的值。
	ContentTypeApplicationXml = "application/xml"

	// ContentTypeBinary 对应 Content-Type: application/octet-stream 的值。
	ContentTypeBinary = "application/octet-stream"

	// ContentTypePlainText 对应 Content-Type: text/plain 的值。
	ContentTypePlainText = "text/plain"

	// ContentTypeForm 对应 Content-Type: application/x-www-form-urlencoded 的值。
	ContentTypeForm = "application/x-www-form-urlencoded"

	// ContentTypeMultipartForm 对应 Content-Type: multipart/form-data 的值。
	ContentTypeMultipartForm = "multipart/form-data"
)

const (
	// HttpHeaderContentType 对应 HTTP 头中的 Content-Type 字段。
	HttpHeaderContentType = "Content-Type"

	// HttpHeaderAuthorization 对应 HTTP 头中的 Authorization 字段。
	HttpHeaderAuthorization = "Authorization"

	// HttpHeaderAmzRequestId 用于返回请求标识的 HTTP 头。
	HttpHeaderAmzRequestId = "x-amz-request-id"
)

// AWS 预定义的错误码，用于 [ApiResponse.Code] 。
// EC2 和 S3 的错误码有部分重叠，这里只列出框架本身会用到的。
const (
	ErrorCodeAuthFailure                 = "AuthFailure"
	ErrorCodeSignatureDoesNotMatch       = "SignatureDoesNotMatch"
	ErrorCodeRequestExpired              = "RequestExpired"
	ErrorCodeMissingParameter            = "MissingParameter"
	ErrorCodeMissingAction               = "MissingAction"
	ErrorCodeInvalidAction               = "InvalidAction"
	ErrorCodeInvalidParameterValue       = "InvalidParameterValue"
	ErrorCodeInvalidParameterCombination = "InvalidParameterCombination"
	ErrorCodeInvalidRequest              = "InvalidRequest"
	ErrorCodeUnsupported                 = "Unsupported"
	ErrorCodeRequestLimitExceeded        = "RequestLimitExceeded"
	ErrorCodeInternalError               = "InternalError"
	ErrorCodeUnavailable                 = "Unavailable"
	ErrorCodeInsufficientCapacity        = "InsufficientInstanceCapacity"

	// S3 。
	ErrorCodeAccessDenied            = "AccessDenied"
	ErrorCodeInvalidAccessKeyId      = "InvalidAccessKeyId"
	ErrorCodeRequestTimeTooSkewed    = "RequestTimeTooSkewed"
	ErrorCodeNotImplemented          = "NotImplemented"
	ErrorCodeSlowDown                = "SlowDown"
	ErrorCodeNoSuchBucket            = "NoSuchBucket"
	ErrorCodeNoSuchKey               = "NoSuchKey"
	ErrorCodeBucketAlreadyExists     = "BucketAlreadyExists"
	ErrorCodeBucketAlreadyOwnedByYou = "BucketAlreadyOwnedByYou"
	ErrorCodeBucketNotEmpty          = "BucketNotEmpty"
	ErrorCodeInvalidBucketName       = "InvalidBucketName"
	ErrorCodeMethodNotAllowed        = "MethodNotAllowed"
	ErrorCodeInvalidArgument         = "InvalidArgument"
	ErrorCodeInvalidRange            = "InvalidRange"
	ErrorCodeBadDigest               = "BadDigest"
	ErrorCodeMissingContentLength    = "MissingContentLength"
	ErrorCodeEntityTooLarge          = "EntityTooLarge"
)

// ApiResponse 用于表示返回的数据。
type ApiResponse[T any] struct {
	// Status 是 HTTP 状态码。为 0 时视为 200 。
	Status int

	// Code 是 AWS 错误码，空字符串表示一个成功的请求。
	Code string

	// Message 在 Code 不为空时，记录用于描述错误的消息。
	Message string

	// Data 记录返回的数据本体。
	Data T
}

// IsError 判断当前回执是否表示一个错误。
func (r *ApiResponse[T]) IsError() bool {
	return r.Code != ""
}

// SuccessResponse 返回一个表示成功的 ApiResponse 。
func SuccessResponse[T any](data T) *ApiResponse[T] {
	return &ApiResponse[T]{Status: http.StatusOK, Data: data}
}

// ErrorResponse 返回一个表示错误的 ApiResponse 。
func ErrorResponse(status int, code, message string) *ApiResponse[any] {
	return &ApiResponse[any]{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// BadRequestResponse 返回一个表示不合规的请求的 ApiResponse 。
func BadRequestResponse() *ApiResponse[any] {
	return ErrorResponse(http.StatusBadRequest, ErrorCodeInvalidRequest, "bad request")
}

// InternalErrorResponse 返回一个表示内部错误的 ApiResponse 。
func InternalErrorResponse() *ApiResponse[any] {
	return ErrorResponse(http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
