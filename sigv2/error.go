package sigv2

import (
	"fmt"
	"net/http"

	"github.com/cmstar/go-awsapi"
)

// Error 是签名校验失败的错误，带有 AWS 错误码和对应的 HTTP 状态码。
// 它实现了 [awsapi.CodedError] ，在请求处理管道中 panic 或赋值给 ApiState.Error 后，会直接体现为对应的错误回执。
type Error struct {
	Code    string // Code 是 AWS 错误码，如 SignatureDoesNotMatch 。
	Message string // Message 会返回给请求者。
	Status  int    // Status 是 HTTP 状态码。
	Cause   error  // Cause 是引起此错误的内部错误，如凭据存储不可用。不会返回给请求者。
}

var _ awsapi.CodedError = (*Error)(nil)

func newError(status int, code string, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{
		Code:    code,
		Message: msg,
		Status:  status,
	}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + ": " + e.Cause.Error()
}

// Unwrap 返回 Cause 。
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode implements [awsapi.CodedError.ErrorCode].
func (e *Error) ErrorCode() string {
	return e.Code
}

// ErrorMessage implements [awsapi.CodedError.ErrorMessage]. Cause 不在其中。
func (e *Error) ErrorMessage() string {
	return e.Message
}

// HttpStatus implements [awsapi.CodedError.HttpStatus].
func (e *Error) HttpStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// 预定义的错误消息。
const (
	msgAuthFailure       = "AWS was not able to validate the provided access credentials."
	msgSignatureMismatch = "The request signature we calculated does not match the signature you provided. Check your AWS Secret Access Key and signing method."
	msgMissingParameter  = "The request must contain the parameter %s."
	msgInvalidParameter  = "Value (%s) for parameter %s is invalid."
	msgRequestExpired    = "Request has expired."
	msgInternalError     = "An internal error has occurred."
)

func errAuthFailure() *Error {
	return newError(http.StatusUnauthorized, awsapi.ErrorCodeAuthFailure, msgAuthFailure)
}

func errSignatureDoesNotMatch() *Error {
	return newError(http.StatusForbidden, awsapi.ErrorCodeSignatureDoesNotMatch, msgSignatureMismatch)
}

func errMissingParameter(name string) *Error {
	return newError(http.StatusBadRequest, awsapi.ErrorCodeMissingParameter, msgMissingParameter, name)
}

func errInvalidParameter(name, value string) *Error {
	return newError(http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, msgInvalidParameter, value, name)
}

func errRequestExpired(format string, args ...any) *Error {
	return newError(http.StatusBadRequest, awsapi.ErrorCodeRequestExpired, format, args...)
}

func errInternal(cause error) *Error {
	e := newError(http.StatusInternalServerError, awsapi.ErrorCodeInternalError, msgInternalError)
	e.Cause = cause
	return e
}
