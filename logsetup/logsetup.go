// Package logsetup 提供一组预定义的 [awsapi.LogSetup] ，以便快速实现 [awsapi.ApiLogger] 。
package logsetup

import (
	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/credential"
)

// IP 输出发起 HTTP 请求的客户端 IP 地址。
//
// 输出字段为： IP 。
//
// 这是一个单例。
var IP = ip{}

type ip struct{}

var _ awsapi.LogSetup = (*ip)(nil)

func (ip) Setup(state *awsapi.ApiState) {
	state.LogMessage = append(state.LogMessage, "IP", state.UserHost)
}

// URL 输出请求的完整 URL 。
//
// 输出字段为： URL 。
//
// 这是一个单例。
var URL = url{}

type url struct{}

var _ awsapi.LogSetup = (*url)(nil)

func (url) Setup(state *awsapi.ApiState) {
	state.LogMessage = append(state.LogMessage, "URL", state.RawRequest.RequestURI)
}

// RequestId 输出请求的唯一标识，与回执中的 RequestId 一致，便于根据请求者提供的标识查找日志。
//
// 输出字段为： RequestId 。
//
// 这是一个单例。
var RequestId = requestId{}

type requestId struct{}

var _ awsapi.LogSetup = (*requestId)(nil)

func (requestId) Setup(state *awsapi.ApiState) {
	state.LogMessage = append(state.LogMessage, "RequestId", state.RequestId)
}

// AccessKey 输出通过签名校验的调用者的 Access Key 。签名校验未通过时不输出。
//
// 输出字段为： AccessKey 。
//
// 这是一个单例。
var AccessKey = accessKey{}

type accessKey struct{}

var _ awsapi.LogSetup = (*accessKey)(nil)

func (accessKey) Setup(state *awsapi.ApiState) {
	id, ok := credential.IdentityFromContext(state.Context())
	if !ok {
		return
	}
	state.LogMessage = append(state.LogMessage, "AccessKey", id.AccessKey)
}

// Error 根据当前的错误信息，判断错误的级别，并输出错误的描述信息。
//
// 输出字段为： ErrorType/Error 。
//
// 这是一个单例。
var Error = err{}

type err struct{}

var _ awsapi.LogSetup = (*err)(nil)

func (err) Setup(state *awsapi.ApiState) {
	if state.Error == nil {
		return
	}

	logLevel, errTypeName, errDescription := awsapi.DescribeError(state.Error)

	state.LogLevel = logLevel
	state.LogMessage = append(state.LogMessage,
		"ErrorType", errTypeName,
		"Error", errDescription,
	)
}

// Object 输出 S3 请求所操作的 bucket 和 key ，以及上传内容的长度。
// bucket 和 key 来自路由参数 bucket 和 * ，不存在的部分不输出。
//
// 输出字段为： Bucket/Key/ContentLength 。
//
// 这是一个单例。
var Object = object{}

type object struct{}

var _ awsapi.LogSetup = (*object)(nil)

func (object) Setup(state *awsapi.ApiState) {
	req := state.RawRequest

	if bucket := awsapi.GetRouteParam(req, "bucket"); bucket != "" {
		state.LogMessage = append(state.LogMessage, "Bucket", bucket)
	}

	if key := awsapi.GetRouteParam(req, "*"); key != "" {
		state.LogMessage = append(state.LogMessage, "Key", key)
	}

	if req.ContentLength > 0 {
		state.LogMessage = append(state.LogMessage, "ContentLength", req.ContentLength)
	}
}
