package s3api

import (
	"strings"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/credential"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-awsapi/telemetry"
)

// s3ApiNameResolver 实现 S3 REST API 的 awsapi.ApiNameResolver 。
type s3ApiNameResolver struct {
	verifier *sigv2.Verifier
}

// NewS3ApiNameResolver 返回用于 S3 REST 协议的 awsapi.ApiNameResolver 实现。
// 操作由 HTTP 方法及路由中的 bucket 、 key 共同决定；在此之前先使用 verifier 校验请求的签名。
// verifier 为 nil 时 panic 。
func NewS3ApiNameResolver(verifier *sigv2.Verifier) awsapi.ApiNameResolver {
	if verifier == nil {
		panic("verifier must be provided")
	}
	return &s3ApiNameResolver{verifier: verifier}
}

// FillMethod 实现 awsapi.ApiNameResolver.FillMethod 。
func (d *s3ApiNameResolver) FillMethod(state *awsapi.ApiState) {
	state.ResponseContentType = awsapi.ContentTypeApplicationXml

	r := state.RawRequest
	id, err := d.verifier.VerifyRest(r.Context(), r)
	if err != nil {
		telemetry.ObserveAuthFailure("s3", err)
		state.Error = err
		return
	}
	state.RawRequest = r.WithContext(credential.WithIdentity(r.Context(), id))

	// 子资源（如 ?acl 、 ?uploads ）对应的操作都不支持；
	// response-* 是 GetObject 对回执头的覆盖，不算在内。
	for name := range r.URL.Query() {
		if sigv2.IsSubResource(name) && !strings.HasPrefix(name, "response-") {
			state.Error = errNotImplemented(state)
			return
		}
	}

	if r.Header.Get("X-Amz-Copy-Source") != "" {
		state.Error = errNotImplemented(state)
		return
	}

	bucket, key := routeObject(r)
	op := resolveOperation(r.Method, bucket, key)
	if op == "" {
		state.Error = errMethodNotAllowed(state)
		return
	}

	state.Name = op
}
