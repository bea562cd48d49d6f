package ec2api

import (
	"net/http"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/credential"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-awsapi/telemetry"
)

// ec2ApiNameResolver 实现 EC2 Query API 的 awsapi.ApiNameResolver 。
type ec2ApiNameResolver struct {
	verifier *sigv2.Verifier
}

// NewEc2ApiNameResolver 返回用于 EC2 Query 协议的 awsapi.ApiNameResolver 实现。
// 在解析 Action 之前，先使用 verifier 校验请求的签名。 verifier 为 nil 时 panic 。
func NewEc2ApiNameResolver(verifier *sigv2.Verifier) awsapi.ApiNameResolver {
	if verifier == nil {
		panic("verifier must be provided")
	}
	return &ec2ApiNameResolver{verifier: verifier}
}

// FillMethod 实现 awsapi.ApiNameResolver.FillMethod 。
func (d *ec2ApiNameResolver) FillMethod(state *awsapi.ApiState) {
	// 不论成功失败，回执都是 XML 。
	state.ResponseContentType = awsapi.ContentTypeXml

	// VerifyRequest 会调用 ParseForm ，之后 query 和 body 里的参数都在 Form 里。
	id, err := d.verifier.VerifyRequest(state.RawRequest)
	if err != nil {
		telemetry.ObserveAuthFailure("ec2", err)
		state.Error = err
		return
	}

	// 身份放到请求的 context 上，方法可以通过 context.Context 或 credential.Identity 参数拿到。
	ctx := credential.WithIdentity(state.RawRequest.Context(), id)
	state.RawRequest = state.RawRequest.WithContext(ctx)

	form := state.RawRequest.Form
	action := form.Get(meta_Param_Action)
	if action == "" {
		state.Error = awsapi.CreateAwsError(state, http.StatusBadRequest, awsapi.ErrorCodeMissingAction, nil,
			"The request must contain the parameter Action.")
		return
	}

	if version := form.Get(meta_Param_Version); version != "" {
		setVersion(state, version)
	}

	state.Name = action
}
