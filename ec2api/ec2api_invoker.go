package ec2api

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-errx"
)

// Ec2ApiInvoker 用于调用一个 EC2 Query API 。请求以 POST 表单发送，并使用 Signer 签名。
type Ec2ApiInvoker struct {
	// 目标 URL 。
	Uri string

	// Signer 用于为请求签名。
	Signer *sigv2.Signer

	// Version 是请求的 API 版本，为空时使用 DefaultVersion 。
	Version string

	// Client 用于发送请求，为 nil 时使用 http.DefaultClient 。
	Client *http.Client
}

// NewEc2ApiInvoker 创建一个 [Ec2ApiInvoker] 实例。
func NewEc2ApiInvoker(uri string, signer *sigv2.Signer) *Ec2ApiInvoker {
	if uri == "" {
		panic("uri must be provided")
	}
	if signer == nil {
		panic("signer must be provided")
	}

	return &Ec2ApiInvoker{
		Uri:    uri,
		Signer: signer,
	}
}

// Do 调用 action ，将成功的回执反序列化到 out 上， out 可以为 nil 。
// 若回执是一个错误，返回 [awsapi.AwsError] ，其 Code 和 Status 与回执一致。
func (x *Ec2ApiInvoker) Do(ctx context.Context, action string, params url.Values, out any) error {
	u, err := url.Parse(x.Uri)
	if err != nil {
		return errx.Wrap("ec2 invoker: parse uri", err)
	}

	version := x.Version
	if version == "" {
		version = DefaultVersion
	}

	all := make(url.Values, len(params)+2)
	for k, vs := range params {
		all[k] = append([]string(nil), vs...)
	}
	all.Set(meta_Param_Action, action)
	all.Set(meta_Param_Version, version)

	req := sigv2.QueryRequest{
		Method: http.MethodPost,
		Host:   u.Host,
		Path:   u.EscapedPath(),
		Params: all,
	}
	x.Signer.Sign(&req)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, x.Uri, strings.NewReader(req.Params.Encode()))
	if err != nil {
		return errx.Wrap("ec2 invoker: new request", err)
	}
	request.Header.Set(awsapi.HttpHeaderContentType, awsapi.ContentTypeForm)

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return errx.Wrap("ec2 invoker: send request", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return errx.Wrap("ec2 invoker: read body", err)
	}

	if response.StatusCode != http.StatusOK {
		return decodeErrorResponse(response.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return errx.Wrap("ec2 invoker: xml unmarshal", err)
	}
	return nil
}

func decodeErrorResponse(status int, body []byte) error {
	var resp ErrorResponse
	if err := xml.Unmarshal(body, &resp); err != nil || len(resp.Errors) == 0 {
		return awsapi.CreateAwsError(nil, status, awsapi.ErrorCodeInternalError, err,
			"unexpected response: HTTP %d", status)
	}

	e := resp.Errors[0]
	return awsapi.CreateAwsError(nil, status, e.Code, nil, e.Message)
}

// AddList 以 AWS 的点号记法向 params 添加一个列表，如 AddList(p, "InstanceId", "i-1", "i-2")
// 添加 InstanceId.1=i-1 和 InstanceId.2=i-2 。
func AddList(params url.Values, name string, values ...string) {
	for i, v := range values {
		params.Set(name+"."+strconv.Itoa(i+1), v)
	}
}

// AddFilters 以 AWS 的点号记法向 params 添加过滤条件。
func AddFilters(params url.Values, filters ...Filter) {
	for i, f := range filters {
		prefix := "Filter." + strconv.Itoa(i+1)
		params.Set(prefix+".Name", f.Name)
		AddList(params, prefix+".Value", f.Value...)
	}
}
