package awsapi

import (
	"net"
	"strings"
)

// basicApiUserHostResolver 提供 ApiUserHostResolver 的标准实现。
type basicApiUserHostResolver struct {
	trustForwardedFor bool
}

// NewBasicApiUserHostResolver 返回一个预定义的 ApiUserHostResolver 的标准实现，它仅使用 http.Request.RemoteAddr 。
// 当实现一个 ApiHandler 时，可基于此实例实现 ApiUserHostResolver 。
func NewBasicApiUserHostResolver() ApiUserHostResolver {
	return &basicApiUserHostResolver{}
}

// NewForwardedApiUserHostResolver 返回一个 ApiUserHostResolver ，
// 若请求带有 X-Forwarded-For 头，则使用其第一段作为客户端 IP 。仅应在服务位于可信的反向代理之后时使用。
func NewForwardedApiUserHostResolver() ApiUserHostResolver {
	return &basicApiUserHostResolver{trustForwardedFor: true}
}

// FillUserHost implements ApiUserHostResolver.FillUserHost
func (r *basicApiUserHostResolver) FillUserHost(state *ApiState) {
	req := state.RawRequest

	if r.trustForwardedFor {
		// X-Forwarded-For 头给的第一个 IP 是客户端原始 IP 。
		if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if first != "" {
				state.UserHost = trimHost(first)
				return
			}
		}
	}

	state.UserHost = trimHost(req.RemoteAddr)
}

// trimHost 去掉地址中的端口及 IPv6 地址外的“[]”。无法识别的格式原样返回。
func trimHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}

	// 没有端口的 IPv6 地址，可能被“[]”包裹。
	if len(addr) > 2 && addr[0] == '[' && addr[len(addr)-1] == ']' {
		return addr[1 : len(addr)-1]
	}
	return addr
}
