package ec2api

import (
	"net/http"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-conv"
)

const (
	// DefaultVersion 是请求未指定 Version 参数时使用的 API 版本。
	DefaultVersion = "2016-11-15"

	// 元参数名称。
	meta_Param_Action  = "Action"
	meta_Param_Version = "Version"

	// 回执的 xmlns 的格式， %s 为 API 版本。
	xmlnsFormat = "http://ec2.amazonaws.com/doc/%s/"
)

// 用作在 ApiState 上存储自定义数据的 key 。
type customDataKey int

const (
	// 自定义字段。记录请求的 Version 参数，没有给定时为 DefaultVersion 。
	customData_Version customDataKey = iota
)

// Conv 是用于 EC2 Query API 的 [conv.Conv] 实例，它支持：
//   - 使用大小写不敏感（case-insensitive）的方式处理字段。
//   - 支持 ISO8601 格式的时间，如 2026-03-01T10:00:00Z 和 2026-03-01T10:00:00.000Z 。
var Conv = conv.Conv{
	Conf: conv.Config{
		FieldMatcherCreator: &conv.SimpleMatcherCreator{
			Conf: conv.SimpleMatcherConfig{
				CaseInsensitive: true,
			},
		},
		StringToTime: parseTime,
	},
}

// NewEc2ApiHandler 创建一个实现 EC2 Query 协议的 awsapi.ApiHandlerWrapper 。
// verifier 用于校验请求的签名，不能为 nil 。可通过替换其成员实现接口的定制。
func NewEc2ApiHandler(name string, verifier *sigv2.Verifier) *awsapi.ApiHandlerWrapper {
	return &awsapi.ApiHandlerWrapper{
		HandlerName:         name,
		HttpMethods:         SupportedHttpMethods(),
		ApiNameResolver:     NewEc2ApiNameResolver(verifier),
		ApiDecoder:          NewEc2ApiDecoder(),
		ApiMethodCaller:     awsapi.NewBasicApiMethodCaller(),
		ApiResponseBuilder:  awsapi.NewBasicApiResponseBuilder(),
		ApiMethodRegister:   awsapi.NewBasicApiMethodRegister(),
		ApiUserHostResolver: awsapi.NewBasicApiUserHostResolver(),
		ApiResponseWriter:   NewEc2ApiResponseWriter(),
		ApiLogger:           NewEc2ApiLogger(),
	}
}

// SupportedHttpMethods 返回 EC2 Query API 支持的 HTTP 请求方法。
// 当前支持 GET 和 POST 。
func SupportedHttpMethods() []string {
	return []string{http.MethodGet, http.MethodPost}
}

// 将请求的 Version 存储到 ApiState 中。
func setVersion(state *awsapi.ApiState, v string) {
	state.SetCustomData(customData_Version, v)
}

// 读取 setVersion 设置的值，没有设置过时返回 DefaultVersion 。
func getVersion(state *awsapi.ApiState) string {
	v, ok := state.GetCustomData(customData_Version)
	if ok {
		return v.(string)
	}
	return DefaultVersion
}

// parseTime 解析 ISO8601 格式的时间，没有时区的视为 UTC 。
func parseTime(v string) (time.Time, error) {
	t, ok := sigv2.ParseTime(v)
	if ok {
		return t, nil
	}
	return conv.DefaultStringToTime(v)
}
