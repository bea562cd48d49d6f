package s3api

import (
	"net/http"
	"net/url"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/sigv2"
	"github.com/cmstar/go-conv"
	"github.com/cmstar/go-logx"
)

const (
	// S3 的 xmlns 。
	xmlns = "http://s3.amazonaws.com/doc/2006-03-01/"

	// 路由参数名称。
	routeParam_Bucket = "bucket"
	routeParam_Key    = "*"

	// DefaultMaxKeys 是 ListObjects 未指定 max-keys 时返回的最大数量，也是允许的最大值。
	DefaultMaxKeys = 1000

	// 用户元数据的 HTTP 头前缀。
	metadataHeaderPrefix = "X-Amz-Meta-"
)

// 路由，均为 path-style 。
const (
	RouteService = "/"
	RouteBucket  = "/{bucket}"
	RouteObject  = "/{bucket}/*"
)

// Conv 是用于 S3 REST API 的 [conv.Conv] 实例，用于把路由参数、 query 参数和请求头转换到方法的参数上。
// 字段名称大小写不敏感，参数名称中的“-”被去掉后参与匹配，如 max-keys 匹配 MaxKeys 。
var Conv = conv.Conv{
	Conf: conv.Config{
		FieldMatcherCreator: &conv.SimpleMatcherCreator{
			Conf: conv.SimpleMatcherConfig{
				CaseInsensitive: true,
			},
		},
	},
}

// NewS3ApiHandler 创建一个实现 S3 REST 协议的 awsapi.ApiHandlerWrapper 。
// verifier 用于校验请求的签名，不能为 nil 。
func NewS3ApiHandler(name string, verifier *sigv2.Verifier) *awsapi.ApiHandlerWrapper {
	return &awsapi.ApiHandlerWrapper{
		HandlerName:         name,
		HttpMethods:         SupportedHttpMethods(),
		ApiNameResolver:     NewS3ApiNameResolver(verifier),
		ApiDecoder:          NewS3ApiDecoder(),
		ApiMethodCaller:     awsapi.NewBasicApiMethodCaller(),
		ApiResponseBuilder:  awsapi.NewBasicApiResponseBuilder(),
		ApiMethodRegister:   awsapi.NewBasicApiMethodRegister(),
		ApiUserHostResolver: awsapi.NewBasicApiUserHostResolver(),
		ApiResponseWriter:   NewS3ApiResponseWriter(),
		ApiLogger:           NewS3ApiLogger(),
	}
}

// SupportedHttpMethods 返回 S3 REST API 响应的 HTTP 请求方法。
// POST 仅用于返回 NotImplemented 或 MethodNotAllowed 。
func SupportedHttpMethods() []string {
	return []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodPost}
}

// Mount 将 handler 挂载到 engine 的 S3 路由上，并注册 svc 。
func Mount(engine *awsapi.ApiEngine, handler awsapi.ApiHandler, logFinder logx.LogFinder, svc Service) {
	if svc.Engine == nil {
		panic("the engine of the service must be provided")
	}

	engine.Handle(RouteService, handler, logFinder)
	engine.Handle(RouteBucket, handler, logFinder)
	engine.Handle(RouteObject, handler, logFinder).RegisterMethods(svc)
}

// 从路由参数读取 bucket 和 key 。 key 保留原始的大小写和“/”。
func routeObject(r *http.Request) (bucket, key string) {
	bucket = awsapi.GetRouteParam(r, routeParam_Bucket)
	key = awsapi.GetRouteParam(r, routeParam_Key)

	// chi 优先使用 RawPath 匹配，此时参数是转义过的。
	if r.URL.RawPath != "" {
		if v, err := url.PathUnescape(bucket); err == nil {
			bucket = v
		}
		if v, err := url.PathUnescape(key); err == nil {
			key = v
		}
	}
	return
}

// resolveOperation 根据 HTTP 方法和资源确定操作的名称，没有对应的操作时返回空字符串。
func resolveOperation(method, bucket, key string) string {
	switch {
	case bucket == "":
		if method == http.MethodGet {
			return "ListAllMyBuckets"
		}

	case key == "":
		switch method {
		case http.MethodGet:
			return "ListObjects"
		case http.MethodPut:
			return "CreateBucket"
		case http.MethodDelete:
			return "DeleteBucket"
		case http.MethodHead:
			return "HeadBucket"
		}

	default:
		switch method {
		case http.MethodGet:
			return "GetObject"
		case http.MethodPut:
			return "PutObject"
		case http.MethodDelete:
			return "DeleteObject"
		case http.MethodHead:
			return "HeadObject"
		}
	}
	return ""
}
