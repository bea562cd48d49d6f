package awsapi

import (
	"net/http"
	"strings"

	"github.com/cmstar/go-logx"
	"github.com/go-chi/chi/v5"
)

// ApiEngine 表示一个抽象的 HTTP 服务器，基于 ApiHandler 注册和管理 API 。
// 它实现了 http.Handler ，可直接交给 http.Server 使用。
type ApiEngine struct {
	router chi.Router
}

var _ http.Handler = (*ApiEngine)(nil)

// NewEngine 创建一个 ApiEngine 实例，并完成初始化设置。
func NewEngine() *ApiEngine {
	return &ApiEngine{
		router: chi.NewRouter(),
	}
}

// ServeHTTP implements http.Handler.
func (engine *ApiEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	engine.router.ServeHTTP(w, r)
}

// Use 追加一组中间件，如限流、指标统计等。中间件必须在注册任何路由之前添加，否则 panic 。
func (engine *ApiEngine) Use(middlewares ...func(http.Handler) http.Handler) {
	engine.router.Use(middlewares...)
}

// Handle 指定一个 ApiHandler ，响应对应 URL 路径下的请求。
// 通过 CreateHandlerFunc(handler, logFinder) 方法创建用于响应请求的过程。
// 返回 ApiSetup ，用于向 ApiHandler 注册 API 方法。
//
// path 为相对路径，以 / 开头，支持 chi 的路由格式，如“/{bucket}/*”。
func (engine *ApiEngine) Handle(path string, handler ApiHandler, logFinder logx.LogFinder) ApiSetup {
	handlerFunc := CreateHandlerFunc(handler, logFinder)

	// 同一个 handler 需要响应不同的请求方式，把需要的都注册一遍。
	methods := handler.SupportedHttpMethods()
	for _, m := range methods {
		engine.router.MethodFunc(strings.ToUpper(m), path, handlerFunc)
	}

	return ApiSetup{engine, handler}
}

// Mount 将一个 http.Handler 挂载到指定路径下，如 Prometheus 的指标输出。
func (engine *ApiEngine) Mount(path string, h http.Handler) {
	engine.router.Handle(path, h)
}

// HandleGet 注册一个 GET 请求的处理函数。
func (engine *ApiEngine) HandleGet(path string, handlerFunc http.HandlerFunc) {
	engine.router.Get(path, handlerFunc)
}

// HandlePost 注册一个 POST 请求的处理函数。
func (engine *ApiEngine) HandlePost(path string, handlerFunc http.HandlerFunc) {
	engine.router.Post(path, handlerFunc)
}

// HandlePut 注册一个 PUT 请求的处理函数。
func (engine *ApiEngine) HandlePut(path string, handlerFunc http.HandlerFunc) {
	engine.router.Put(path, handlerFunc)
}

// HandleDelete 注册一个 DELETE 请求的处理函数。
func (engine *ApiEngine) HandleDelete(path string, handlerFunc http.HandlerFunc) {
	engine.router.Delete(path, handlerFunc)
}

// HandlePatch 注册一个 PATCH 请求的处理函数。
func (engine *ApiEngine) HandlePatch(path string, handlerFunc http.HandlerFunc) {
	engine.router.Patch(path, handlerFunc)
}

// HandleHead 注册一个 HEAD 请求的处理函数。
func (engine *ApiEngine) HandleHead(path string, handlerFunc http.HandlerFunc) {
	engine.router.Head(path, handlerFunc)
}

// HandleTrace 注册一个 TRACE 请求的处理函数。
func (engine *ApiEngine) HandleTrace(path string, handlerFunc http.HandlerFunc) {
	engine.router.Trace(path, handlerFunc)
}

// HandleConnect 注册一个 CONNECT 请求的处理函数。
func (engine *ApiEngine) HandleConnect(path string, handlerFunc http.HandlerFunc) {
	engine.router.Connect(path, handlerFunc)
}

// HandleOptions 注册一个 OPTIONS 请求的处理函数。
func (engine *ApiEngine) HandleOptions(path string, handlerFunc http.HandlerFunc) {
	engine.router.Options(path, handlerFunc)
}
