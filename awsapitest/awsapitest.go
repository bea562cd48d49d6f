// awsapitest 包提供用于测试 awsapi 及其协议实现的辅助方法。
package awsapitest

import (
	"io"
	"net/http/httptest"
	"strings"

	"github.com/cmstar/go-awsapi"
)

// NoOpHandler 是一个空的 awsapi.ApiHandler ，用于测试用例中不需要访问其方法只需要一个实例占位的场景。
var NoOpHandler awsapi.ApiHandler = &awsapi.ApiHandlerWrapper{}

// NewStateSetup 用于设置用于测试 HTTP 请求。
type NewStateSetup struct {
	HttpMethod  string            // HTTP 请求的方法， GET/POST/PUT/DELETE 。若未给定值，默认为 GET 。
	ContentType string            // 指定 HTTP Content-Type 头，若未给定值，则不会添加此字段。
	Headers     map[string]string // 指定额外的 HTTP 头。
	BodyString  string            // 指定请求的 body ，优先级高于 BodyReader 。给定值时 BodyReader 被忽略。
	BodyReader  io.Reader         // 指定请求的 body ，仅在 BodyString 为空时生效。
	RouteParams map[string]string // 指定路由参数。若为 nil 或为空集则不会初始化路由参数。
}

// NewStateForTest 基于 httptest 包创建用于测试 HTTP 请求的相关实例。
func NewStateForTest(apiHandler awsapi.ApiHandler, url string, setup NewStateSetup) (*awsapi.ApiState, *httptest.ResponseRecorder) {
	httpMethod := setup.HttpMethod
	if httpMethod == "" {
		httpMethod = "GET"
	}

	var body io.Reader
	if setup.BodyString != "" {
		body = strings.NewReader(setup.BodyString)
	} else if setup.BodyReader != nil {
		body = setup.BodyReader
	}

	req := httptest.NewRequest(httpMethod, url, body)

	if setup.ContentType != "" {
		req.Header.Add(awsapi.HttpHeaderContentType, setup.ContentType)
	}

	for k, v := range setup.Headers {
		req.Header.Set(k, v)
	}

	req = awsapi.SetRouteParams(req, setup.RouteParams)

	rec := httptest.NewRecorder()
	state := awsapi.NewState(rec, req, apiHandler)
	return state, rec
}
