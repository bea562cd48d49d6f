package awsapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

/*
目前 mux 部分直接基于 chi 库的，直接调用 chi 的方法即可。
S3 的 bucket 和 key 即通过路由参数获取。
*/

// GetRouteParam 从给定的请求中获取指定名称的路由参数。参数不存在时，返回空字符串。
func GetRouteParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// SetRouteParams 向当前请求中添加一组路由参数，返回追加参数后的请求。
// 若给定参数表为 nil 或不包含元素，则返回原始请求。
func SetRouteParams(r *http.Request, params map[string]string) *http.Request {
	routeParamLen := len(params)
	if routeParamLen == 0 {
		return r
	}

	chiCtx := chi.RouteContext(r.Context())
	if chiCtx == nil {
		paramNames := make([]string, 0, routeParamLen)
		paramValues := make([]string, 0, routeParamLen)
		for k, v := range params {
			paramNames = append(paramNames, k)
			paramValues = append(paramValues, v)
		}

		chiCtx = chi.NewRouteContext()
		chiCtx.URLParams = chi.RouteParams{
			Keys:   paramNames,
			Values: paramValues,
		}
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chiCtx))
	} else {
		paramNames := chiCtx.URLParams.Keys
		paramValues := chiCtx.URLParams.Values
		for k, v := range params {
			paramNames = append(paramNames, k)
			paramValues = append(paramValues, v)
		}

		chiCtx.URLParams = chi.RouteParams{
			Keys:   paramNames,
			Values: paramValues,
		}
	}
	return r
}

// RouteParam 表示一个路由参数。
type RouteParam struct {
	Key   string
	Value string
}

// AllRouteParams 返回给定请求上的全部路由参数，按路由中出现的顺序排列。没有路由参数时返回 nil 。
func AllRouteParams(r *http.Request) []RouteParam {
	chiCtx := chi.RouteContext(r.Context())
	if chiCtx == nil {
		return nil
	}

	keys := chiCtx.URLParams.Keys
	values := chiCtx.URLParams.Values
	res := make([]RouteParam, 0, len(keys))
	for i := 0; i < len(keys) && i < len(values); i++ {
		res = append(res, RouteParam{keys[i], values[i]})
	}
	return res
}
