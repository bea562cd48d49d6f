package awsapi

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupApiHandlerWrapper 为未赋值的环节填充一个不做任何事的实现。
func setupApiHandlerWrapper(w *ApiHandlerWrapper) *ApiHandlerWrapper {
	if w.ApiMethodRegister == nil {
		w.ApiMethodRegister = emptyApiMethodRegister{}
	}
	if w.ApiUserHostResolver == nil {
		w.ApiUserHostResolver = ApiUserHostResolverFunc(func(state *ApiState) {})
	}
	if w.ApiNameResolver == nil {
		w.ApiNameResolver = ApiNameResolverFunc(func(state *ApiState) {})
	}
	if w.ApiDecoder == nil {
		w.ApiDecoder = ApiDecoderFunc(func(state *ApiState) {
			state.Args = []reflect.Value{}
		})
	}
	if w.ApiMethodCaller == nil {
		w.ApiMethodCaller = ApiMethodCallerFunc(func(state *ApiState) {})
	}
	if w.ApiResponseBuilder == nil {
		w.ApiResponseBuilder = NewBasicApiResponseBuilder()
	}
	if w.ApiResponseWriter == nil {
		w.ApiResponseWriter = ApiResponseWriterFunc(func(state *ApiState) {})
	}
	if w.ApiLogger == nil {
		w.ApiLogger = ApiLoggerFunc(func(state *ApiState) {})
	}
	return w
}

func TestApiEngine_Handle(t *testing.T) {
	h := setupApiHandlerWrapper(&ApiHandlerWrapper{
		HttpMethods: []string{
			"get", "post", "put", "delete", "patch", "head", "trace", "connect", "options",
		},

		// 直接将 HTTP METHOD 赋值到 X-Method 头。解决 HEAD 方法不支持 body 的情况。
		ApiResponseWriter: ApiResponseWriterFunc(func(state *ApiState) {
			state.RawResponse.Header().Set("X-Method", state.RawRequest.Method)
		}),
	})
	e := NewEngine()
	e.Handle("/", h, nil)

	ts := httptest.NewServer(e)
	defer ts.Close()

	run := func(httpMethod string) {
		t.Run(httpMethod, func(t *testing.T) {
			req, _ := http.NewRequest(httpMethod, ts.URL, nil)
			res, _ := new(http.Client).Do(req)
			head, ok := res.Header["X-Method"]
			require.True(t, ok)
			require.Equal(t, httpMethod, head[0])
		})
	}

	run("GET")
	run("POST")
	run("PUT")
	run("DELETE")
	run("PATCH")
	run("TRACE")
	run("HEAD")
	run("CONNECT")
	run("OPTIONS")
}

func TestApiEngine_HandleActions(t *testing.T) {
	e := NewEngine()
	ts := httptest.NewServer(e)
	defer ts.Close()

	run := func(httpMethod string, handle func(path string, handlerFunc http.HandlerFunc)) {
		// 请求路径 = HTTP METHOD = X-Method 头
		t.Run(httpMethod, func(t *testing.T) {
			// path := "/test/" + httpMethod
			path := "/"

			handle(path, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Method", r.Method)
			})

			req, _ := http.NewRequest(httpMethod, ts.URL, nil)
			res, _ := new(http.Client).Do(req)
			head, ok := res.Header["X-Method"]
			require.True(t, ok)
			require.Equal(t, httpMethod, head[0])
		})
	}

	run("GET", e.HandleGet)
	run("POST", e.HandlePost)
	run("PUT", e.HandlePut)
	run("DELETE", e.HandleDelete)
	run("PATCH", e.HandlePatch)
	run("TRACE", e.HandleTrace)
	run("HEAD", e.HandleHead)
	run("CONNECT", e.HandleConnect)
	run("OPTIONS", e.HandleOptions)
}

func TestApiEngine_RouteParams(t *testing.T) {
	var params []RouteParam
	var bucket string

	h := setupApiHandlerWrapper(&ApiHandlerWrapper{
		HttpMethods: []string{"GET"},
		ApiNameResolver: ApiNameResolverFunc(func(state *ApiState) {
			params = AllRouteParams(state.RawRequest)
			bucket = GetRouteParam(state.RawRequest, "bucket")
		}),
	})

	e := NewEngine()
	e.Handle("/{bucket}/*", h, nil)
	ts := httptest.NewServer(e)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/b1/dir/key.txt")
	require.NoError(t, err)
	res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "b1", bucket)
	require.Equal(t, []RouteParam{{"bucket", "b1"}, {"*", "dir/key.txt"}}, params)
}

func TestApiEngine_Use(t *testing.T) {
	e := NewEngine()
	e.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Middleware", "1")
			next.ServeHTTP(w, r)
		})
	})
	e.Handle("/", setupApiHandlerWrapper(&ApiHandlerWrapper{HttpMethods: []string{"GET"}}), nil)
	e.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("m"))
	}))

	ts := httptest.NewServer(e)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "1", res.Header.Get("X-Middleware"))
	require.NotEmpty(t, res.Header.Get(HttpHeaderAmzRequestId))

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestApiSetup(t *testing.T) {
	reg := NewBasicApiMethodRegister()
	e := NewEngine()
	setup := e.Handle("/", setupApiHandlerWrapper(&ApiHandlerWrapper{
		HttpMethods:       []string{"GET"},
		ApiMethodRegister: reg,
	}), nil)

	got := setup.
		RegisterMethods(registerTestProvider{}).
		RegisterMethod(ApiMethod{Name: "DescribeVolumes", Value: reflect.ValueOf(func() {})})
	require.Same(t, e, got.Engine())

	for _, name := range []string{"DescribeRegions", "RunInstances", "describevolumes"} {
		_, ok := reg.GetMethod(name)
		require.True(t, ok, name)
	}
}
