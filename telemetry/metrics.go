package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal 按协议、 HTTP 方法和状态码统计请求数。
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_requests_total",
			Help: "Total number of API requests processed",
		},
		[]string{"protocol", "method", "status_code"},
	)

	// RequestDuration 按协议和 HTTP 方法统计请求的耗时。
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "awsapi_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"protocol", "method"},
	)

	// AuthFailuresTotal 按协议和错误码统计签名校验失败的次数。
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_auth_failures_total",
			Help: "Total number of requests rejected by signature verification",
		},
		[]string{"protocol", "code"},
	)

	// RateLimitedTotal 按协议统计被限流的请求数。
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"protocol"},
	)

	// EngineCallsTotal 按引擎、操作和结果统计对后端的调用次数。
	EngineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "awsapi_engine_calls_total",
			Help: "Total number of calls to the backing engine",
		},
		[]string{"engine", "operation", "status"},
	)

	// EngineCallDuration 按引擎和操作统计后端调用的耗时。
	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "awsapi_engine_call_duration_seconds",
			Help:    "Backing engine call latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"engine", "operation"},
	)
)

// ObserveEngineCall 记录一次后端调用的结果和耗时。
func ObserveEngineCall(engine, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EngineCallsTotal.WithLabelValues(engine, operation, status).Inc()
	EngineCallDuration.WithLabelValues(engine, operation).Observe(time.Since(start).Seconds())
}

// ObserveAuthFailure 记录一次签名校验失败。错误码从 awsapi.CodedError 中获取。
func ObserveAuthFailure(protocol string, err error) {
	code := awsapi.ErrorCodeInternalError
	var ce awsapi.CodedError
	if errors.As(err, &ce) {
		code = ce.ErrorCode()
	}
	AuthFailuresTotal.WithLabelValues(protocol, code).Inc()
}

// Middleware 返回一个 chi 中间件，为每个请求开启一个 span ，并记录请求数和耗时。
// protocol 用作指标的标签和 span 名称的前缀，如 ec2 、 s3 。
func Middleware(protocol string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			method := methodLabel(r.Method)
			ctx, span := StartSpan(r.Context(), protocol+" "+method)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			RequestsTotal.WithLabelValues(protocol, method, strconv.Itoa(status)).Inc()
			RequestDuration.WithLabelValues(protocol, method).Observe(time.Since(start).Seconds())
		})
	}
}

// methodLabel 返回用作指标标签的 HTTP 方法，非标准的方法统一为 OTHER ，避免标签值无限增长。
func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return m
	}
	return "OTHER"
}

// Handler 返回输出 Prometheus 指标的 http.Handler 。
func Handler() http.Handler {
	return promhttp.Handler()
}
