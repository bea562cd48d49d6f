package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", AttrAction.String("DescribeInstances"))
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	RecordError(span, nil)
	RecordError(span, errors.New("e"))
	span.End()
}

// scrape 返回 Handler 输出的全部指标。
func scrape(t *testing.T) string {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveEngineCall(t *testing.T) {
	ObserveEngineCall("observe-test", "op", time.Now(), errors.New("e"))
	ObserveEngineCall("observe-test", "op", time.Now(), nil)
	ObserveEngineCall("observe-test", "op", time.Now(), nil)

	metrics := scrape(t)
	assert.Contains(t, metrics, `awsapi_engine_calls_total{engine="observe-test",operation="op",status="error"} 1`)
	assert.Contains(t, metrics, `awsapi_engine_calls_total{engine="observe-test",operation="op",status="ok"} 2`)
	assert.Contains(t, metrics, `awsapi_engine_call_duration_seconds_count{engine="observe-test",operation="op"} 3`)
}

func TestMiddleware(t *testing.T) {
	h := Middleware("mw-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "ok")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("XYZZY1", "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("XYZZY2", "/", nil))

	metrics := scrape(t)
	assert.Contains(t, metrics, `awsapi_requests_total{method="OTHER",protocol="mw-test",status_code="200"} 2`)
	assert.NotContains(t, metrics, "XYZZY")
	assert.Contains(t, metrics, `awsapi_requests_total{method="GET",protocol="mw-test",status_code="200"} 1`)
	assert.Contains(t, metrics, `awsapi_requests_total{method="GET",protocol="mw-test",status_code="404"} 2`)
}

func TestHandler(t *testing.T) {
	RateLimitedTotal.WithLabelValues("handler-test").Inc()

	assert.Contains(t, scrape(t), `awsapi_rate_limited_total{protocol="handler-test"} 1`)
}

func TestObserveAuthFailure(t *testing.T) {
	ObserveAuthFailure("auth-test", awsapi.CreateAwsError(nil, http.StatusForbidden, awsapi.ErrorCodeSignatureDoesNotMatch, nil, "m"))
	ObserveAuthFailure("auth-test", errors.New("plain"))

	metrics := scrape(t)
	assert.Contains(t, metrics, `awsapi_auth_failures_total{code="SignatureDoesNotMatch",protocol="auth-test"} 1`)
	assert.Contains(t, metrics, `awsapi_auth_failures_total{code="InternalError",protocol="auth-test"} 1`)
}
