package sigv2

import (
	"context"
	"crypto/sha1"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSubResource(t *testing.T) {
	assert.True(t, IsSubResource("acl"))
	assert.True(t, IsSubResource("uploadId"))
	assert.True(t, IsSubResource("website"))
	assert.False(t, IsSubResource("prefix"))
	assert.False(t, IsSubResource("Signature"))
	assert.False(t, IsSubResource("zzz"))
}

func TestCanonicalizedAmzHeaders(t *testing.T) {
	assert.Equal(t, "", CanonicalizedAmzHeaders(http.Header{"Content-Type": {"text/plain"}}))

	h := http.Header{}
	h.Set("X-Amz-Meta-Reviewedby", "joe@example.com")
	h.Add("X-Amz-Meta-Reviewedby", " jane@example.com ")
	h.Set("X-Amz-Date", "Tue, 27 Mar 2007 19:36:42 +0000")
	h.Set("Content-Md5", "abc")
	h["x-amz-acl"] = []string{"public-read"}

	want := "x-amz-acl:public-read\n" +
		"x-amz-date:Tue, 27 Mar 2007 19:36:42 +0000\n" +
		"x-amz-meta-reviewedby:joe@example.com,jane@example.com\n"
	assert.Equal(t, want, CanonicalizedAmzHeaders(h))
}

func TestCanonicalizedResource(t *testing.T) {
	assert.Equal(t, "/", CanonicalizedResource("", nil))
	assert.Equal(t, "/bucket/key", CanonicalizedResource("/bucket/key", url.Values{"prefix": {"a"}}))
	assert.Equal(t, "/bucket?acl", CanonicalizedResource("/bucket", url.Values{"acl": {""}}))
	assert.Equal(t,
		"/b/k?partNumber=2&uploadId=u1",
		CanonicalizedResource("/b/k", url.Values{"uploadId": {"u1"}, "partNumber": {"2"}, "max-parts": {"9"}}))
	assert.Equal(t,
		"/b/k?response-content-type=text/plain&versionId=3",
		CanonicalizedResource("/b/k", url.Values{"versionId": {"3"}, "response-content-type": {"text/plain"}}))
}

func TestRestStringToSign(t *testing.T) {
	got := RestStringToSign("PUT", "md5", "image/jpeg", "Tue, 27 Mar 2007 21:15:45 +0000", "x-amz-acl:private\n", "/b/photo.jpg")
	assert.Equal(t, "PUT\nmd5\nimage/jpeg\nTue, 27 Mar 2007 21:15:45 +0000\nx-amz-acl:private\n/b/photo.jpg", got)
}

// AWS 文档中 S3 REST 认证的示例： GET /photos/puppy.jpg （bucket 为 johnsmith ）。
func TestRestSignature_awsDocument(t *testing.T) {
	const date = "Tue, 27 Mar 2007 19:36:42 +0000"

	r := httptest.NewRequest("GET", "http://s3.amazonaws.com/johnsmith/photos/puppy.jpg", nil)
	r.Header.Set("Date", date)

	assert.Equal(t, "GET\n\n\n"+date+"\n/johnsmith/photos/puppy.jpg",
		RestStringToSign("GET", "", "", date, CanonicalizedAmzHeaders(r.Header), CanonicalizedResource(r.URL.EscapedPath(), r.URL.Query())))
	assert.Equal(t, "bWq2s1WEIj+Ydj0vQ697zp+IXMU=", RestSignature(r, _secret, date))
}

func TestParseAuthorizationHeader(t *testing.T) {
	ak, sig, err := ParseAuthorizationHeader("AWS AKID:c2lnbmF0dXJl")
	require.NoError(t, err)
	assert.Equal(t, "AKID", ak)
	assert.Equal(t, "c2lnbmF0dXJl", sig)

	for _, v := range []string{"", "AWS", "AWS4-HMAC-SHA256 Credential=x", "AWS AKID", "AWS :sig", "AWS AKID:"} {
		_, _, err := ParseAuthorizationHeader(v)
		assert.Error(t, err, v)
	}
}

func newRestRequest(method, target string) *http.Request {
	r := httptest.NewRequest(method, "http://s3.example.com"+target, nil)
	r.Header.Set("Content-Type", "text/plain")
	return r
}

func TestVerifier_VerifyRest_header(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("PUT", "/bucket/dir/key.txt?acl")
		r.Header.Set("X-Amz-Meta-Owner", "me")
		SignRest(r, _accessKey, _secret, _now)

		assert.Equal(t, _now.Format(http.TimeFormat), r.Header.Get("Date"))

		// 独立地计算一次签名。
		toSign := "PUT\n\ntext/plain\n" + _now.Format(http.TimeFormat) + "\nx-amz-meta-owner:me\n/bucket/dir/key.txt?acl"
		assert.Equal(t, "AWS "+_accessKey+":"+hmacBase64(sha1.New, _secret, toSign), r.Header.Get("Authorization"))

		id, err := v.VerifyRest(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, _accessKey, id.AccessKey)
	})

	t.Run("x-amz-date", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		r.Header.Set("X-Amz-Date", _now.Format(http.TimeFormat))
		SignRest(r, _accessKey, _secret, _now)
		assert.Equal(t, "", r.Header.Get("Date"))

		_, err := v.VerifyRest(ctx, r)
		require.NoError(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket/key")
		SignRest(r, _accessKey, _secret, _now)
		r.Header.Set("Content-Type", "text/html")

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeSignatureDoesNotMatch)
	})

	t.Run("tampered-subresource", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket/key")
		SignRest(r, _accessKey, _secret, _now)
		r.URL.RawQuery = "acl"

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeSignatureDoesNotMatch)
	})

	t.Run("unsigned-param-ignored", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		SignRest(r, _accessKey, _secret, _now)
		r.URL.RawQuery = "prefix=a"

		_, err := v.VerifyRest(ctx, r)
		require.NoError(t, err)
	})

	t.Run("skewed", func(t *testing.T) {
		v, store := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		SignRest(r, _accessKey, _secret, _now.Add(-DefaultMaxAge-time.Minute))

		_, err := v.VerifyRest(ctx, r)
		e := requireCode(t, err, awsapi.ErrorCodeRequestTimeTooSkewed)
		assert.Equal(t, http.StatusForbidden, e.HttpStatus())
		assert.Equal(t, 0, store.calls)
	})

	t.Run("missing-date", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		r.Header.Set("Authorization", "AWS "+_accessKey+":x")

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeAccessDenied)
	})

	t.Run("malformed-header", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		r.Header.Set("Authorization", "AWS nocolon")

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeInvalidRequest)
	})

	t.Run("unknown-key", func(t *testing.T) {
		v, store := newTestVerifier()
		r := newRestRequest("GET", "/bucket")
		SignRest(r, "UNKNOWN", _secret, _now)

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeInvalidAccessKeyId)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("anonymous", func(t *testing.T) {
		v, _ := newTestVerifier()
		_, err := v.VerifyRest(ctx, newRestRequest("GET", "/bucket"))
		requireCode(t, err, awsapi.ErrorCodeAccessDenied)
	})
}

func TestVerifier_VerifyRest_presigned(t *testing.T) {
	ctx := context.Background()

	presign := func(target string, expires time.Time) *http.Request {
		r := httptest.NewRequest("GET", "http://s3.example.com"+target, nil)
		u := PresignRest(r, _accessKey, _secret, expires)
		return httptest.NewRequest("GET", u, nil)
	}

	t.Run("ok", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := presign("/bucket/key?response-content-type=text/plain", _now.Add(time.Hour))

		q := r.URL.Query()
		assert.Equal(t, _accessKey, q.Get("AWSAccessKeyId"))
		assert.Equal(t, strconv.FormatInt(_now.Add(time.Hour).Unix(), 10), q.Get("Expires"))

		_, err := v.VerifyRest(ctx, r)
		require.NoError(t, err)

		// 预签名 URL 在有效期内可以重复使用。
		v.ReplayGuard = &memoryGuard{seen: map[string]time.Duration{}}
		_, err = v.VerifyRest(ctx, r)
		require.NoError(t, err)
		_, err = v.VerifyRest(ctx, r)
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		v, store := newTestVerifier()
		r := presign("/bucket/key", _now.Add(-time.Second))

		_, err := v.VerifyRest(ctx, r)
		e := requireCode(t, err, awsapi.ErrorCodeAccessDenied)
		assert.Equal(t, "Request has expired.", e.Message)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("tampered-path", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := presign("/bucket/key", _now.Add(time.Hour))
		r.URL.Path = "/bucket/other"

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeSignatureDoesNotMatch)
	})

	t.Run("missing-expires", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := httptest.NewRequest("GET", "http://s3.example.com/b?AWSAccessKeyId=AK&Signature=x", nil)

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeAccessDenied)
	})

	t.Run("bad-expires", func(t *testing.T) {
		v, _ := newTestVerifier()
		r := httptest.NewRequest("GET", "http://s3.example.com/b?AWSAccessKeyId=AK&Signature=x&Expires=soon", nil)

		_, err := v.VerifyRest(ctx, r)
		requireCode(t, err, awsapi.ErrorCodeAccessDenied)
	})
}

func TestTimeChecker(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		c := TimeChecker{MaxAge: -1, ClockSkew: -1}
		params := url.Values{"Timestamp": {"2000-01-01T00:00:00Z"}}
		until, err := c.CheckQuery(_now, params)
		require.NoError(t, err)
		assert.True(t, until.IsZero())

		params = url.Values{"Timestamp": {"2100-01-01T00:00:00Z"}}
		_, err = c.CheckQuery(_now, params)
		require.NoError(t, err)

		require.NoError(t, c.CheckDate(_now, _now.Add(100*time.Hour)))
	})

	t.Run("custom", func(t *testing.T) {
		c := TimeChecker{MaxAge: time.Minute, ClockSkew: time.Second}
		params := url.Values{"Timestamp": {"2026-03-01T09:58:00Z"}}
		_, err := c.CheckQuery(_now, params)
		requireCode(t, err, awsapi.ErrorCodeRequestExpired)

		params = url.Values{"Timestamp": {"2026-03-01T09:59:30Z"}}
		until, err := c.CheckQuery(_now, params)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC), until)
	})

	t.Run("date-skew-both-directions", func(t *testing.T) {
		c := TimeChecker{}
		require.NoError(t, c.CheckDate(_now, _now.Add(DefaultMaxAge)))
		require.Error(t, c.CheckDate(_now, _now.Add(DefaultMaxAge+time.Second)))
		require.Error(t, c.CheckDate(_now, _now.Add(-DefaultMaxAge-time.Second)))
	})
}

func TestParseTime(t *testing.T) {
	cases := map[string]time.Time{
		"2026-03-01T10:00:00Z":      _now,
		"2026-03-01T10:00:00.000Z":  _now,
		"2026-03-01T18:00:00+08:00": _now,
		"2026-03-01T10:00:00":       _now,
		"2026-03-01T10:00:00.000":   _now,
	}
	for s, want := range cases {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), s)
	}

	for _, s := range []string{"", "2026-03-01", "1772359200", "Sun, 01 Mar 2026 10:00:00 GMT"} {
		_, ok := ParseTime(s)
		assert.False(t, ok, s)
	}
}
