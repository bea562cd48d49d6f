package sigv2

import (
	"context"
	"crypto/hmac"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/credential"
)

/*
当前文件提供 S3 REST 形式的签名算法（Signature Version 2），包括 Authorization 头和预签名 URL 两种方式。
REST 形式固定使用 HMAC-SHA1 。
*/

// 参与签名的子资源，按字节顺序排列。
var subResources = []string{
	"acl",
	"cors",
	"delete",
	"lifecycle",
	"location",
	"logging",
	"notification",
	"partNumber",
	"policy",
	"requestPayment",
	"response-cache-control",
	"response-content-disposition",
	"response-content-encoding",
	"response-content-language",
	"response-content-type",
	"response-expires",
	"tagging",
	"torrent",
	"uploadId",
	"uploads",
	"versionId",
	"versioning",
	"versions",
	"website",
}

// IsSubResource 判断给定的 query 参数名称是否为参与签名的子资源。
func IsSubResource(name string) bool {
	i := sort.SearchStrings(subResources, name)
	return i < len(subResources) && subResources[i] == name
}

// RestStringToSign 返回 REST 请求待签名的串：
//
//	HTTP 方法 + "\n" + Content-MD5 + "\n" + Content-Type + "\n" + 日期 + "\n" + CanonicalizedAmzHeaders + CanonicalizedResource
//
// 预签名 URL 的日期部分为 Expires 参数的值。
func RestStringToSign(method, contentMD5, contentType, date, amzHeaders, resource string) string {
	return method + "\n" +
		contentMD5 + "\n" +
		contentType + "\n" +
		date + "\n" +
		amzHeaders +
		resource
}

// CanonicalizedAmzHeaders 返回 x-amz- 开头的头：名称小写并排序，同名的值以逗号连接，
// 每个头形如“name:value\n”。没有这类头时返回空字符串。
func CanonicalizedAmzHeaders(header http.Header) string {
	var keys []string
	values := make(map[string][]string)
	for k, vs := range header {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, "x-amz-") {
			continue
		}
		if _, ok := values[lk]; !ok {
			keys = append(keys, lk)
		}
		for _, v := range vs {
			values[lk] = append(values[lk], strings.TrimSpace(v))
		}
	}
	sort.Strings(keys)

	b := new(strings.Builder)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strings.Join(values[k], ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// CanonicalizedResource 返回路径加上参与签名的子资源，如“/bucket/key?acl”。
// path 是经过 URL 编码的路径，为空时使用“/”。子资源的值不编码。
func CanonicalizedResource(path string, query url.Values) string {
	if path == "" {
		path = "/"
	}

	var parts []string
	for _, name := range subResources {
		vs, ok := query[name]
		if !ok {
			continue
		}
		if len(vs) == 0 || vs[0] == "" {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, name+"="+vs[0])
	}

	if len(parts) == 0 {
		return path
	}
	return path + "?" + strings.Join(parts, "&")
}

// ParseAuthorizationHeader 解析格式为“AWS AccessKey:Signature”的 Authorization 头。
func ParseAuthorizationHeader(v string) (accessKey, signature string, err error) {
	rest, ok := strings.CutPrefix(v, "AWS ")
	if !ok {
		return "", "", errors.New("authorization header must start with 'AWS '")
	}

	accessKey, signature, ok = strings.Cut(strings.TrimSpace(rest), ":")
	if !ok || accessKey == "" || signature == "" {
		return "", "", errors.New("authorization header must be in the form 'AWS AccessKey:Signature'")
	}
	return accessKey, signature, nil
}

// restDate 返回 REST 请求的日期：优先 x-amz-date 头，其次 Date 头。
// 使用 x-amz-date 时，它已包含在 CanonicalizedAmzHeaders 中，待签名串中的日期部分为空。
func restDate(header http.Header) (raw string, signed string) {
	if v := header.Get("X-Amz-Date"); v != "" {
		return v, ""
	}
	v := header.Get("Date")
	return v, v
}

// RestSignature 计算 REST 请求的签名。 date 为待签名串中的日期部分。
func RestSignature(r *http.Request, secret, date string) string {
	toSign := RestStringToSign(
		r.Method,
		r.Header.Get("Content-MD5"),
		r.Header.Get("Content-Type"),
		date,
		CanonicalizedAmzHeaders(r.Header),
		CanonicalizedResource(r.URL.EscapedPath(), r.URL.Query()),
	)
	return ComputeSignature(HmacSHA1, secret, toSign)
}

// VerifyRest 校验 S3 REST 请求的签名。支持两种方式：
//   - Authorization 头，需带有 Date 或 x-amz-date 头，且与当前时间的偏差不超过 TimeChecker.MaxAge ；
//   - 预签名 URL ，即 AWSAccessKeyId 、 Expires （UNIX 时间戳）和 Signature 参数。
//
// 未签名的请求被拒绝。校验失败时返回 *Error ，错误码使用 S3 的定义。
func (v *Verifier) VerifyRest(ctx context.Context, r *http.Request) (credential.Identity, error) {
	if auth := r.Header.Get(awsapi.HttpHeaderAuthorization); auth != "" {
		return v.verifyRestHeader(ctx, r, auth)
	}

	if r.URL.Query().Has("Signature") {
		return v.verifyRestPresigned(ctx, r)
	}

	return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied, "Access Denied")
}

func (v *Verifier) verifyRestHeader(ctx context.Context, r *http.Request, auth string) (credential.Identity, error) {
	accessKey, signature, err := ParseAuthorizationHeader(auth)
	if err != nil {
		return credential.Identity{}, newError(http.StatusBadRequest, awsapi.ErrorCodeInvalidRequest,
			"The authorization header is malformed.")
	}

	rawDate, signedDate := restDate(r.Header)
	if rawDate == "" {
		return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied,
			"AWS authentication requires a valid Date or x-amz-date header.")
	}

	date, err := http.ParseTime(rawDate)
	if err != nil {
		return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied,
			"AWS authentication requires a valid Date or x-amz-date header.")
	}

	now := v.now()
	if err := v.TimeChecker.CheckDate(now, date); err != nil {
		return credential.Identity{}, err
	}

	cred, err := v.lookup(ctx, accessKey, errInvalidAccessKeyId)
	if err != nil {
		return credential.Identity{}, err
	}

	expected := RestSignature(r, cred.SecretKey, signedDate)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return credential.Identity{}, errSignatureDoesNotMatch()
	}

	if err := v.checkReplay(ctx, accessKey, signature, now, date.Add(v.TimeChecker.maxAge())); err != nil {
		return credential.Identity{}, err
	}

	return credential.NewIdentity(cred), nil
}

func (v *Verifier) verifyRestPresigned(ctx context.Context, r *http.Request) (credential.Identity, error) {
	query := r.URL.Query()
	accessKey := query.Get("AWSAccessKeyId")
	expiresRaw := query.Get("Expires")
	signature := query.Get("Signature")

	if accessKey == "" || expiresRaw == "" || signature == "" {
		return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied,
			"Query-string authentication requires the Signature, Expires and AWSAccessKeyId parameters.")
	}

	unix, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied,
			"Invalid date (should be seconds since epoch): %s", expiresRaw)
	}

	expires := time.Unix(unix, 0)
	if !v.now().Before(expires) {
		return credential.Identity{}, newError(http.StatusForbidden, awsapi.ErrorCodeAccessDenied, msgRequestExpired)
	}

	cred, err := v.lookup(ctx, accessKey, errInvalidAccessKeyId)
	if err != nil {
		return credential.Identity{}, err
	}

	expected := RestSignature(r, cred.SecretKey, expiresRaw)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return credential.Identity{}, errSignatureDoesNotMatch()
	}

	// 预签名 URL 在有效期内本来就可以多次使用，不做防重放校验。
	return credential.NewIdentity(cred), nil
}

func errInvalidAccessKeyId() *Error {
	return newError(http.StatusForbidden, awsapi.ErrorCodeInvalidAccessKeyId,
		"The AWS Access Key Id you provided does not exist in our records.")
}

// SignRest 为 S3 REST 请求签名并设置 Authorization 头。
// 若请求没有 Date 和 x-amz-date 头，使用 now 设置 Date 头。
func SignRest(r *http.Request, accessKey, secret string, now time.Time) {
	if r.Header.Get("Date") == "" && r.Header.Get("X-Amz-Date") == "" {
		r.Header.Set("Date", now.UTC().Format(http.TimeFormat))
	}

	_, signedDate := restDate(r.Header)
	signature := RestSignature(r, secret, signedDate)
	r.Header.Set(awsapi.HttpHeaderAuthorization, "AWS "+accessKey+":"+signature)
}

// PresignRest 为 S3 REST 请求生成预签名的 URL ，请求在 expires 之后失效。 r 本身不会被修改。
func PresignRest(r *http.Request, accessKey, secret string, expires time.Time) string {
	expiresRaw := strconv.FormatInt(expires.Unix(), 10)
	signature := RestSignature(r, secret, expiresRaw)

	u := *r.URL
	q := u.Query()
	q.Set("AWSAccessKeyId", accessKey)
	q.Set("Expires", expiresRaw)
	q.Set("Signature", signature)
	u.RawQuery = q.Encode()
	return u.String()
}
