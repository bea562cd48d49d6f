package sigv2

import (
	"context"
	"crypto/hmac"
	"net/http"
	"time"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/credential"
)

// ReplayGuard 记录已使用过的签名，用于拒绝重放的请求。
type ReplayGuard interface {
	// Seen 记录 key ，有效期为 ttl 。若 key 在有效期内已被记录过，返回 true 。
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Verifier 在服务端校验请求的签名。
// 除 Credentials 外各字段均可为零值。 Verifier 初始化后可在多个 goroutine 中使用。
type Verifier struct {
	// Credentials 用于按 Access Key 检索凭据。
	Credentials credential.Store

	// TimeChecker 校验请求的时效性。
	TimeChecker TimeChecker

	// ReplayGuard 为 nil 时不做防重放校验。
	ReplayGuard ReplayGuard

	// Now 返回当前时间，为 nil 时使用 time.Now 。
	Now func() time.Time
}

// NewVerifier 使用给定的凭据存储创建 Verifier ，其他字段使用默认值。
func NewVerifier(store credential.Store) *Verifier {
	return &Verifier{Credentials: store}
}

func (v *Verifier) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// NewQueryRequest 从 HTTP 请求中读取参与签名的部分。 query string 与
// application/x-www-form-urlencoded 的 body 合并为 Params ，读取后 body 的内容可从 r.Form 获取。
func NewQueryRequest(r *http.Request) (QueryRequest, error) {
	if err := r.ParseForm(); err != nil {
		return QueryRequest{}, err
	}

	return QueryRequest{
		Method: r.Method,
		Host:   r.Host,
		Path:   r.URL.EscapedPath(),
		Params: r.Form,
	}, nil
}

// VerifyRequest 读取 HTTP 请求并以 EC2 Query 的形式校验签名，见 VerifyQuery 。
func (v *Verifier) VerifyRequest(r *http.Request) (credential.Identity, error) {
	req, err := NewQueryRequest(r)
	if err != nil {
		return credential.Identity{}, newError(http.StatusBadRequest, awsapi.ErrorCodeInvalidRequest, "The request body is malformed.")
	}
	return v.VerifyQuery(r.Context(), req)
}

// VerifyQuery 校验 EC2 Query 请求的签名。校验顺序为：
//  1. AWSAccessKeyId 和 Signature 参数必须存在；
//  2. SignatureVersion 必须为 2 ；
//  3. SignatureMethod 必须为 HmacSHA1 或 HmacSHA256 ；
//  4. Timestamp 或 Expires 必须有且只有一个，且请求未过期；
//  5. Access Key 必须存在，否则不计算签名；
//  6. 签名必须一致，使用常量时间的比较；
//  7. 若设置了 ReplayGuard ，签名在有效期内不能重复使用。
//
// 校验失败时返回 *Error 。
func (v *Verifier) VerifyQuery(ctx context.Context, req QueryRequest) (credential.Identity, error) {
	params := req.Params

	accessKey := params.Get("AWSAccessKeyId")
	if accessKey == "" {
		return credential.Identity{}, errAuthFailure()
	}

	signature := params.Get("Signature")
	if signature == "" {
		return credential.Identity{}, errMissingParameter("Signature")
	}

	version, ok := firstValue(params, "SignatureVersion")
	if !ok {
		return credential.Identity{}, errMissingParameter("SignatureVersion")
	}
	if version != SignatureVersion {
		return credential.Identity{}, errInvalidParameter("SignatureVersion", version)
	}

	methodRaw, ok := firstValue(params, "SignatureMethod")
	if !ok {
		return credential.Identity{}, errMissingParameter("SignatureMethod")
	}
	method, err := ParseSignatureMethod(methodRaw)
	if err != nil {
		return credential.Identity{}, errInvalidParameter("SignatureMethod", methodRaw)
	}

	now := v.now()
	validUntil, err := v.TimeChecker.CheckQuery(now, params)
	if err != nil {
		return credential.Identity{}, err
	}

	cred, err := v.lookup(ctx, accessKey, errAuthFailure)
	if err != nil {
		return credential.Identity{}, err
	}

	expected := ComputeSignature(method, cred.SecretKey, StringToSign(req))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return credential.Identity{}, errSignatureDoesNotMatch()
	}

	if err := v.checkReplay(ctx, accessKey, signature, now, validUntil); err != nil {
		return credential.Identity{}, err
	}

	return credential.NewIdentity(cred), nil
}

func (v *Verifier) lookup(ctx context.Context, accessKey string, notFound func() *Error) (credential.Credential, error) {
	if v.Credentials == nil {
		return credential.Credential{}, notFound()
	}

	cred, ok, err := v.Credentials.Lookup(ctx, accessKey)
	if err != nil {
		return credential.Credential{}, errInternal(err)
	}
	if !ok {
		return credential.Credential{}, notFound()
	}
	return cred, nil
}

func (v *Verifier) checkReplay(ctx context.Context, accessKey, signature string, now, validUntil time.Time) error {
	if v.ReplayGuard == nil {
		return nil
	}

	// 没有期限的请求，记录保留一个默认有效期。
	ttl := DefaultMaxAge
	if !validUntil.IsZero() {
		ttl = validUntil.Sub(now)
	}
	if ttl <= 0 {
		return nil
	}

	seen, err := v.ReplayGuard.Seen(ctx, "sigv2:"+accessKey+":"+signature, ttl)
	if err != nil {
		return errInternal(err)
	}
	if seen {
		return errRequestExpired("The request has already been used.")
	}
	return nil
}
