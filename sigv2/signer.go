package sigv2

import (
	"net/url"
	"time"
)

// Signer 在客户端为 EC2 Query 请求签名。
type Signer struct {
	AccessKey string
	SecretKey string

	// Method 为空时使用 HmacSHA256 。
	Method SignatureMethod

	// Now 返回当前时间，为 nil 时使用 time.Now 。
	Now func() time.Time
}

// Sign 为请求签名，使用 Timestamp 形式。
func (s *Signer) Sign(req *QueryRequest) {
	s.sign(req, time.Time{})
}

// SignWithExpires 为请求签名，使用 Expires 形式，请求在 expires 之后失效。
func (s *Signer) SignWithExpires(req *QueryRequest, expires time.Time) {
	s.sign(req, expires)
}

func (s *Signer) sign(req *QueryRequest, expires time.Time) {
	method := s.Method
	if method == "" {
		method = HmacSHA256
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	SignQuery(req, s.AccessKey, s.SecretKey, method, now(), expires)
}

// SignQuery 为请求签名：设置 AWSAccessKeyId 、 SignatureVersion 、 SignatureMethod 参数，
// 若 expires 为零值，设置 Timestamp 为 now ，否则设置 Expires ；最后计算并设置 Signature 。
// 请求中已有的同名参数会被替换。
func SignQuery(req *QueryRequest, accessKey, secret string, method SignatureMethod, now, expires time.Time) {
	if req.Params == nil {
		req.Params = make(url.Values)
	}

	p := req.Params
	p.Del("Signature")
	p.Del("Timestamp")
	p.Del("Expires")
	p.Set("AWSAccessKeyId", accessKey)
	p.Set("SignatureVersion", SignatureVersion)
	p.Set("SignatureMethod", string(method))

	if expires.IsZero() {
		p.Set("Timestamp", now.UTC().Format(TimestampFormat))
	} else {
		p.Set("Expires", expires.UTC().Format(TimestampFormat))
	}

	p.Set("Signature", ComputeSignature(method, secret, StringToSign(*req)))
}
