package sigv2

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strings"
)

/*
当前文件提供 EC2 Query 形式的签名算法（Signature Version 2）。
*/

// SignatureMethod 是签名使用的 HMAC 算法，对应请求参数 SignatureMethod 。
type SignatureMethod string

const (
	HmacSHA1   SignatureMethod = "HmacSHA1"
	HmacSHA256 SignatureMethod = "HmacSHA256"
)

// SignatureVersion 是当前包实现的签名版本，对应请求参数 SignatureVersion 。
const SignatureVersion = "2"

// ParseSignatureMethod 解析 SignatureMethod 参数的值，区分大小写。不支持的算法返回错误。
func ParseSignatureMethod(s string) (SignatureMethod, error) {
	switch m := SignatureMethod(s); m {
	case HmacSHA1, HmacSHA256:
		return m, nil
	}
	return "", fmt.Errorf("unsupported signature method %q", s)
}

func (m SignatureMethod) hashFunc() func() hash.Hash {
	if m == HmacSHA256 {
		return sha256.New
	}
	return sha1.New
}

// ComputeSignature 使用给定的算法和密钥计算 data 的 HMAC ，返回 base64 编码的结果。
// method 须为 HmacSHA1 或 HmacSHA256 ，其他值按 HmacSHA1 处理，调用前应先通过 ParseSignatureMethod 校验。
func ComputeSignature(method SignatureMethod, secret, data string) string {
	h := hmac.New(method.hashFunc(), []byte(secret))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// QueryRequest 是 EC2 Query 请求中参与签名的部分。
type QueryRequest struct {
	Method string     // Method 是 HTTP 方法，如 GET 、 POST 。
	Host   string     // Host 是 HTTP Host 头，含非默认端口。
	Path   string     // Path 是已经过 URL 编码的路径，为空时视为“/”。
	Params url.Values // Params 是 query string 与表单合并后的全部参数，含 Signature 。
}

// CanonicalQueryString 返回规范化的参数串：
//   - 去掉 Signature 参数；
//   - 按参数名称的字节顺序升序排列，同名参数按值排列；
//   - 名称和值按 RFC 3986 编码，见 Encode ；
//   - 形如“k1=v1&k2=v2”拼接。
func CanonicalQueryString(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "Signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := new(strings.Builder)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)

		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(Encode(k))
			b.WriteByte('=')
			b.WriteString(Encode(v))
		}
	}
	return b.String()
}

// StringToSign 返回待签名的串，四部分以换行符分隔：
//
//	HTTP 方法
//	小写的 Host
//	路径，为空时使用“/”
//	CanonicalQueryString
func StringToSign(req QueryRequest) string {
	path := req.Path
	if path == "" {
		path = "/"
	}

	return strings.ToUpper(req.Method) + "\n" +
		strings.ToLower(req.Host) + "\n" +
		path + "\n" +
		CanonicalQueryString(req.Params)
}

// Encode 按 RFC 3986 对字符串进行百分号编码：仅 A-Z a-z 0-9 - _ . ~ 不编码，
// 其余字节编码为 %XX （大写十六进制），空格为 %20 。
func Encode(s string) string {
	const hex = "0123456789ABCDEF"

	n := 0
	for i := 0; i < len(s); i++ {
		if !isUnreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	b := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b = append(b, c)
			continue
		}
		b = append(b, '%', hex[c>>4], hex[c&15])
	}
	return string(b)
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' ||
		'a' <= c && c <= 'z' ||
		'0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
