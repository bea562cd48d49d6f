package s3api

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/cmstar/go-awsapi"
)

// 参与签名但不作为方法参数的 query 参数。
var signatureParams = map[string]bool{
	"AWSAccessKeyId": true,
	"Signature":      true,
	"Expires":        true,
}

// 作为方法参数的请求头。
var argumentHeaders = []string{
	"Content-Type",
	"Content-MD5",
	"Range",
}

// NewS3ApiDecoder 返回用于 S3 REST 协议的 [awsapi.ApiDecoder] 实现。
func NewS3ApiDecoder() awsapi.ArgumentDecoderPipeline {
	return awsapi.NewArgumentDecoderPipeline(awsapi.IdentityArgumentDecoder, StructArgumentDecoder)
}

// StructArgumentDecoder 是一个 [awsapi.ArgumentDecoder] ，用于方法参数表中 struct 类型的参数。
// 参数的值依次来自 query 参数、部分请求头（ Content-Type 、 Content-MD5 、 Range ）、
// 用户元数据（ x-amz-meta-* ，汇总为 Metadata ）、 ContentLength ，以及路由中的 Bucket 和 Key ，后者覆盖前者。
// 名称去掉“-”后通过 [Conv] 匹配字段。
//
// 若 struct 有 io.Reader 类型的 Body 字段，请求的 body 被赋值给它，不会被预先读取。
//
// 这是一个单例。
var StructArgumentDecoder = s3ApiMethodStructArgDecoder{}

type s3ApiMethodStructArgDecoder struct{}

var _readerType = reflect.TypeOf((*io.Reader)(nil)).Elem()

// DecodeArg implements [awsapi.ArgumentDecoder.DecodeArg].
func (d s3ApiMethodStructArgDecoder) DecodeArg(state *awsapi.ApiState, index int, argType reflect.Type) (ok bool, v any, err error) {
	if argType.Kind() != reflect.Struct {
		return false, nil, nil
	}

	r := state.RawRequest
	val, err := Conv.ConvertType(requestParams(r), argType)
	if err != nil {
		return false, nil, errInvalidArgument(state, "The arguments for %s are invalid.", state.Name)
	}

	rv := reflect.New(argType).Elem()
	rv.Set(reflect.ValueOf(val))

	body := rv.FieldByName("Body")
	if body.IsValid() && body.Type() == _readerType && body.CanSet() && r.Body != nil {
		body.Set(reflect.ValueOf(r.Body))
	}

	return true, rv.Interface(), nil
}

// requestParams 汇总请求中可作为方法参数的值。
func requestParams(r *http.Request) map[string]any {
	m := make(map[string]any)

	for k, vs := range r.URL.Query() {
		if signatureParams[k] || len(vs) == 0 {
			continue
		}
		m[normalizeName(k)] = vs[0]
	}

	for _, h := range argumentHeaders {
		if v := r.Header.Get(h); v != "" {
			m[normalizeName(h)] = v
		}
	}

	metadata := make(map[string]any)
	for k, vs := range r.Header {
		name, ok := strings.CutPrefix(http.CanonicalHeaderKey(k), metadataHeaderPrefix)
		if ok && name != "" && len(vs) > 0 {
			metadata[strings.ToLower(name)] = vs[0]
		}
	}
	if len(metadata) > 0 {
		m["Metadata"] = metadata
	}

	m["ContentLength"] = r.ContentLength

	bucket, key := routeObject(r)
	m["Bucket"] = bucket
	m["Key"] = key
	return m
}

func normalizeName(s string) string {
	return strings.ReplaceAll(s, "-", "")
}
