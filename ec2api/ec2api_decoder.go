package ec2api

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cmstar/go-awsapi"
)

// 不作为方法参数的元参数和签名参数。
var reservedParams = map[string]bool{
	"Action":           true,
	"Version":          true,
	"AWSAccessKeyId":   true,
	"Signature":        true,
	"SignatureMethod":  true,
	"SignatureVersion": true,
	"Timestamp":        true,
	"Expires":          true,
}

// NewEc2ApiDecoder 返回用于 EC2 Query 协议的 [awsapi.ApiDecoder] 实现。
func NewEc2ApiDecoder() awsapi.ArgumentDecoderPipeline {
	return awsapi.NewArgumentDecoderPipeline(awsapi.IdentityArgumentDecoder, StructArgumentDecoder)
}

// StructArgumentDecoder 是一个 [awsapi.ArgumentDecoder] ，
// 定义了 EC2 Query 协议的参数解析过程，用于方法参数表中 struct 类型的参数。
// 参数先经过 [FoldParams] 折叠，再通过 [Conv] 转换。
//
// 这是一个单例。
var StructArgumentDecoder = ec2ApiMethodStructArgDecoder{}

type ec2ApiMethodStructArgDecoder struct{}

// DecodeArg implements [awsapi.ArgumentDecoder.DecodeArg].
func (d ec2ApiMethodStructArgDecoder) DecodeArg(state *awsapi.ApiState, index int, argType reflect.Type) (ok bool, v any, err error) {
	if argType.Kind() != reflect.Struct {
		return false, nil, nil
	}

	paramMap, err := FoldParams(state.RawRequest.Form)
	if err != nil {
		return false, nil, awsapi.CreateAwsError(state, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, err, err.Error())
	}

	val, err := Conv.ConvertType(paramMap, argType)
	if err != nil {
		return false, nil, awsapi.CreateAwsError(state, http.StatusBadRequest, awsapi.ErrorCodeInvalidParameterValue, err,
			"The parameters for %s are invalid.", state.Name)
	}

	return true, val, nil
}

// FoldParams 将 EC2 Query 的参数按点号记法折叠为嵌套的结构，元参数和签名参数被忽略。
//   - 名称以“.”分段，每段形成一层 map[string]any ；
//   - 若一层 map 的 key 全部是数字，则转为 []any ，按数字从小到大排列（不要求连续）；
//   - 同名参数有多个值时，只取第一个。
//
// 例如 Filter.1.Name=a&Filter.1.Value.1=b 折叠为 {"Filter": [{"Name": "a", "Value": ["b"]}]} 。
// 参数名称中有空的段，或同一个名称既是值又是结构（如 A=1&A.1=2 ）时返回错误。
func FoldParams(params url.Values) (map[string]any, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !reservedParams[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, k := range keys {
		vs := params[k]
		if len(vs) == 0 {
			continue
		}

		if err := putParam(root, k, vs[0]); err != nil {
			return nil, err
		}
	}

	// 顶层总是 map ，即便 key 都是数字。
	for k, child := range root {
		root[k] = foldLists(child)
	}
	return root, nil
}

func putParam(root map[string]any, name, value string) error {
	segments := strings.Split(name, ".")
	node := root

	for i, seg := range segments {
		if seg == "" {
			return fmt.Errorf("malformed parameter name '%s'", name)
		}

		if i == len(segments)-1 {
			if _, exists := node[seg]; exists {
				return fmt.Errorf("parameter '%s' conflicts with another parameter", name)
			}
			node[seg] = value
			return nil
		}

		child, exists := node[seg]
		if !exists {
			m := make(map[string]any)
			node[seg] = m
			node = m
			continue
		}

		m, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("parameter '%s' conflicts with another parameter", name)
		}
		node = m
	}
	return nil
}

// foldLists 递归的将 key 全为数字的 map 转为 []any 。
func foldLists(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	for k, child := range m {
		m[k] = foldLists(child)
	}

	type index struct {
		n   int
		key string
	}

	indexes := make([]index, 0, len(m))
	for k := range m {
		if !isDigits(k) {
			return m
		}
		n, err := strconv.Atoi(k)
		if err != nil {
			return m
		}
		indexes = append(indexes, index{n, k})
	}
	if len(indexes) == 0 {
		return m
	}

	sort.Slice(indexes, func(i, j int) bool {
		if indexes[i].n != indexes[j].n {
			return indexes[i].n < indexes[j].n
		}
		return indexes[i].key < indexes[j].key
	})

	list := make([]any, 0, len(indexes))
	for _, idx := range indexes {
		list = append(list, m[idx.key])
	}
	return list
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
