package awsapi

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/cmstar/go-conv"
)

// basicApiMethodRegister 提供 ApiMethodRegister 的标准实现。
// 方法以名称的小写形式索引， DescribeInstances 和 describeinstances 指向同一个方法，
// 但 ApiMethod.Name 保留注册时的写法，回执中的 {Action}Response 使用此名称。
type basicApiMethodRegister struct {
	mu      sync.RWMutex
	methods map[string]ApiMethod
}

var (
	_errorType = reflect.TypeOf((*error)(nil)).Elem()

	// Action 和 S3 操作的名称只含字母和数字。
	_apiNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// NewBasicApiMethodRegister 返回一个预定义的 ApiMethodRegister 的标准实现。
func NewBasicApiMethodRegister() ApiMethodRegister {
	return &basicApiMethodRegister{
		methods: make(map[string]ApiMethod),
	}
}

// RegisterMethod implements [ApiMethodRegister.RegisterMethod].
// 名称不合规，或方法的签名不被支持时 panic 。
func (r *basicApiMethodRegister) RegisterMethod(m ApiMethod) {
	if !_apiNamePattern.MatchString(m.Name) {
		panic(fmt.Sprintf("invalid API name '%s'", m.Name))
	}

	typ := m.Value.Type()
	checkMethodIn(typ, m.Name)
	checkMethodOut(typ, m.Name)

	r.mu.Lock()
	r.methods[strings.ToLower(m.Name)] = m
	r.mu.Unlock()
}

// RegisterMethods implements [ApiMethodRegister.RegisterMethods].
func (r *basicApiMethodRegister) RegisterMethods(providerStruct any) {
	if providerStruct == nil {
		panic("the given provider should not be nil")
	}

	t := reflect.TypeOf(providerStruct)
	if t.Kind() != reflect.Struct {
		panic("the given provider must be a struct")
	}

	v := reflect.ValueOf(providerStruct)
	for i := range t.NumMethod() {
		name, ok := apiNameOf(t.Method(i).Name)
		if !ok {
			continue
		}
		r.RegisterMethod(ApiMethod{Name: name, Value: v.Method(i), Provider: t.Name()})
	}
}

// GetMethod implements [ApiMethodRegister.GetMethod].
func (r *basicApiMethodRegister) GetMethod(name string) (method ApiMethod, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	method, ok = r.methods[strings.ToLower(name)]
	return
}

// apiNameOf 按 [ApiMethodRegister.RegisterMethods] 的约定从方法名称中取出 API 名称。
// ok=false 表示方法不注册。
//   - Method__Name 注册为 Name ；
//   - Method__ 或 Method____ 不注册；
//   - 其余使用方法名称本身。
func apiNameOf(methodName string) (name string, ok bool) {
	const delimiter = "__"

	i := strings.Index(methodName, delimiter)
	if i == -1 {
		return methodName, true
	}

	name = methodName[i+len(delimiter):]
	if strings.Trim(name, "_") == "" {
		return "", false
	}
	return name, true
}

// checkMethodIn 校验方法的参数表。 ArgumentDecoderPipeline 按类型给参数赋值，所以同一类型只能出现一次。
func checkMethodIn(typ reflect.Type, apiName string) {
	if typ.IsVariadic() {
		panic(fmt.Sprintf("the API method '%s' cannot be variadic", apiName))
	}

	seen := make(map[reflect.Type]bool, typ.NumIn())
	for i := range typ.NumIn() {
		in := typ.In(i)
		if seen[in] {
			panic(fmt.Sprintf("the API method '%s' has duplicate parameter type %v", apiName, in))
		}
		seen[in] = true
	}
}

// checkMethodOut 校验方法的返回值，允许 0 至 2 个：
//   - 1 个时可以是数据，也可以是 error ；
//   - 2 个时第一个是数据，第二个必须是 error 。
//
// 数据可以是 struct 、 map 、简单类型，或以它们为元素的 slice 和指针。
func checkMethodOut(typ reflect.Type, apiName string) {
	switch typ.NumOut() {
	case 0:
	case 1:
		out := typ.Out(0)
		if out.Kind() != reflect.Interface || !out.Implements(_errorType) {
			mustBeData(out, apiName)
		}
	case 2:
		mustBeData(typ.Out(0), apiName)
		if !typ.Out(1).Implements(_errorType) {
			panic(fmt.Sprintf("the second output parameter of the API method '%s' must be an error", apiName))
		}
	default:
		panic(fmt.Sprintf("the API method '%s' has more than 2 output parameters", apiName))
	}
}

func mustBeData(t reflect.Type, apiName string) {
	if !isDataType(t) {
		panic(fmt.Sprintf("the type of the output parameter '%v' of the API method '%s' is not supported", t, apiName))
	}
}

func isDataType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Slice, reflect.Pointer:
		return isDataType(t.Elem())
	case reflect.Map:
		return isDataType(t.Key()) && isDataType(t.Elem())
	default:
		return conv.IsSimpleType(t)
	}
}
