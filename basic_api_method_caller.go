package awsapi

import (
	"context"
	"reflect"

	"github.com/cmstar/go-awsapi/credential"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const _tracerName = "github.com/cmstar/go-awsapi"

// basicApiMethodCaller 实现 ApiMethodCaller 。
// 每次调用在一个名为 {Provider}.{Name} 的 span 中进行，方法的 context.Context 参数被替换为该 span 的 context ，
// 后端的 span 因此挂在同一条链路上。
type basicApiMethodCaller struct{}

// NewBasicApiMethodCaller 返回一个预定义的 ApiMethodCaller 的标准实现。
func NewBasicApiMethodCaller() ApiMethodCaller {
	return &basicApiMethodCaller{}
}

// Call implements [ApiMethodCaller.Call].
//
// 返回值的处理：
//   - error 不为 nil 时赋值给 state.Error ；
//   - 数据赋值给 state.Data ， nil 指针、 nil slice 和 nil map 视为没有数据。
func (c *basicApiMethodCaller) Call(state *ApiState) {
	state.MustHaveMethod()

	attrs := []attribute.KeyValue{attribute.String("awsapi.action", state.Method.Name)}
	if id, ok := credential.IdentityFromContext(state.Context()); ok {
		attrs = append(attrs, attribute.String("awsapi.access_key", id.AccessKey))
	}

	ctx, span := otel.Tracer(_tracerName).Start(state.Context(), spanName(state.Method),
		trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
	defer span.End()

	res := state.Method.Value.Call(withContext(state.Args, ctx))

	switch len(res) {
	case 0:
	case 1:
		if e, ok := res[0].Interface().(error); ok {
			state.Error = e
		} else {
			state.Data = dataOf(res[0])
		}

	case 2:
		state.Data = dataOf(res[0])
		if err := dataOf(res[1]); err != nil {
			state.Error = err.(error)
		}

	default:
		// 注册时已经校验过，不会走到这里。
		PanicApiError(state, nil, "the return value of method '%s' cannot be greater than 2", state.Name)
	}

	if state.Error != nil {
		span.RecordError(state.Error)
		span.SetStatus(codes.Error, state.Error.Error())
	}
}

func spanName(m ApiMethod) string {
	if m.Provider == "" {
		return m.Name
	}
	return m.Provider + "." + m.Name
}

// withContext 将 args 中的 context.Context 替换为 ctx ，返回新的参数表。
func withContext(args []reflect.Value, ctx context.Context) []reflect.Value {
	res := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg.IsValid() && arg.Type().Implements(_contextType) {
			arg = reflect.ValueOf(ctx)
		}
		res[i] = arg
	}
	return res
}

// dataOf 返回 v 的值， nil 的指针、 slice 、 map 和接口返回 nil 。
func dataOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
