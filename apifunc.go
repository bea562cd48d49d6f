package awsapi

/*
当前文件提供将函数包装为各个处理环节接口的适配类型，便于组装 ApiHandlerWrapper 和编写测试。
*/

// ApiNameResolverFunc 将函数包装为 [ApiNameResolver] 。
type ApiNameResolverFunc func(state *ApiState)

// FillMethod implements [ApiNameResolver.FillMethod].
func (f ApiNameResolverFunc) FillMethod(state *ApiState) { f(state) }

// ApiUserHostResolverFunc 将函数包装为 [ApiUserHostResolver] 。
type ApiUserHostResolverFunc func(state *ApiState)

// FillUserHost implements [ApiUserHostResolver.FillUserHost].
func (f ApiUserHostResolverFunc) FillUserHost(state *ApiState) { f(state) }

// ApiDecoderFunc 将函数包装为 [ApiDecoder] 。
type ApiDecoderFunc func(state *ApiState)

// Decode implements [ApiDecoder.Decode].
func (f ApiDecoderFunc) Decode(state *ApiState) { f(state) }

// ApiMethodCallerFunc 将函数包装为 [ApiMethodCaller] 。
type ApiMethodCallerFunc func(state *ApiState)

// Call implements [ApiMethodCaller.Call].
func (f ApiMethodCallerFunc) Call(state *ApiState) { f(state) }

// ApiResponseBuilderFunc 将函数包装为 [ApiResponseBuilder] 。
type ApiResponseBuilderFunc func(state *ApiState)

// BuildResponse implements [ApiResponseBuilder.BuildResponse].
func (f ApiResponseBuilderFunc) BuildResponse(state *ApiState) { f(state) }

// ApiResponseWriterFunc 将函数包装为 [ApiResponseWriter] 。
type ApiResponseWriterFunc func(state *ApiState)

// WriteResponse implements [ApiResponseWriter.WriteResponse].
func (f ApiResponseWriterFunc) WriteResponse(state *ApiState) { f(state) }

// ApiLoggerFunc 将函数包装为 [ApiLogger] 。
type ApiLoggerFunc func(state *ApiState)

// Log implements [ApiLogger.Log].
func (f ApiLoggerFunc) Log(state *ApiState) { f(state) }
