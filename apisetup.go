package awsapi

// ApiSetup 由 [ApiEngine.Handle] 返回，用于继续向刚挂载的 ApiHandler 注册 Action 或 S3 操作。
//
//	engine.Handle("/", ec2Handler, logFinder).
//		RegisterMethods(ec2api.Service{Engine: backend})
type ApiSetup struct {
	engine  *ApiEngine
	handler ApiHandler
}

// RegisterMethods 同 [ApiMethodRegister.RegisterMethods] ，命名约定见 apiNameOf 。
// 返回 ApiSetup 自身，以便链式调用。
func (setup ApiSetup) RegisterMethods(providerStruct any) ApiSetup {
	setup.handler.RegisterMethods(providerStruct)
	return setup
}

// RegisterMethod 同 [ApiMethodRegister.RegisterMethod] 。返回 ApiSetup 自身。
func (setup ApiSetup) RegisterMethod(m ApiMethod) ApiSetup {
	setup.handler.RegisterMethod(m)
	return setup
}

// Engine 返回 ApiSetup 所属的 ApiEngine ，用于在同一个 engine 上继续挂载其他协议。
func (setup ApiSetup) Engine() *ApiEngine {
	return setup.engine
}
