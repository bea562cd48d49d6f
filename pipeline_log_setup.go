package awsapi

// LogSetup 定义一个过程，此过程用于向 [ApiState] 填充日志信息。
type LogSetup interface {
	// Setup 可将日志信息写入 [ApiState.LogLevel] 和 [ApiState.LogMessage] 。
	Setup(state *ApiState)
}

// LogSetupFunc 是 [LogSetup.Setup] 的函数签名，它本身也实现了 [LogSetup] 。
type LogSetupFunc func(state *ApiState)

// Setup implements [LogSetup.Setup].
func (f LogSetupFunc) Setup(state *ApiState) {
	f(state)
}

// ToLogSetup 将 [LogSetupFunc] 包装成 [LogSetup] 。
func ToLogSetup(f LogSetupFunc) LogSetup {
	return f
}

// LogSetupPipeline 是 [LogSetup] 组成的管道，实现 [ApiLogger] 。
//
// 在 [ApiLogger.Log] 时，依次执行每个 [LogSetup.Setup] ，然后以 [ApiState.Name] （即 Action 或 S3 操作的名称）为消息，
// 输出 [ApiState.LogMessage] 。
// 若 [ApiState.LogLevel] 未被设置，有错误时使用 [DescribeError] 给出的级别，否则为 [logx.LevelInfo] 。
type LogSetupPipeline []LogSetup

var _ ApiLogger = (*LogSetupPipeline)(nil)

// NewLogSetupPipeline 返回一个 [LogSetupPipeline] 。
func NewLogSetupPipeline(s ...LogSetup) LogSetupPipeline {
	return LogSetupPipeline(s)
}

// Log implements [ApiLogger.Log].
func (p LogSetupPipeline) Log(state *ApiState) {
	logger := state.Logger
	if logger == nil || len(p) == 0 {
		return
	}

	for _, v := range p {
		v.Setup(state)
	}

	lv := state.LogLevel
	if lv == 0 {
		lv, _, _ = DescribeError(state.Error)
	}

	logger.Log(lv, state.Name, state.LogMessage...)
}
