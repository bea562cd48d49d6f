package s3api

import (
	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/logsetup"
)

// NewS3ApiLogger 返回用于 S3 REST 协议的 [awsapi.ApiLogger] 实现。
func NewS3ApiLogger() awsapi.LogSetupPipeline {
	logOperation := func(state *awsapi.ApiState) {
		if state.Name != "" {
			state.LogMessage = append(state.LogMessage, "Operation", state.Name)
		}
	}

	return awsapi.NewLogSetupPipeline(
		logsetup.IP,
		logsetup.URL,
		logsetup.RequestId,
		logsetup.AccessKey,
		awsapi.ToLogSetup(logOperation),
		logsetup.Object,
		logsetup.Error,
	)
}
