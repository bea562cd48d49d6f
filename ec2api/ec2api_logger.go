package ec2api

import (
	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/logsetup"
)

// NewEc2ApiLogger 返回用于 EC2 Query 协议的 [awsapi.ApiLogger] 实现。
func NewEc2ApiLogger() awsapi.LogSetupPipeline {
	logAction := func(state *awsapi.ApiState) {
		if state.Name == "" {
			return
		}
		state.LogMessage = append(state.LogMessage,
			"Action", state.Name,
			"Version", getVersion(state),
		)
	}

	return awsapi.NewLogSetupPipeline(
		logsetup.IP,
		logsetup.URL,
		logsetup.RequestId,
		logsetup.AccessKey,
		awsapi.ToLogSetup(logAction),
		logsetup.Error,
	)
}
