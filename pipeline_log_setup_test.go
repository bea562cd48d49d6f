package awsapi_test

import (
	"testing"

	"github.com/cmstar/go-awsapi"
	"github.com/cmstar/go-awsapi/awsapitest"
	"github.com/cmstar/go-logx"
	"github.com/stretchr/testify/assert"
)

func TestLogSetupPipeline(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		p := awsapi.NewLogSetupPipeline()
		p.Log(&awsapi.ApiState{}) // Nothing happens.
	})

	t.Run("no-logger", func(t *testing.T) {
		called := false
		p := awsapi.NewLogSetupPipeline(awsapi.LogSetupFunc(func(state *awsapi.ApiState) {
			called = true
		}))
		p.Log(&awsapi.ApiState{})
		assert.False(t, called)
	})

	t.Run("values", func(t *testing.T) {
		f1 := func(state *awsapi.ApiState) {
			state.LogMessage = append(state.LogMessage, "K1", "V1")
			state.LogMessage = append(state.LogMessage, "K2", "V2")
		}

		f2 := func(state *awsapi.ApiState) {
			state.LogLevel = logx.LevelWarn
			state.LogMessage = append(state.LogMessage, "K3", "V3")
		}

		p := awsapi.NewLogSetupPipeline(awsapi.ToLogSetup(f1), awsapi.LogSetupFunc(f2))
		logger := awsapitest.NewLogRecorder()
		p.Log(&awsapi.ApiState{Logger: logger})

		m := logger.Map()
		assert.Len(t, m, 1)
		assert.Equal(t, "WARN", m[0]["level"])
		assert.Equal(t, "V1", m[0]["K1"])
		assert.Equal(t, "V2", m[0]["K2"])
		assert.Equal(t, "V3", m[0]["K3"])
	})

	t.Run("default-level", func(t *testing.T) {
		f1 := func(state *awsapi.ApiState) {
			state.LogMessage = append(state.LogMessage, "K", "V")
		}

		p := awsapi.NewLogSetupPipeline(awsapi.LogSetupFunc(f1))
		logger := awsapitest.NewLogRecorder()
		p.Log(&awsapi.ApiState{Logger: logger})

		assert.Equal(t, "level=INFO message= K=V\n", logger.String())
	})

	t.Run("action-name", func(t *testing.T) {
		p := awsapi.NewLogSetupPipeline(awsapi.LogSetupFunc(func(state *awsapi.ApiState) {}))
		logger := awsapitest.NewLogRecorder()
		p.Log(&awsapi.ApiState{Logger: logger, Name: "DescribeInstances"})

		assert.Equal(t, "level=INFO message=DescribeInstances\n", logger.String())
	})

	t.Run("level-from-error", func(t *testing.T) {
		p := awsapi.NewLogSetupPipeline(awsapi.LogSetupFunc(func(state *awsapi.ApiState) {}))
		logger := awsapitest.NewLogRecorder()
		p.Log(&awsapi.ApiState{
			Logger: logger,
			Name:   "GetObject",
			Error:  awsapi.CreateAwsError(nil, 404, awsapi.ErrorCodeNoSuchKey, nil, "no key"),
		})

		assert.Equal(t, "WARN", logger.Last()["level"])
		assert.Equal(t, "GetObject", logger.Last()["message"])
	})
}
