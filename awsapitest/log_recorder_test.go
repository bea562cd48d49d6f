package awsapitest

import (
	"testing"

	"github.com/cmstar/go-logx"
	"github.com/stretchr/testify/assert"
)

func TestLogRecorder(t *testing.T) {
	r := NewLogRecorder()
	assert := assert.New(t)
	assert.Empty(r.String())

	r.Log(logx.LevelDebug, "")
	r.Log(logx.LevelError, "msg")
	r.Log(logx.LevelInfo, "", "k1", "v1", "k2", 2, 3)
	r.Log(logx.LevelInfo, "msg", "k1", "v1")

	res := r.String()
	want := `level=DEBUG message=
level=ERROR message=msg
level=INFO message= k1=v1 k2=2 UNKNOWN=3
level=INFO message=msg k1=v1
`
	assert.Equal(want, res)

	checkMap := func(idx int, key, wantValue string) {
		m := r.m[idx]
		v := m[key]
		assert.Equal(wantValue, v)
	}

	checkMap(0, "level", "DEBUG")
	checkMap(0, "message", "")

	checkMap(1, "level", "ERROR")
	checkMap(1, "message", "msg")

	checkMap(2, "level", "INFO")
	checkMap(2, "message", "")
	checkMap(2, "k1", "v1")
	checkMap(2, "k2", "2")
	checkMap(2, "UNKNOWN", "3")

	checkMap(3, "level", "INFO")
	checkMap(3, "message", "msg")
	checkMap(3, "k1", "v1")

	assert.Equal("msg", r.Last()["message"])
	assert.Equal("v1", r.Last()["k1"])
}

func TestLogRecorder_Find(t *testing.T) {
	r := NewLogRecorder()
	assert.Nil(t, r.Last())

	logger := r.Find("ec2.Service.DescribeInstances")
	assert.Same(t, r, logger)

	r.Find("s3")
	assert.Equal(t, []string{"ec2.Service.DescribeInstances", "s3"}, r.Names())

	r.LogFn(logx.LevelWarn, func() (string, []any) {
		return "m", []any{"k", 1}
	})
	assert.Equal(t, "level=WARN message=m k=1\n", r.String())
}
